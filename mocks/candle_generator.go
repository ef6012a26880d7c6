package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
)

// CandleGenerator generates closed candles for tests.
type CandleGenerator struct {
	rng *rand.Rand
}

// NewCandleGenerator creates a generator. Use a fixed seed for reproducible results.
func NewCandleGenerator(seed int64) *CandleGenerator {
	return &CandleGenerator{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec
	}
}

// GeneratorConfig configures how candles are generated.
type GeneratorConfig struct {
	Symbol   string
	Interval types.Interval
	// Step is the distance between open times
	Step      time.Duration
	StartTime time.Time
	Count     int
	// InitialPrice is the open of the first candle
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% per candle)
	Volatility float64
	// VolumeBase is the average volume per candle
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
}

// DefaultConfig returns one-minute BTCUSDT candles.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "BTCUSDT",
		Interval:       types.Interval1m,
		Step:           time.Minute,
		StartTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Count:          150,
		InitialPrice:   42000,
		Volatility:     0.002,
		VolumeBase:     100,
		VolumeVariance: 0.3,
	}
}

// Generate creates Count closed candles in chronological order. Prices follow
// a random walk so consecutive candles connect.
func (g *CandleGenerator) Generate(config GeneratorConfig) []types.Candle {
	candles := make([]types.Candle, config.Count)
	price := config.InitialPrice
	openTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := price

		// Box-Muller
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		closePrice := open * (1 + config.Volatility*z)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		high := math.Max(open, closePrice) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		low := math.Min(open, closePrice) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)

		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		volume := config.VolumeBase * (1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance)
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		candles[i] = types.Candle{
			Symbol:      config.Symbol,
			Interval:    config.Interval,
			OpenTime:    openTime,
			CloseTime:   openTime.Add(config.Step - time.Millisecond),
			Open:        decimal.NewFromFloat(open).Round(2),
			High:        decimal.NewFromFloat(high).Round(2),
			Low:         decimal.NewFromFloat(low).Round(2),
			Close:       decimal.NewFromFloat(closePrice).Round(2),
			Volume:      decimal.NewFromFloat(volume).Round(4),
			QuoteVolume: decimal.NewFromFloat(volume * closePrice).Round(2),
			Trades:      int64(volume) + 1,
			Closed:      true,
		}

		price = closePrice
		openTime = openTime.Add(config.Step)
	}

	return candles
}

// Generate150 returns 150 one-minute candles for symbol with a fixed seed.
func Generate150(symbol string) []types.Candle {
	config := DefaultConfig()
	config.Symbol = symbol

	return NewCandleGenerator(42).Generate(config)
}
