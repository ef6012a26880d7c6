package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CandleTestSuite struct {
	suite.Suite
}

func TestCandleSuite(t *testing.T) {
	suite.Run(t, new(CandleTestSuite))
}

func (suite *CandleTestSuite) TestIntervalIsValid() {
	for _, interval := range Intervals {
		suite.True(interval.IsValid(), string(interval))
	}

	suite.Len(Intervals, 15)
	suite.False(Interval("2m").IsValid())
	suite.False(Interval("1H").IsValid())
	suite.False(Interval("").IsValid())
}

func (suite *CandleTestSuite) TestIntervalDuration() {
	suite.Equal(time.Minute, Interval1m.Duration())
	suite.Equal(15*time.Minute, Interval15m.Duration())
	suite.Equal(12*time.Hour, Interval12h.Duration())
	suite.Equal(72*time.Hour, Interval3d.Duration())
	suite.Equal(7*24*time.Hour, Interval1w.Duration())
	suite.Equal(30*24*time.Hour, Interval1M.Duration())
	suite.Zero(Interval("2m").Duration())
}

func (suite *CandleTestSuite) TestNewProcessorID() {
	id, err := NewProcessorID(" btcusdt ", Interval1m)
	suite.NoError(err)
	suite.Equal(ProcessorID{Symbol: "BTCUSDT", Interval: Interval1m}, id)
	suite.Equal("BTCUSDT@1m", id.String())

	_, err = NewProcessorID("", Interval1m)
	suite.Error(err)

	_, err = NewProcessorID("ETHUSDT", Interval("7m"))
	suite.Error(err)
}

func (suite *CandleTestSuite) TestProcessorIDIsComparable() {
	ids := map[ProcessorID]int{}
	ids[ProcessorID{Symbol: "BTCUSDT", Interval: Interval1m}]++
	ids[ProcessorID{Symbol: "BTCUSDT", Interval: Interval1m}]++
	ids[ProcessorID{Symbol: "BTCUSDT", Interval: Interval5m}]++

	suite.Len(ids, 2)
}

func (suite *CandleTestSuite) TestCandleHelpers() {
	candle := Candle{
		Symbol:   "BTCUSDT",
		Interval: Interval1m,
		OpenTime: time.UnixMilli(1700000000000),
		Open:     decimal.NewFromInt(100),
		Close:    decimal.NewFromInt(101),
	}

	suite.True(candle.IsUp())
	suite.Equal(ProcessorID{Symbol: "BTCUSDT", Interval: Interval1m}, candle.ProcessorID())

	candle.Close = decimal.NewFromInt(99)
	suite.False(candle.IsUp())
}

func (suite *CandleTestSuite) TestCheckTypeAllows() {
	suite.True(CheckTypeUp.Allows(DirectionUp))
	suite.False(CheckTypeUp.Allows(DirectionDown))
	suite.True(CheckTypeDown.Allows(DirectionDown))
	suite.False(CheckTypeDown.Allows(DirectionUp))
	suite.True(CheckTypeBoth.Allows(DirectionUp))
	suite.True(CheckTypeBoth.Allows(DirectionDown))
	suite.False(CheckType("SIDEWAYS").Allows(DirectionUp))
}

func (suite *CandleTestSuite) TestProcessorConfig() {
	cfg := DefaultProcessorConfig()
	suite.NoError(cfg.Validate())
	suite.Equal(100, cfg.MaxWindow())

	cfg.Windows = []int{20, 5, 50}
	suite.Equal([]int{5, 20, 50}, cfg.SortedWindows())
	suite.Equal([]int{20, 5, 50}, cfg.Windows)

	clone := cfg.Clone()
	clone.Windows[0] = 1
	suite.Equal(20, cfg.Windows[0])

	suite.Equal(0, ProcessorConfig{}.MaxWindow())
}

func (suite *CandleTestSuite) TestProcessorConfigValidation() {
	tests := []struct {
		name   string
		mutate func(*ProcessorConfig)
	}{
		{name: "no windows", mutate: func(c *ProcessorConfig) { c.Windows = nil }},
		{name: "zero window", mutate: func(c *ProcessorConfig) { c.Windows = []int{10, 0} }},
		{name: "zero cadence", mutate: func(c *ProcessorConfig) { c.CheckEvery = 0 }},
		{name: "bad check type", mutate: func(c *ProcessorConfig) { c.CheckType = "SIDEWAYS" }},
		{name: "factor too small", mutate: func(c *ProcessorConfig) { c.VolumeRiseFactor = 1 }},
		{name: "zero percent", mutate: func(c *ProcessorConfig) { c.PriceChangePercent = 0 }},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			cfg := DefaultProcessorConfig()
			tc.mutate(&cfg)
			suite.Error(cfg.Validate())
		})
	}
}

func (suite *CandleTestSuite) TestNewAlert() {
	id := ProcessorID{Symbol: "ETHUSDT", Interval: Interval5m}
	alert := NewAlert(id, RuleKindPriceChange, DirectionDown, "dropped", Candle{Symbol: "ETHUSDT"})

	_, err := uuid.Parse(alert.ID)
	suite.NoError(err)
	suite.Equal(id, alert.Processor)
	suite.Equal(RuleKindPriceChange, alert.Rule)
	suite.Equal(DirectionDown, alert.Direction)
	suite.False(alert.CreatedAt.IsZero())

	other := NewAlert(id, RuleKindPriceChange, DirectionDown, "dropped", Candle{})
	suite.NotEqual(alert.ID, other.ID)
}
