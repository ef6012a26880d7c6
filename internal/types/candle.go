package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is a kline bucket length as named on the exchange wire.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// Intervals lists every supported interval, shortest first.
var Intervals = []Interval{
	Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
	Interval1h, Interval2h, Interval4h, Interval6h, Interval8h, Interval12h,
	Interval1d, Interval3d, Interval1w, Interval1M,
}

// IsValid reports whether the interval is one of the supported tokens.
// The comparison is case sensitive: 1m is a minute, 1M is a month.
func (i Interval) IsValid() bool {
	for _, candidate := range Intervals {
		if candidate == i {
			return true
		}
	}

	return false
}

// Duration returns the bucket length. Months are counted as 30 days.
func (i Interval) Duration() time.Duration {
	if !i.IsValid() {
		return 0
	}

	unit := i[len(i)-1]
	n := time.Duration(0)

	for _, r := range i[:len(i)-1] {
		n = n*10 + time.Duration(r-'0')
	}

	switch unit {
	case 'm':
		return n * time.Minute
	case 'h':
		return n * time.Hour
	case 'd':
		return n * 24 * time.Hour
	case 'w':
		return n * 7 * 24 * time.Hour
	default:
		return n * 30 * 24 * time.Hour
	}
}

// ProcessorID identifies a processor by instrument and interval.
// Symbols are stored upper-cased so BTCUSDT and btcusdt share a processor.
type ProcessorID struct {
	Symbol   string   `json:"symbol"`
	Interval Interval `json:"interval"`
}

// NewProcessorID normalizes the symbol and validates the interval.
func NewProcessorID(symbol string, interval Interval) (ProcessorID, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ProcessorID{}, fmt.Errorf("symbol must not be empty")
	}

	if !interval.IsValid() {
		return ProcessorID{}, fmt.Errorf("unsupported interval %q", interval)
	}

	return ProcessorID{Symbol: symbol, Interval: interval}, nil
}

func (p ProcessorID) String() string {
	return p.Symbol + "@" + string(p.Interval)
}

// Candle is one decoded kline update. A candle stays open while the exchange
// keeps accumulating its bucket and is final once Closed is set.
type Candle struct {
	// Symbol is the upper-cased instrument
	Symbol string `json:"symbol"`
	// Interval is the bucket length
	Interval Interval `json:"interval"`
	// OpenTime is the start of the bucket and identifies it inside a window
	OpenTime time.Time `json:"open_time"`
	// CloseTime is the end of the bucket
	CloseTime time.Time `json:"close_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	// Volume is the base asset volume
	Volume decimal.Decimal `json:"volume"`
	// QuoteVolume is the quote asset volume
	QuoteVolume decimal.Decimal `json:"quote_volume"`
	// Trades is the number of trades in the bucket
	Trades int64 `json:"trades"`
	// Closed is true once the bucket has finished accumulating
	Closed bool `json:"closed"`
}

// ProcessorID returns the identity of the processor that owns the candle.
func (c Candle) ProcessorID() ProcessorID {
	return ProcessorID{Symbol: c.Symbol, Interval: c.Interval}
}

// IsUp reports whether the candle closed above its open.
func (c Candle) IsUp() bool {
	return c.Close.GreaterThan(c.Open)
}
