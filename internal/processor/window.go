package processor

import (
	"slices"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
)

// window is the rolling candle window of one processor, oldest first. A
// candle with the open time of the tail replaces it in place, so the open
// bucket is updated until its successor arrives.
type window struct {
	candles []types.Candle
	limit   int
}

func newWindow(limit int) *window {
	return &window{
		candles: make([]types.Candle, 0, limit),
		limit:   limit,
	}
}

// update applies a candle and reports whether it was accepted. Candles older
// than the tail are stale and rejected. A newer open time implicitly closes
// the previous bucket, whether or not it was ever marked closed.
func (w *window) update(candle types.Candle) bool {
	if n := len(w.candles); n > 0 {
		tail := &w.candles[n-1]

		switch {
		case candle.OpenTime.Equal(tail.OpenTime):
			*tail = candle

			return true
		case candle.OpenTime.Before(tail.OpenTime):
			return false
		}
	}

	w.candles = append(w.candles, candle)
	w.trim()

	return true
}

func (w *window) resize(limit int) {
	w.limit = limit
	w.trim()
}

func (w *window) trim() {
	if excess := len(w.candles) - w.limit; excess > 0 {
		w.candles = slices.Delete(w.candles, 0, excess)
	}
}

func (w *window) len() int {
	return len(w.candles)
}

func (w *window) snapshot() []types.Candle {
	return slices.Clone(w.candles)
}

func (w *window) latest() (types.Candle, bool) {
	if len(w.candles) == 0 {
		return types.Candle{}, false
	}

	return w.candles[len(w.candles)-1], true
}
