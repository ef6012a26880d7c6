package rule

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
)

// PriceChange fires when the close moved at least PriceChangePercent from the
// first to the last candle of a configured window, checked from the smallest
// window up.
type PriceChange struct{}

func NewPriceChange() *PriceChange {
	return &PriceChange{}
}

func (p *PriceChange) Kind() types.RuleKind {
	return types.RuleKindPriceChange
}

func (p *PriceChange) Evaluate(ctx context.Context, in Input) (optional.Option[types.Alert], error) {
	n := len(in.Window)
	if n < 2 {
		return optional.None[types.Alert](), nil
	}

	closes := make([]float64, n)
	for i, candle := range in.Window {
		closes[i] = candle.Close.InexactFloat64()
	}

	last := in.Window[n-1]

	for _, w := range in.Config.SortedWindows() {
		if err := ctx.Err(); err != nil {
			return optional.None[types.Alert](), err
		}

		if w < 2 {
			continue
		}

		if n < w {
			break
		}

		roc := talib.Roc(closes[n-w:], w-1)[w-1]
		if math.Abs(roc) < in.Config.PriceChangePercent {
			continue
		}

		direction := types.DirectionUp
		if roc < 0 {
			direction = types.DirectionDown
		}

		if !in.Config.CheckType.Allows(direction) {
			continue
		}

		message := fmt.Sprintf("%s close moved %+.2f%% over %d candles to %s", in.Processor, roc, w, last.Close.String())

		return optional.Some(types.NewAlert(in.Processor, p.Kind(), direction, message, last)), nil
	}

	return optional.None[types.Alert](), nil
}
