package rule

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
)

// HighVolumeRise fires when the latest candle trades at least
// VolumeRiseFactor times the average volume of the other w-1 candles of a
// window of length w, for the smallest configured window that qualifies.
type HighVolumeRise struct{}

func NewHighVolumeRise() *HighVolumeRise {
	return &HighVolumeRise{}
}

func (h *HighVolumeRise) Kind() types.RuleKind {
	return types.RuleKindHighVolumeRise
}

func (h *HighVolumeRise) Evaluate(ctx context.Context, in Input) (optional.Option[types.Alert], error) {
	n := len(in.Window)
	if n < 2 {
		return optional.None[types.Alert](), nil
	}

	last := in.Window[n-1]

	direction := types.DirectionDown
	if last.IsUp() {
		direction = types.DirectionUp
	}

	if !in.Config.CheckType.Allows(direction) {
		return optional.None[types.Alert](), nil
	}

	volumes := make([]float64, n)
	for i, candle := range in.Window {
		volumes[i] = candle.Volume.InexactFloat64()
	}

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

		average := talib.Sma(volumes[n-w:n-1], w-1)[w-2]
		if average <= 0 {
			continue
		}

		ratio := volumes[n-1] / average
		if ratio < in.Config.VolumeRiseFactor {
			continue
		}

		message := fmt.Sprintf(
			"%s volume %.2fx its %d candle average (%s vs %.4f), close %s, %s",
			in.Processor, ratio, w, last.Volume.String(), average, last.Close.String(), direction,
		)

		return optional.Some(types.NewAlert(in.Processor, h.Kind(), direction, message, last)), nil
	}

	return optional.None[types.Alert](), nil
}
