// Package rule holds the rule evaluators a processor can run against its
// rolling window.
package rule

import (
	"context"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
)

// Input is what a rule sees on each run. Window is a private copy, oldest first.
type Input struct {
	Processor types.ProcessorID
	Window    []types.Candle
	Config    types.ProcessorConfig
}

// Latest returns the most recent candle of the window.
func (in Input) Latest() optional.Option[types.Candle] {
	if len(in.Window) == 0 {
		return optional.None[types.Candle]()
	}

	return optional.Some(in.Window[len(in.Window)-1])
}

// Rule evaluates a window and optionally raises an alert.
type Rule interface {
	Kind() types.RuleKind
	Evaluate(ctx context.Context, in Input) (optional.Option[types.Alert], error)
}
