package stream

import (
	"context"

	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Handler consumes decoded events of one kind.
type Handler func(ctx context.Context, event protocol.Event) error

// Handlers maps event kinds to their handler. The table is fixed once the
// manager is built.
type Handlers map[protocol.EventKind]Handler

// Validate rejects kinds without a decoder and nil handlers.
func (h Handlers) Validate() error {
	for kind, handler := range h {
		if !kind.IsKnown() {
			return errors.Newf(errors.ErrCodeUnknownEvent, "no decoder for event kind %q", kind)
		}

		if handler == nil {
			return errors.Newf(errors.ErrCodeInvalidParameter, "handler for %q is nil", kind)
		}
	}

	return nil
}
