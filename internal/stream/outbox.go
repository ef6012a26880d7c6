package stream

import (
	"context"
	"sync"

	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

type outboundMessage struct {
	id     uint64
	method protocol.Method
	data   []byte
}

// outbox is a FIFO queue drained by the outbound loop. limit 0 is unbounded.
type outbox struct {
	mu     sync.Mutex
	items  []outboundMessage
	limit  int
	closed bool
	signal chan struct{}
}

func newOutbox(limit int) *outbox {
	return &outbox{
		mu:     sync.Mutex{},
		items:  nil,
		limit:  limit,
		closed: false,
		signal: make(chan struct{}, 1),
	}
}

func (o *outbox) push(msg outboundMessage) error {
	o.mu.Lock()

	if o.closed {
		o.mu.Unlock()

		return errors.New(errors.ErrCodeCancelled, "outbound queue is closed")
	}

	if o.limit > 0 && len(o.items) >= o.limit {
		o.mu.Unlock()

		return errors.Newf(errors.ErrCodeOverloaded, "outbound queue is full (%d)", o.limit)
	}

	o.items = append(o.items, msg)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}

	return nil
}

// pop blocks until a message is queued, the queue closes or ctx ends.
func (o *outbox) pop(ctx context.Context) (outboundMessage, error) {
	for {
		o.mu.Lock()

		if len(o.items) > 0 {
			msg := o.items[0]
			o.items[0] = outboundMessage{}
			o.items = o.items[1:]
			o.mu.Unlock()

			return msg, nil
		}

		if o.closed {
			o.mu.Unlock()

			return outboundMessage{}, errors.New(errors.ErrCodeCancelled, "outbound queue is closed")
		}

		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return outboundMessage{}, ctx.Err()
		case <-o.signal:
		}
	}
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.items)
}

// close drops queued messages and wakes the consumer.
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.items = nil
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
}
