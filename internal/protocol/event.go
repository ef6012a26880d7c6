package protocol

import (
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// EventKind is the event-type tag carried in the "e" field of data frames.
type EventKind string

const (
	EventKindKline EventKind = "kline"
)

// Event is a decoded data frame.
type Event interface {
	Kind() EventKind
	// Key groups events that must be handled in order, usually the instrument
	Key() string
}

// Decoder turns a raw data frame into a typed event.
type Decoder func(data []byte) (Event, error)

// decoders is the fixed table of supported event kinds.
var decoders = map[EventKind]Decoder{
	EventKindKline: decodeKline,
}

// IsKnown reports whether frames of this kind can be decoded.
func (k EventKind) IsKnown() bool {
	_, ok := decoders[k]

	return ok
}

// DecodeEvent decodes a data frame of the given kind.
func DecodeEvent(kind EventKind, data []byte) (Event, error) {
	decoder, ok := decoders[kind]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownEvent, "no decoder for event kind %q", kind)
	}

	return decoder(data)
}
