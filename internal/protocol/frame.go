package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// FrameKind classifies an inbound frame.
type FrameKind int

const (
	FrameKindUnknown FrameKind = iota
	// FrameKindResponse carries a correlation id
	FrameKindResponse
	// FrameKindError carries an error code without a correlation id
	FrameKindError
	// FrameKindEvent carries an event-kind tag
	FrameKindEvent
)

func (k FrameKind) String() string {
	switch k {
	case FrameKindResponse:
		return "response"
	case FrameKindError:
		return "error"
	case FrameKindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// ErrorPayload is the error reported by the server for a request or a connection.
type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e ErrorPayload) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Msg)
}

// Frame is a classified inbound frame. Raw keeps the original bytes so the
// event decoder can parse kind-specific payloads.
type Frame struct {
	Kind   FrameKind
	ID     uint64
	Result json.RawMessage
	// Error is set on responses the server rejected and on error frames
	Error *ErrorPayload
	Event EventKind
	// Stream names the channel of an event that arrived in a combined envelope
	Stream ChannelName
	Raw    []byte
}

// DecodeFrame classifies a frame. A correlation id wins over an error code,
// which wins over an event tag. Events in the combined envelope
// {"stream": ..., "data": {...}} are unwrapped and Raw holds the inner payload.
func DecodeFrame(data []byte) (Frame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Frame{Kind: FrameKindUnknown, Raw: data}, errors.Wrap(errors.ErrCodeProtocol, "frame is not a json object", err)
	}

	if rawStream, ok := fields["stream"]; ok {
		if rawData, ok := fields["data"]; ok && !isNull(rawData) {
			return decodeCombined(rawStream, rawData)
		}
	}

	frame := Frame{Kind: FrameKindUnknown, Raw: data}

	if rawErr, ok := fields["error"]; ok && !isNull(rawErr) {
		var payload ErrorPayload
		if err := json.Unmarshal(rawErr, &payload); err != nil {
			return frame, errors.Wrap(errors.ErrCodeProtocol, "malformed error payload", err)
		}

		frame.Error = &payload
	}

	if rawID, ok := fields["id"]; ok && !isNull(rawID) {
		if err := json.Unmarshal(rawID, &frame.ID); err != nil {
			return frame, errors.Wrap(errors.ErrCodeProtocol, "malformed correlation id", err)
		}

		frame.Kind = FrameKindResponse
		frame.Result = fields["result"]

		return frame, nil
	}

	if rawCode, ok := fields["code"]; ok {
		var payload ErrorPayload
		if err := json.Unmarshal(rawCode, &payload.Code); err != nil {
			return frame, errors.Wrap(errors.ErrCodeProtocol, "malformed error code", err)
		}

		if rawMsg, ok := fields["msg"]; ok {
			_ = json.Unmarshal(rawMsg, &payload.Msg)
		}

		frame.Kind = FrameKindError
		frame.Error = &payload

		return frame, nil
	}

	if frame.Error != nil {
		frame.Kind = FrameKindError

		return frame, nil
	}

	if rawEvent, ok := fields["e"]; ok {
		var event string
		if err := json.Unmarshal(rawEvent, &event); err != nil {
			return frame, errors.Wrap(errors.ErrCodeProtocol, "malformed event tag", err)
		}

		frame.Kind = FrameKindEvent
		frame.Event = EventKind(event)

		return frame, nil
	}

	return frame, nil
}

func decodeCombined(rawStream, rawData json.RawMessage) (Frame, error) {
	var stream string
	if err := json.Unmarshal(rawStream, &stream); err != nil {
		return Frame{Kind: FrameKindUnknown, Raw: rawData}, errors.Wrap(errors.ErrCodeProtocol, "malformed stream name", err)
	}

	frame, err := DecodeFrame(rawData)
	if err != nil {
		return frame, err
	}

	frame.Stream = ChannelName(stream)

	return frame, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
