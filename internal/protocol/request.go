package protocol

import (
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Method is a control-plane request method.
type Method string

const (
	MethodSubscribe         Method = "SUBSCRIBE"
	MethodUnsubscribe       Method = "UNSUBSCRIBE"
	MethodListSubscriptions Method = "LIST_SUBSCRIPTIONS"
	MethodSetProperty       Method = "SET_PROPERTY"
)

// Request is a control-plane message. Params is null on the wire for
// LIST_SUBSCRIPTIONS.
type Request struct {
	Method Method `json:"method"`
	Params []any  `json:"params"`
	ID     uint64 `json:"id"`
}

// NewSubscribeRequest builds a SUBSCRIBE request for the channels.
func NewSubscribeRequest(id uint64, channels []ChannelName) Request {
	return Request{Method: MethodSubscribe, Params: channelParams(channels), ID: id}
}

// NewUnsubscribeRequest builds an UNSUBSCRIBE request for the channels.
func NewUnsubscribeRequest(id uint64, channels []ChannelName) Request {
	return Request{Method: MethodUnsubscribe, Params: channelParams(channels), ID: id}
}

// NewListSubscriptionsRequest builds a LIST_SUBSCRIPTIONS request.
func NewListSubscriptionsRequest(id uint64) Request {
	return Request{Method: MethodListSubscriptions, Params: nil, ID: id}
}

// NewSetPropertyRequest builds a SET_PROPERTY request.
func NewSetPropertyRequest(id uint64, key string, value bool) Request {
	return Request{Method: MethodSetProperty, Params: []any{key, value}, ID: id}
}

func channelParams(channels []ChannelName) []any {
	params := make([]any, 0, len(channels))
	for _, channel := range channels {
		params = append(params, string(channel))
	}

	return params
}

// Validate checks the request shape. maxBatch bounds the number of channels
// carried by SUBSCRIBE and UNSUBSCRIBE.
func (r Request) Validate(maxBatch int) error {
	if r.ID == 0 {
		return errors.New(errors.ErrCodeInvalidRequest, "request id must be set")
	}

	switch r.Method {
	case MethodSubscribe, MethodUnsubscribe:
		if len(r.Params) == 0 {
			return errors.Newf(errors.ErrCodeInvalidRequest, "%s requires at least one channel", r.Method)
		}

		if maxBatch > 0 && len(r.Params) > maxBatch {
			return errors.Newf(errors.ErrCodeInvalidRequest, "%s carries %d channels, limit is %d", r.Method, len(r.Params), maxBatch)
		}

		for _, param := range r.Params {
			raw, ok := param.(string)
			if !ok {
				return errors.Newf(errors.ErrCodeInvalidRequest, "%s param %v is not a string", r.Method, param)
			}

			if _, err := ParseChannelName(raw); err != nil {
				return err
			}
		}
	case MethodListSubscriptions:
		if len(r.Params) != 0 {
			return errors.New(errors.ErrCodeInvalidRequest, "LIST_SUBSCRIPTIONS takes no params")
		}
	case MethodSetProperty:
		if len(r.Params) != 2 {
			return errors.Newf(errors.ErrCodeInvalidRequest, "SET_PROPERTY takes exactly 2 params, got %d", len(r.Params))
		}

		key, ok := r.Params[0].(string)
		if !ok || key == "" {
			return errors.New(errors.ErrCodeInvalidRequest, "SET_PROPERTY key must be a non-empty string")
		}

		if _, ok := r.Params[1].(bool); !ok {
			return errors.New(errors.ErrCodeInvalidRequest, "SET_PROPERTY value must be a bool")
		}
	default:
		return errors.Newf(errors.ErrCodeInvalidRequest, "unknown method %q", r.Method)
	}

	return nil
}
