// Package streamtest provides an in-memory exchange that speaks the
// subscription protocol, for tests of code built on the stream manager.
package streamtest

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Responder overrides the reply to a request. Returning nil sends no reply.
type Responder func(request protocol.Request) []byte

// Exchange implements transport.Transport against an in-memory subscription set.
type Exchange struct {
	mu            sync.Mutex
	subscriptions map[string]struct{}
	requests      []protocol.Request
	sentAt        []time.Time
	held          [][]byte
	hold          bool
	reject        map[string]bool
	responder     Responder
	sendErr       error
	failErr       error

	inbound   chan []byte
	failed    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	failOnce  sync.Once
}

// NewExchange creates an exchange with no subscriptions.
func NewExchange() *Exchange {
	return &Exchange{
		mu:            sync.Mutex{},
		subscriptions: make(map[string]struct{}),
		requests:      nil,
		sentAt:        nil,
		held:          nil,
		hold:          false,
		reject:        make(map[string]bool),
		responder:     nil,
		sendErr:       nil,
		failErr:       nil,
		inbound:       make(chan []byte, 4096),
		failed:        make(chan struct{}),
		closed:        make(chan struct{}),
		closeOnce:     sync.Once{},
		failOnce:      sync.Once{},
	}
}

func (e *Exchange) Send(_ context.Context, data []byte) error {
	select {
	case <-e.closed:
		return errors.New(errors.ErrCodeTransportClosed, "exchange closed")
	default:
	}

	var request protocol.Request
	if err := json.Unmarshal(data, &request); err != nil {
		return fmt.Errorf("exchange received invalid request: %w", err)
	}

	e.mu.Lock()
	if e.sendErr != nil {
		err := e.sendErr
		e.mu.Unlock()

		return err
	}

	e.requests = append(e.requests, request)
	e.sentAt = append(e.sentAt, time.Now())
	responder := e.responder
	e.mu.Unlock()

	var reply []byte
	if responder != nil {
		reply = responder(request)
	} else {
		reply = e.defaultReply(request)
	}

	if reply == nil {
		return nil
	}

	e.mu.Lock()
	if e.hold {
		e.held = append(e.held, reply)
		e.mu.Unlock()

		return nil
	}
	e.mu.Unlock()

	e.Push(reply)

	return nil
}

func (e *Exchange) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-e.inbound:
		return data, nil
	case <-e.failed:
		e.mu.Lock()
		defer e.mu.Unlock()

		return nil, e.failErr
	case <-e.closed:
		return nil, errors.New(errors.ErrCodeTransportClosed, "exchange closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Exchange) Close() error {
	e.closeOnce.Do(func() { close(e.closed) })

	return nil
}

// Closed reports whether Close was called.
func (e *Exchange) Closed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}

// Push queues a raw frame for the client.
func (e *Exchange) Push(frame []byte) {
	select {
	case e.inbound <- frame:
	case <-e.closed:
	}
}

// PushKline queues a kline frame for the candle.
func (e *Exchange) PushKline(candle types.Candle) {
	data, err := json.Marshal(protocol.NewKlineEvent(candle, candle.OpenTime))
	if err != nil {
		panic(err)
	}

	e.Push(data)
}

// Fail breaks the connection: pending and future Receive calls return err.
func (e *Exchange) Fail(err error) {
	e.mu.Lock()
	e.failErr = err
	e.mu.Unlock()

	e.failOnce.Do(func() { close(e.failed) })
}

// SetSendError makes every following Send fail.
func (e *Exchange) SetSendError(err error) {
	e.mu.Lock()
	e.sendErr = err
	e.mu.Unlock()
}

// SetResponder replaces the default replies.
func (e *Exchange) SetResponder(responder Responder) {
	e.mu.Lock()
	e.responder = responder
	e.mu.Unlock()
}

// Reject makes the exchange acknowledge but never activate the channel.
func (e *Exchange) Reject(channel string) {
	e.mu.Lock()
	e.reject[channel] = true
	e.mu.Unlock()
}

// Seed adds subscriptions without a request.
func (e *Exchange) Seed(channels ...string) {
	e.mu.Lock()
	for _, channel := range channels {
		e.subscriptions[channel] = struct{}{}
	}
	e.mu.Unlock()
}

// Hold keeps replies back until Release.
func (e *Exchange) Hold() {
	e.mu.Lock()
	e.hold = true
	e.mu.Unlock()
}

// Held returns the number of replies held back.
func (e *Exchange) Held() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.held)
}

// Release delivers held replies, newest first when reverse is set, and stops holding.
func (e *Exchange) Release(reverse bool) {
	e.mu.Lock()
	held := e.held
	e.held = nil
	e.hold = false
	e.mu.Unlock()

	if reverse {
		slices.Reverse(held)
	}

	for _, reply := range held {
		e.Push(reply)
	}
}

// Requests returns every request received so far.
func (e *Exchange) Requests() []protocol.Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.requests)
}

// RequestsFor returns the requests of one method.
func (e *Exchange) RequestsFor(method protocol.Method) []protocol.Request {
	var out []protocol.Request

	for _, request := range e.Requests() {
		if request.Method == method {
			out = append(out, request)
		}
	}

	return out
}

// SentAt returns the arrival time of every request.
func (e *Exchange) SentAt() []time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.sentAt)
}

// Subscriptions returns the server side subscription set, sorted.
func (e *Exchange) Subscriptions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.subscriptions))
	for channel := range e.subscriptions {
		out = append(out, channel)
	}

	slices.Sort(out)

	return out
}

func (e *Exchange) defaultReply(request protocol.Request) []byte {
	var result any

	e.mu.Lock()
	switch request.Method {
	case protocol.MethodSubscribe:
		for _, param := range request.Params {
			channel, _ := param.(string)
			if !e.reject[channel] {
				e.subscriptions[channel] = struct{}{}
			}
		}
	case protocol.MethodUnsubscribe:
		for _, param := range request.Params {
			channel, _ := param.(string)
			delete(e.subscriptions, channel)
		}
	case protocol.MethodListSubscriptions:
		list := make([]string, 0, len(e.subscriptions))
		for channel := range e.subscriptions {
			list = append(list, channel)
		}

		slices.Sort(list)
		result = list
	case protocol.MethodSetProperty:
	}
	e.mu.Unlock()

	return Reply(request.ID, result)
}

// Reply encodes a successful control reply.
func Reply(id uint64, result any) []byte {
	data, err := json.Marshal(map[string]any{"result": result, "id": id})
	if err != nil {
		panic(err)
	}

	return data
}

// ErrorReply encodes a rejected control reply.
func ErrorReply(id uint64, code int, msg string) []byte {
	data, err := json.Marshal(map[string]any{
		"error": map[string]any{"code": code, "msg": msg},
		"id":    id,
	})
	if err != nil {
		panic(err)
	}

	return data
}
