// Package stream implements the subscription protocol over a single
// multiplexed connection: correlated control requests, batched and rate
// limited subscribe/unsubscribe, and dispatch of data frames to handlers.
package stream

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/metrics"
	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/internal/transport"
	"github.com/rxtech-lab/kline-sentinel/internal/worker"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Manager owns one connection and its subscription state.
//
//nolint:interfacebloat
type Manager interface {
	// Start launches the inbound and outbound loops. A manager runs once:
	// calling Start again, or after Stop, returns an AlreadyStarted error.
	Start(ctx context.Context) error
	// Stop cancels both loops, fails in-flight calls with Cancelled, clears
	// all state and closes the transport. Safe without Start and idempotent.
	Stop() error
	// Subscribe activates channels and reports, per channel, whether it is
	// in the reconciled active set.
	Subscribe(ctx context.Context, channels []protocol.ChannelName) (map[protocol.ChannelName]bool, error)
	// Unsubscribe deactivates channels and reports, per channel, whether it
	// is absent from the reconciled active set.
	Unsubscribe(ctx context.Context, channels []protocol.ChannelName) (map[protocol.ChannelName]bool, error)
	// ListSubscriptions asks the server for its subscriptions and replaces the active set.
	ListSubscriptions(ctx context.Context) ([]protocol.ChannelName, error)
	// SetProperty sets a connection property such as "combined".
	SetProperty(ctx context.Context, key string, value bool) error
	// ActiveChannels returns the active set, sorted.
	ActiveChannels() []protocol.ChannelName
	// IsActive reports whether a channel is in the active set.
	IsActive(channel protocol.ChannelName) bool
	// Done is closed once the manager has stopped.
	Done() <-chan struct{}
	// Err returns the transport error that stopped the manager, if any.
	Err() error
}

// ManagerV1 is the Manager implementation.
type ManagerV1 struct {
	transport transport.Transport
	handlers  Handlers
	cfg       Config
	log       *logger.Logger
	metrics   *metrics.Metrics
	dispatch  *worker.KeyedPool

	nextID  atomic.Uint64
	pending *pendingTable
	outbox  *outbox
	limiter *slidingWindowLimiter

	// mu guards everything below
	mu       sync.Mutex
	active   map[protocol.ChannelName]struct{}
	reserved map[protocol.ChannelName]int
	started  bool
	stopped  bool
	err      error

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	loops    sync.WaitGroup
}

// NewManager builds a manager over an open transport.
func NewManager(t transport.Transport, handlers Handlers, cfg Config, log *logger.Logger, collector *metrics.Metrics) (*ManagerV1, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid stream config", err)
	}

	if err := handlers.Validate(); err != nil {
		return nil, err
	}

	log = log.Named("stream")

	dispatch := worker.NewKeyedPool("dispatch", cfg.Dispatch, log)
	dispatch.OnDrop = func(string) {
		collector.TaskDropped("dispatch")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ManagerV1{
		transport: t,
		handlers:  handlers,
		cfg:       cfg,
		log:       log,
		metrics:   collector,
		dispatch:  dispatch,
		nextID:    atomic.Uint64{},
		pending:   newPendingTable(),
		outbox:    newOutbox(cfg.MaxQueueSize),
		limiter:   newSlidingWindowLimiter(cfg.MaxMessagesPerSecond, time.Second),
		mu:        sync.Mutex{},
		active:    make(map[protocol.ChannelName]struct{}),
		reserved:  make(map[protocol.ChannelName]int),
		started:   false,
		stopped:   false,
		err:       nil,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		stopOnce:  sync.Once{},
		loops:     sync.WaitGroup{},
	}, nil
}

func (m *ManagerV1) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started || m.stopped {
		return errors.New(errors.ErrCodeAlreadyStarted, "manager already started")
	}

	m.started = true

	m.loops.Add(2)

	go m.inboundLoop()
	go m.outboundLoop()

	// the supervising context owns the manager's lifetime
	go func() {
		select {
		case <-ctx.Done():
			m.shutdown(nil)
		case <-m.done:
		}
	}()

	m.log.Info("Stream manager started")

	return nil
}

func (m *ManagerV1) Stop() error {
	m.shutdown(nil)
	m.loops.Wait()
	m.dispatch.Close()

	return nil
}

// shutdown runs once. cause is the fatal error that stopped the manager, nil
// for a requested stop.
func (m *ManagerV1) shutdown(cause error) {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.err = cause
		clear(m.active)
		clear(m.reserved)
		m.mu.Unlock()

		m.cancel()
		m.outbox.close()
		m.pending.clear()
		close(m.done)

		if err := m.transport.Close(); err != nil {
			m.log.Debug("Transport close failed", zap.Error(err))
		}

		m.metrics.SetActiveChannels(0)
		m.metrics.SetQueueDepth(0)

		if cause != nil {
			m.log.Error("Stream manager stopped", zap.Error(cause))
		} else {
			m.log.Info("Stream manager stopped")
		}
	})
}

func (m *ManagerV1) Done() <-chan struct{} {
	return m.done
}

func (m *ManagerV1) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.err
}

func (m *ManagerV1) Subscribe(ctx context.Context, channels []protocol.ChannelName) (map[protocol.ChannelName]bool, error) {
	requested, err := normalizeChannels(channels)
	if err != nil {
		return nil, err
	}

	delta, err := m.reserve(requested)
	if err != nil {
		return nil, err
	}
	defer m.release(delta)

	if len(delta) > 0 {
		if err := m.sendBatches(ctx, protocol.MethodSubscribe, delta); err != nil {
			return nil, err
		}

		if _, err := m.ListSubscriptions(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[protocol.ChannelName]bool, len(requested))
	for _, channel := range requested {
		_, ok := m.active[channel]
		result[channel] = ok
	}

	return result, nil
}

func (m *ManagerV1) Unsubscribe(ctx context.Context, channels []protocol.ChannelName) (map[protocol.ChannelName]bool, error) {
	requested, err := normalizeChannels(channels)
	if err != nil {
		return nil, err
	}

	if err := m.checkRunning(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	intersection := make([]protocol.ChannelName, 0, len(requested))
	for _, channel := range requested {
		if _, ok := m.active[channel]; ok {
			intersection = append(intersection, channel)
		}
	}
	m.mu.Unlock()

	if len(intersection) > 0 {
		if err := m.sendBatches(ctx, protocol.MethodUnsubscribe, intersection); err != nil {
			return nil, err
		}

		if _, err := m.ListSubscriptions(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[protocol.ChannelName]bool, len(requested))
	for _, channel := range requested {
		_, ok := m.active[channel]
		result[channel] = !ok
	}

	return result, nil
}

func (m *ManagerV1) ListSubscriptions(ctx context.Context) ([]protocol.ChannelName, error) {
	frame, err := m.call(ctx, protocol.NewListSubscriptionsRequest(m.nextID.Add(1)))
	if err != nil {
		return nil, err
	}

	var names []string
	if len(frame.Result) > 0 {
		if err := json.Unmarshal(frame.Result, &names); err != nil {
			return nil, errors.Wrap(errors.ErrCodeProtocol, "malformed LIST_SUBSCRIPTIONS result", err)
		}
	}

	channels := make([]protocol.ChannelName, 0, len(names))
	active := make(map[protocol.ChannelName]struct{}, len(names))

	for _, name := range names {
		channel := protocol.ChannelName(name)
		if err := channel.Validate(); err != nil {
			m.log.Warn("Server reported a channel outside the kline convention", zap.String("channel", name))
		}

		if _, dup := active[channel]; dup {
			continue
		}

		active[channel] = struct{}{}
		channels = append(channels, channel)
	}

	m.mu.Lock()
	if !m.stopped {
		m.active = active
	}
	m.mu.Unlock()

	m.metrics.SetActiveChannels(len(active))
	slices.Sort(channels)

	return channels, nil
}

func (m *ManagerV1) SetProperty(ctx context.Context, key string, value bool) error {
	_, err := m.call(ctx, protocol.NewSetPropertyRequest(m.nextID.Add(1), key, value))

	return err
}

func (m *ManagerV1) ActiveChannels() []protocol.ChannelName {
	m.mu.Lock()
	defer m.mu.Unlock()

	channels := make([]protocol.ChannelName, 0, len(m.active))
	for channel := range m.active {
		channels = append(channels, channel)
	}

	slices.Sort(channels)

	return channels
}

func (m *ManagerV1) IsActive(channel protocol.ChannelName) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.active[channel]

	return ok
}

// reserve computes the channels to subscribe and holds capacity for the ones
// no other in-flight call holds yet. The capacity check happens here, before
// any traffic.
func (m *ManagerV1) reserve(requested []protocol.ChannelName) ([]protocol.ChannelName, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopped {
		return nil, m.notRunningError()
	}

	var delta, fresh []protocol.ChannelName

	for _, channel := range requested {
		if _, ok := m.active[channel]; ok {
			continue
		}

		delta = append(delta, channel)

		if m.reserved[channel] == 0 {
			fresh = append(fresh, channel)
		}
	}

	// a reserved channel that a listing already made active is counted once
	pending := 0
	for channel := range m.reserved {
		if _, ok := m.active[channel]; !ok {
			pending++
		}
	}

	total := len(m.active) + pending + len(fresh)
	if total > m.cfg.MaxStreams {
		return nil, errors.Newf(
			errors.ErrCodeCapacityExceeded,
			"subscribing %d channels would make %d active, limit is %d",
			len(fresh), total, m.cfg.MaxStreams,
		)
	}

	for _, channel := range delta {
		m.reserved[channel]++
	}

	return delta, nil
}

func (m *ManagerV1) release(channels []protocol.ChannelName) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, channel := range channels {
		if m.reserved[channel] <= 1 {
			delete(m.reserved, channel)

			continue
		}

		m.reserved[channel]--
	}
}

// sendBatches splits channels into requests of at most BatchSize and waits
// for all of them concurrently.
func (m *ManagerV1) sendBatches(ctx context.Context, method protocol.Method, channels []protocol.ChannelName) error {
	g, gctx := errgroup.WithContext(ctx)

	for batch := range slices.Chunk(channels, m.cfg.BatchSize) {
		request := protocol.NewSubscribeRequest(m.nextID.Add(1), batch)
		if method == protocol.MethodUnsubscribe {
			request = protocol.NewUnsubscribeRequest(request.ID, batch)
		}

		g.Go(func() error {
			_, err := m.call(gctx, request)

			return err
		})
	}

	return g.Wait()
}

// call sends a request and waits for the response with the same id.
func (m *ManagerV1) call(ctx context.Context, request protocol.Request) (protocol.Frame, error) {
	if err := request.Validate(m.cfg.BatchSize); err != nil {
		return protocol.Frame{}, err
	}

	if err := m.checkRunning(); err != nil {
		return protocol.Frame{}, err
	}

	data, err := json.Marshal(request)
	if err != nil {
		return protocol.Frame{}, errors.Wrap(errors.ErrCodeInvalidRequest, "failed to encode request", err)
	}

	started := time.Now()
	response := m.pending.register(request.ID)

	if err := m.outbox.push(outboundMessage{id: request.ID, method: request.Method, data: data}); err != nil {
		m.pending.remove(request.ID)

		return protocol.Frame{}, err
	}

	m.metrics.SetQueueDepth(m.outbox.len())

	timer := time.NewTimer(m.cfg.RequestTimeout)
	defer timer.Stop()

	method := string(request.Method)

	select {
	case frame := <-response:
		if frame.Error != nil {
			m.metrics.ObserveRequest(method, "rejected", time.Since(started))

			return frame, errors.Wrapf(errors.ErrCodeProtocol, frame.Error, "%s request %d rejected", request.Method, request.ID)
		}

		m.metrics.ObserveRequest(method, "ok", time.Since(started))

		return frame, nil
	case <-timer.C:
		m.pending.remove(request.ID)
		m.metrics.ObserveRequest(method, "timeout", time.Since(started))

		return protocol.Frame{}, errors.Newf(errors.ErrCodeCorrelationTimeout,
			"no response to %s request %d within %s", request.Method, request.ID, m.cfg.RequestTimeout)
	case <-ctx.Done():
		m.pending.remove(request.ID)
		m.metrics.ObserveRequest(method, "cancelled", time.Since(started))

		return protocol.Frame{}, errors.Wrapf(errors.ErrCodeCancelled, ctx.Err(), "%s request %d cancelled", request.Method, request.ID)
	case <-m.done:
		m.metrics.ObserveRequest(method, "cancelled", time.Since(started))

		return protocol.Frame{}, errors.Wrapf(errors.ErrCodeCancelled, m.Err(), "%s request %d cancelled: manager stopped", request.Method, request.ID)
	}
}

func (m *ManagerV1) checkRunning() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopped {
		return m.notRunningError()
	}

	return nil
}

// notRunningError must be called with mu held.
func (m *ManagerV1) notRunningError() error {
	if m.stopped {
		return errors.Wrap(errors.ErrCodeCancelled, "manager stopped", m.err)
	}

	return errors.New(errors.ErrCodeNotStarted, "manager not started")
}

func (m *ManagerV1) outboundLoop() {
	defer m.loops.Done()

	for {
		msg, err := m.outbox.pop(m.ctx)
		if err != nil {
			return
		}

		// the caller gave up already, keep the rate budget for live requests
		if !m.pending.has(msg.id) {
			m.log.Debug("Skipping abandoned request", zap.Uint64("id", msg.id))

			continue
		}

		if err := m.limiter.Wait(m.ctx); err != nil {
			return
		}

		err = m.transport.Send(m.ctx, msg.data)
		m.limiter.Record(time.Now())

		if err != nil {
			if m.ctx.Err() != nil {
				return
			}

			if !errors.IsFatal(err) {
				err = errors.Wrap(errors.ErrCodeTransportWrite, "failed to send request", err)
			}

			m.shutdown(err)

			return
		}

		m.metrics.RequestSent(string(msg.method))
		m.metrics.SetQueueDepth(m.outbox.len())
		m.log.Debug("Sent request", zap.Uint64("id", msg.id), zap.String("method", string(msg.method)))
	}
}

func (m *ManagerV1) inboundLoop() {
	defer m.loops.Done()

	for {
		data, err := m.transport.Receive(m.ctx)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}

			if !errors.IsFatal(err) {
				err = errors.Wrap(errors.ErrCodeTransportRead, "failed to receive frame", err)
			}

			m.shutdown(err)

			return
		}

		m.handleFrame(data)
	}
}

func (m *ManagerV1) handleFrame(data []byte) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		m.metrics.FrameReceived("malformed")
		m.log.Warn("Dropping malformed frame", zap.Error(err), zap.ByteString("frame", truncate(data)))

		return
	}

	m.metrics.FrameReceived(frame.Kind.String())

	switch frame.Kind {
	case protocol.FrameKindResponse:
		if !m.pending.resolve(frame) {
			m.log.Warn("Response for unknown request id", zap.Uint64("id", frame.ID))
		}
	case protocol.FrameKindError:
		m.log.Warn("Server reported an error",
			zap.Int("code", frame.Error.Code),
			zap.String("msg", frame.Error.Msg),
		)
	case protocol.FrameKindEvent:
		m.dispatchEvent(frame)
	default:
		m.log.Warn("Dropping unexpected frame", zap.ByteString("frame", truncate(data)))
	}
}

func (m *ManagerV1) dispatchEvent(frame protocol.Frame) {
	handler, ok := m.handlers[frame.Event]
	if !ok {
		m.log.Debug("No handler for event kind", zap.String("kind", string(frame.Event)))

		return
	}

	event, err := protocol.DecodeEvent(frame.Event, frame.Raw)
	if err != nil {
		m.log.Warn("Dropping undecodable event", zap.String("kind", string(frame.Event)), zap.Error(err))

		return
	}

	err = m.dispatch.Submit(event.Key(), func(ctx context.Context) error {
		return handler(ctx, event)
	})
	if err != nil {
		m.log.Warn("Dropping event", zap.String("kind", string(frame.Event)), zap.String("key", event.Key()), zap.Error(err))
	}
}

// normalizeChannels validates, dedupes and sorts channels so batching is
// deterministic.
func normalizeChannels(channels []protocol.ChannelName) ([]protocol.ChannelName, error) {
	if len(channels) == 0 {
		return nil, errors.New(errors.ErrCodeMissingParameter, "at least one channel is required")
	}

	for _, channel := range channels {
		if err := channel.Validate(); err != nil {
			return nil, err
		}
	}

	normalized := slices.Clone(channels)
	slices.Sort(normalized)

	return slices.Compact(normalized), nil
}

func truncate(data []byte) []byte {
	const limit = 256
	if len(data) > limit {
		return data[:limit]
	}

	return data
}
