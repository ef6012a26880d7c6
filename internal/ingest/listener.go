// Package ingest turns stream events into processor updates and keeps the
// desired symbol set in step with the subscription manager.
package ingest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rxtech-lab/kline-sentinel/internal/history"
	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/processor"
	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/internal/stream"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Listener adapts kline events to the processor registry.
type Listener interface {
	// AddSymbols subscribes every configured interval of the symbols and
	// creates processors for the channels that became active.
	AddSymbols(ctx context.Context, symbols []string) (map[protocol.ChannelName]bool, error)
	// RemoveSymbols unsubscribes the symbols and removes their processors.
	RemoveSymbols(ctx context.Context, symbols []string) (map[protocol.ChannelName]bool, error)
	// Symbols returns the desired symbol set, sorted.
	Symbols() []string
	HandleEvent(ctx context.Context, event protocol.Event) error
	// Attach replaces the manager used for subscriptions.
	Attach(manager stream.Manager)
	// Resubscribe subscribes the desired symbols on the attached manager.
	Resubscribe(ctx context.Context) error
	Handlers() stream.Handlers
}

// KlineListener is the Listener implementation.
type KlineListener struct {
	cfg      Config
	registry processor.Registry
	fetcher  history.Fetcher
	log      *logger.Logger

	mu      sync.RWMutex
	manager stream.Manager
	symbols map[string]struct{}
}

// NewKlineListener creates a listener. fetcher may be nil, in which case new
// processors start empty.
func NewKlineListener(cfg Config, registry processor.Registry, fetcher history.Fetcher, log *logger.Logger) (*KlineListener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &KlineListener{
		cfg:      cfg,
		registry: registry,
		fetcher:  fetcher,
		log:      log.Named("ingest"),
		mu:       sync.RWMutex{},
		manager:  nil,
		symbols:  make(map[string]struct{}),
	}, nil
}

func (l *KlineListener) Handlers() stream.Handlers {
	return stream.Handlers{protocol.EventKindKline: l.HandleEvent}
}

func (l *KlineListener) Attach(manager stream.Manager) {
	l.mu.Lock()
	l.manager = manager
	l.mu.Unlock()
}

func (l *KlineListener) Symbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	symbols := make([]string, 0, len(l.symbols))
	for symbol := range l.symbols {
		symbols = append(symbols, symbol)
	}

	slices.Sort(symbols)

	return symbols
}

// AddSymbols keeps a symbol in the desired set only when at least one of its
// channels became active. A failed subscribe leaves the desired set untouched.
func (l *KlineListener) AddSymbols(ctx context.Context, symbols []string) (map[protocol.ChannelName]bool, error) {
	normalized, channels, err := l.channelsFor(symbols)
	if err != nil {
		return nil, err
	}

	results, err := l.subscribe(ctx, channels)
	if err != nil {
		return results, err
	}

	l.mu.Lock()
	for _, symbol := range normalized {
		if l.anyActive(symbol, results) {
			l.symbols[symbol] = struct{}{}

			continue
		}

		l.log.Warn("No channel of symbol became active", zap.String("symbol", symbol))
	}
	l.mu.Unlock()

	return results, nil
}

func (l *KlineListener) RemoveSymbols(ctx context.Context, symbols []string) (map[protocol.ChannelName]bool, error) {
	normalized, channels, err := l.channelsFor(symbols)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	for _, symbol := range normalized {
		delete(l.symbols, symbol)
	}
	l.mu.Unlock()

	manager, err := l.currentManager()
	if err != nil {
		return nil, err
	}

	results, err := manager.Unsubscribe(ctx, channels)
	if err != nil {
		return results, err
	}

	for channel, removed := range results {
		if !removed {
			continue
		}

		if id, err := channel.ProcessorID(); err == nil {
			l.registry.RemoveProcessor(id)
		}
	}

	return results, nil
}

// Resubscribe subscribes the desired symbols one symbol at a time so a
// rejected or over-capacity symbol does not hold back the others. Processors
// whose channel is not active afterwards are removed. Symbols the server
// rejected or that exceed capacity leave the desired set; other failures keep
// them for the next session.
func (l *KlineListener) Resubscribe(ctx context.Context) error {
	symbols := l.Symbols()
	if len(symbols) == 0 {
		return nil
	}

	manager, err := l.currentManager()
	if err != nil {
		return err
	}

	var errs error

	restored := 0

	for _, symbol := range symbols {
		_, channels, err := l.channelsFor([]string{symbol})
		if err != nil {
			errs = multierr.Append(errs, err)

			continue
		}

		results, err := l.subscribe(ctx, channels)
		if err != nil {
			l.log.Warn("Resubscribe failed", zap.String("symbol", symbol), zap.Error(err))
			errs = multierr.Append(errs, err)

			// the session is over; keep every processor for the next one
			if ctx.Err() != nil || stopped(manager) {
				return errs
			}
		}

		active := 0

		for _, channel := range channels {
			if manager.IsActive(channel) {
				active++

				continue
			}

			if id, err := channel.ProcessorID(); err == nil && l.registry.RemoveProcessor(id) {
				l.log.Warn("Removed processor of channel not restored", zap.String("channel", channel.String()))
			}
		}

		restored += active

		if active == 0 && (err == nil || errors.HasCode(err, errors.ErrCodeCapacityExceeded)) {
			l.forget(symbol)
		}

		if err == nil && !l.anyActive(symbol, results) {
			l.log.Warn("Symbol rejected on resubscribe", zap.String("symbol", symbol))
		}
	}

	l.log.Info("Resubscribed", zap.Strings("symbols", symbols), zap.Int("channels", restored))

	return errs
}

func (l *KlineListener) forget(symbol string) {
	l.mu.Lock()
	delete(l.symbols, symbol)
	l.mu.Unlock()

	l.log.Warn("Symbol removed from desired set", zap.String("symbol", symbol))
}

// anyActive reports whether results mark any channel of symbol as active.
func (l *KlineListener) anyActive(symbol string, results map[protocol.ChannelName]bool) bool {
	for _, interval := range l.cfg.Intervals {
		channel, err := protocol.NewKlineChannel(symbol, interval)
		if err == nil && results[channel] {
			return true
		}
	}

	return false
}

func stopped(manager stream.Manager) bool {
	select {
	case <-manager.Done():
		return true
	default:
		return false
	}
}

func (l *KlineListener) subscribe(ctx context.Context, channels []protocol.ChannelName) (map[protocol.ChannelName]bool, error) {
	manager, err := l.currentManager()
	if err != nil {
		return nil, err
	}

	results, err := manager.Subscribe(ctx, channels)
	if err != nil {
		return results, err
	}

	for _, channel := range channels {
		if !results[channel] {
			continue
		}

		if id, err := channel.ProcessorID(); err == nil {
			l.ensureProcessor(ctx, id, true)
		}
	}

	return results, nil
}

// HandleEvent routes kline events. Candles of an identity without a processor
// create one only while its channel is active; anything else is dropped.
func (l *KlineListener) HandleEvent(ctx context.Context, event protocol.Event) error {
	kline, ok := event.(*protocol.KlineEvent)
	if !ok {
		return errors.Newf(errors.ErrCodeUnknownEvent, "unexpected event kind %q", event.Kind())
	}

	candle, err := kline.Candle()
	if err != nil {
		return err
	}

	id := candle.ProcessorID()

	if _, exists := l.registry.Get(id); !exists {
		if !l.channelActive(id) {
			l.log.Warn("Dropping candle of inactive channel", zap.String("processor", id.String()))

			return nil
		}

		// history is skipped here to keep the dispatch worker free
		l.ensureProcessor(ctx, id, false)
	}

	return l.registry.RouteUpdate(id, candle)
}

func (l *KlineListener) channelActive(id types.ProcessorID) bool {
	manager, err := l.currentManager()
	if err != nil {
		return false
	}

	channel, err := protocol.NewKlineChannel(id.Symbol, id.Interval)
	if err != nil {
		return false
	}

	return manager.IsActive(channel)
}

func (l *KlineListener) ensureProcessor(ctx context.Context, id types.ProcessorID, preload bool) {
	if _, exists := l.registry.Get(id); exists {
		return
	}

	p, err := l.registry.CreateProcessor(id, l.cfg.Rules, l.cfg.Processor)
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeProcessorAlreadyExists) {
			l.log.Error("Failed to create processor", zap.String("processor", id.String()), zap.Error(err))
		}

		return
	}

	if !preload || !l.cfg.Preload || l.fetcher == nil {
		return
	}

	candles, err := l.fetcher.Recent(ctx, id, l.cfg.Processor.MaxWindow())
	if err != nil {
		l.log.Warn("History preload failed", zap.String("processor", id.String()), zap.Error(err))

		return
	}

	accepted := p.Preload(candles)
	l.log.Debug("History preloaded", zap.String("processor", id.String()), zap.Int("candles", accepted))
}

func (l *KlineListener) currentManager() (stream.Manager, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.manager == nil {
		return nil, errors.New(errors.ErrCodeNotStarted, "no stream manager attached")
	}

	return l.manager, nil
}

// channelsFor normalizes symbols and maps them to one channel per configured interval.
func (l *KlineListener) channelsFor(symbols []string) ([]string, []protocol.ChannelName, error) {
	if len(symbols) == 0 {
		return nil, nil, errors.New(errors.ErrCodeMissingParameter, "at least one symbol is required")
	}

	normalized := make([]string, 0, len(symbols))
	channels := make([]protocol.ChannelName, 0, len(symbols)*len(l.cfg.Intervals))

	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))

		for _, interval := range l.cfg.Intervals {
			channel, err := protocol.NewKlineChannel(symbol, interval)
			if err != nil {
				return nil, nil, err
			}

			channels = append(channels, channel)
		}

		normalized = append(normalized, symbol)
	}

	slices.Sort(normalized)

	return slices.Compact(normalized), channels, nil
}
