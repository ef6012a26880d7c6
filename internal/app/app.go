// Package app assembles the sentinel from its configuration and supervises
// stream sessions, reconnecting with exponential backoff.
package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rxtech-lab/kline-sentinel/internal/api"
	"github.com/rxtech-lab/kline-sentinel/internal/config"
	"github.com/rxtech-lab/kline-sentinel/internal/history"
	"github.com/rxtech-lab/kline-sentinel/internal/ingest"
	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/metrics"
	"github.com/rxtech-lab/kline-sentinel/internal/notify"
	"github.com/rxtech-lab/kline-sentinel/internal/processor"
	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
	"github.com/rxtech-lab/kline-sentinel/internal/rule"
	"github.com/rxtech-lab/kline-sentinel/internal/stream"
	"github.com/rxtech-lab/kline-sentinel/internal/transport"
	"github.com/rxtech-lab/kline-sentinel/internal/worker"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Dialer opens a new connection for a stream session.
type Dialer func(ctx context.Context) (transport.Transport, error)

// Options replace the network facing parts of the app. Zero fields fall back
// to what the configuration describes.
type Options struct {
	Dialer  Dialer
	Fetcher history.Fetcher
	Sinks   []notify.Sink
}

// App owns every long lived component.
type App struct {
	cfg      config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	pool     *worker.KeyedPool
	notifier *notify.Notifier
	registry *processor.RegistryV1
	listener *ingest.KlineListener
	server   *api.Server
	dial     Dialer
	// seeded is set once the configured symbols were subscribed; only the
	// supervisor goroutine touches it
	seeded bool

	mu      sync.RWMutex
	manager stream.Manager
}

// New builds the app from a validated configuration.
func New(cfg config.Config, log *logger.Logger, opts Options) (*App, error) {
	collector := metrics.New()

	sinks := opts.Sinks
	if sinks == nil {
		sinks = []notify.Sink{notify.NewLogSink(log)}

		if cfg.TelegramEnabled() {
			telegram, err := notify.NewTelegramSink(cfg.Notify.Telegram)
			if err != nil {
				return nil, err
			}

			sinks = append(sinks, telegram)
		}
	}

	fetcher := opts.Fetcher
	if fetcher == nil && cfg.Ingest.Preload {
		fetcher = history.NewBinanceFetcher(cfg.History, log)
	}

	dial := opts.Dialer
	if dial == nil {
		dial = func(ctx context.Context) (transport.Transport, error) {
			t, err := transport.Dial(ctx, cfg.Stream.Websocket, log)
			if err != nil {
				return nil, err
			}

			return t, nil
		}
	}

	pool := worker.NewKeyedPool("rules", cfg.RulePool, log)
	notifier := notify.NewNotifier(sinks, cfg.Notify.Config, log, collector)
	registry := processor.NewRegistry(rule.NewDefaultRegistry(), pool, notifier, log, collector)

	listener, err := ingest.NewKlineListener(cfg.Ingest, registry, fetcher, log)
	if err != nil {
		pool.Close()
		notifier.Close()

		return nil, err
	}

	app := &App{
		cfg:      cfg,
		log:      log.Named("app"),
		metrics:  collector,
		pool:     pool,
		notifier: notifier,
		registry: registry,
		listener: listener,
		server:   nil,
		dial:     dial,
		seeded:   false,
		mu:       sync.RWMutex{},
		manager:  nil,
	}

	app.server = api.NewServer(listener, registry, app, collector, log)

	return app, nil
}

// Handler returns the control API handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Registry returns the processor registry.
func (a *App) Registry() processor.Registry {
	return a.registry
}

// Listener returns the kline listener.
func (a *App) Listener() ingest.Listener {
	return a.listener
}

// ActiveChannels returns the active set of the current session, empty between sessions.
func (a *App) ActiveChannels() []protocol.ChannelName {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.manager == nil {
		return nil
	}

	return a.manager.ActiveChannels()
}

// Run serves the control API and keeps a stream session alive until ctx is
// cancelled or reconnecting gives up. Components are closed on return.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.API.Listen != "" {
		g.Go(func() error {
			return a.server.ListenAndServe(gctx, a.cfg.API.Listen)
		})
	}

	g.Go(func() error {
		return a.superviseSessions(gctx)
	})

	return g.Wait()
}

func (a *App) superviseSessions(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.cfg.Reconnect.InitialInterval
	policy.MaxInterval = a.cfg.Reconnect.MaxInterval
	policy.MaxElapsedTime = a.cfg.Reconnect.MaxElapsedTime
	policy.Reset()

	for {
		sessionID := uuid.New().String()
		log := a.log.WithFields(zap.String("session", sessionID))

		started, err := a.runSession(ctx, log)
		if ctx.Err() != nil {
			return nil
		}

		if started {
			policy.Reset()
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return errors.Wrap(errors.ErrCodeTransportDial, "giving up reconnecting", err)
		}

		log.Warn("Stream session ended, reconnecting", zap.Error(err), zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		a.metrics.Reconnected()
	}
}

// runSession dials, starts a manager and blocks until it stops. started
// reports whether the manager came up.
func (a *App) runSession(ctx context.Context, log *logger.Logger) (bool, error) {
	t, err := a.dial(ctx)
	if err != nil {
		return false, err
	}

	manager, err := stream.NewManager(t, a.listener.Handlers(), a.cfg.Stream.Manager, log, a.metrics)
	if err != nil {
		_ = t.Close()

		return false, err
	}

	if err := manager.Start(ctx); err != nil {
		_ = manager.Stop()

		return false, err
	}

	a.setManager(manager)

	defer func() {
		_ = manager.Stop()

		a.setManager(nil)
	}()

	a.listener.Attach(manager)

	if err := a.listener.Resubscribe(ctx); err != nil {
		log.Warn("Resubscribe failed", zap.Error(err))
	}

	// a failed seed is retried on the next session
	if !a.seeded && len(a.cfg.Symbols) > 0 {
		if _, err := a.listener.AddSymbols(ctx, a.cfg.Symbols); err != nil {
			log.Warn("Initial subscribe failed", zap.Error(err))
		} else {
			a.seeded = true
		}
	}

	log.Info("Stream session running", zap.Strings("symbols", a.listener.Symbols()))

	select {
	case <-ctx.Done():
		return true, nil
	case <-manager.Done():
		return true, manager.Err()
	}
}

func (a *App) setManager(manager stream.Manager) {
	a.mu.Lock()
	a.manager = manager
	a.mu.Unlock()
}

func (a *App) close() {
	a.pool.Close()
	a.notifier.Close()
	a.log.Info("Sentinel stopped")
}
