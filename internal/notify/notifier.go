package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/metrics"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
)

// Config bounds alert delivery.
type Config struct {
	// Concurrency is the maximum number of deliveries in flight
	Concurrency int64 `yaml:"concurrency" json:"concurrency" validate:"min=1" jsonschema:"title=Concurrency,default=4"`
	// Timeout bounds each delivery
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0" jsonschema:"title=Delivery timeout"`
}

func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// Notifier fans alerts out to its sinks in the background. Delivery failures
// are logged and counted, never returned to the caller.
type Notifier struct {
	sinks   []Sink
	sem     *semaphore.Weighted
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inFlight sync.WaitGroup
}

func NewNotifier(sinks []Sink, cfg Config, log *logger.Logger, collector *metrics.Metrics) *Notifier {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Notifier{
		sinks:    sinks,
		sem:      semaphore.NewWeighted(cfg.Concurrency),
		timeout:  cfg.Timeout,
		log:      log.Named("notifier"),
		metrics:  collector,
		ctx:      ctx,
		cancel:   cancel,
		mu:       sync.Mutex{},
		closed:   false,
		inFlight: sync.WaitGroup{},
	}
}

// Notify queues the alert for every sink and returns immediately.
func (n *Notifier) Notify(alert types.Alert) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.log.Warn("Notifier closed, dropping alert", zap.String("alert", alert.ID))

		return
	}

	n.inFlight.Add(len(n.sinks))
	n.mu.Unlock()

	text := FormatAlert(alert)

	for _, sink := range n.sinks {
		go func() {
			defer n.inFlight.Done()

			if err := n.sem.Acquire(n.ctx, 1); err != nil {
				return
			}
			defer n.sem.Release(1)

			n.deliver(sink, alert, text)
		}()
	}
}

func (n *Notifier) deliver(sink Sink, alert types.Alert, text string) {
	ctx, cancel := context.WithTimeout(n.ctx, n.timeout)
	defer cancel()

	fields := []zap.Field{zap.String("sink", sink.Name()), zap.String("alert", alert.ID)}

	defer func() {
		if recovered := recover(); recovered != nil {
			n.metrics.Delivery("failed")
			n.log.Error("Alert delivery panicked", append(fields, zap.Any("panic", recovered))...)
		}
	}()

	if err := sink.Deliver(ctx, text); err != nil {
		n.metrics.Delivery("failed")
		n.log.Error("Alert delivery failed", append(fields, zap.Error(err))...)

		return
	}

	n.metrics.Delivery("delivered")
	n.log.Debug("Alert delivered", fields...)
}

// Close stops accepting alerts and waits for in-flight deliveries.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	n.inFlight.Wait()
	n.cancel()
}

// FormatAlert renders an alert as a chat message.
func FormatAlert(alert types.Alert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s %s\n", alert.Rule, alert.Processor, alert.Direction)
	b.WriteString(alert.Message)
	fmt.Fprintf(&b, "\nclose %s volume %s at %s",
		alert.Candle.Close.String(),
		alert.Candle.Volume.String(),
		alert.Candle.OpenTime.UTC().Format(time.RFC3339),
	)

	return b.String()
}
