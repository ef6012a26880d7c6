// Package processor keeps the rolling window of each (instrument, interval)
// pair and runs the enabled rules against it.
package processor

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/metrics"
	"github.com/rxtech-lab/kline-sentinel/internal/rule"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/internal/worker"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Scheduler runs rule tasks. Tasks with the same key never overlap.
type Scheduler interface {
	Submit(key string, task worker.Task) error
}

// AlertSink receives alerts raised by rules. Notify must not block.
type AlertSink interface {
	Notify(alert types.Alert)
}

// Status is a point-in-time view of a processor.
type Status struct {
	ID           types.ProcessorID     `json:"id"`
	WindowLength int                   `json:"window_length"`
	EnabledRules []types.RuleKind      `json:"enabled_rules"`
	Config       types.ProcessorConfig `json:"config"`
	Latest       *types.Candle         `json:"latest,omitempty"`
}

// Processor owns the window, configuration and enabled rules of one identity.
type Processor interface {
	// UpdateData applies a candle and schedules the enabled rules on a copy of
	// the window. It returns false for candles of another identity and stale candles.
	UpdateData(candle types.Candle) bool
	// EnableRule returns false when the kind is not in the rule catalogue.
	EnableRule(kind types.RuleKind) bool
	// DisableRule always returns true.
	DisableRule(kind types.RuleKind) bool
	SetConfig(cfg types.ProcessorConfig) error
	GetConfig() types.ProcessorConfig
	GetEnabledRules() []types.RuleKind
	GetIdentity() types.ProcessorID
	// Window returns a copy of the window, oldest first.
	Window() []types.Candle
	// Preload fills the window without running rules and returns the number of accepted candles.
	Preload(candles []types.Candle) int
	Status() Status
}

// ProcessorV1 is the Processor implementation.
type ProcessorV1 struct {
	id        types.ProcessorID
	catalog   rule.Registry
	scheduler Scheduler
	alerts    AlertSink
	log       *logger.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	window  *window
	cfg     types.ProcessorConfig
	enabled map[types.RuleKind]rule.Rule
	updates uint64
}

// NewProcessor creates a processor with no rules enabled.
func NewProcessor(
	id types.ProcessorID,
	cfg types.ProcessorConfig,
	catalog rule.Registry,
	scheduler Scheduler,
	alerts AlertSink,
	log *logger.Logger,
	collector *metrics.Metrics,
) (*ProcessorV1, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid processor config", err)
	}

	cfg = cfg.Clone()

	return &ProcessorV1{
		id:        id,
		catalog:   catalog,
		scheduler: scheduler,
		alerts:    alerts,
		log:       log.WithFields(zap.String("processor", id.String())),
		metrics:   collector,
		mu:        sync.Mutex{},
		window:    newWindow(cfg.MaxWindow()),
		cfg:       cfg,
		enabled:   make(map[types.RuleKind]rule.Rule),
		updates:   0,
	}, nil
}

func (p *ProcessorV1) UpdateData(candle types.Candle) bool {
	if candle.ProcessorID() != p.id {
		p.log.Warn("Dropping candle of another processor", zap.String("candle", candle.ProcessorID().String()))

		return false
	}

	p.mu.Lock()

	if !p.window.update(candle) {
		p.mu.Unlock()
		p.log.Debug("Dropping stale candle", zap.Time("open_time", candle.OpenTime))

		return false
	}

	p.updates++

	run := len(p.enabled) > 0 &&
		p.updates%uint64(p.cfg.CheckEvery) == 0 &&
		(!p.cfg.OnlyClosed || candle.Closed)

	var in rule.Input

	var rules []rule.Rule

	if run {
		in = rule.Input{Processor: p.id, Window: p.window.snapshot(), Config: p.cfg.Clone()}
		rules = p.enabledRulesLocked()
	}

	p.mu.Unlock()

	if run {
		p.schedule(in, rules)
	}

	return true
}

func (p *ProcessorV1) schedule(in rule.Input, rules []rule.Rule) {
	err := p.scheduler.Submit(p.id.String(), func(ctx context.Context) error {
		for _, r := range rules {
			p.runRule(ctx, r, in)
		}

		return nil
	})
	if err != nil {
		p.metrics.TaskDropped("rules")
		p.log.Warn("Rule run not scheduled", zap.Error(err))
	}
}

// runRule evaluates one rule. Errors and panics stay inside this call.
func (p *ProcessorV1) runRule(ctx context.Context, r rule.Rule, in rule.Input) {
	kind := string(r.Kind())

	defer func() {
		if recovered := recover(); recovered != nil {
			err := errors.Newf(errors.ErrCodeRuleExecution, "rule %s panicked: %v", kind, recovered)
			p.metrics.RuleRun(kind, "panic")
			p.log.Error("Rule failed", zap.Error(err), zap.String("stack", string(debug.Stack())))
		}
	}()

	result, err := r.Evaluate(ctx, in)
	if err != nil {
		p.metrics.RuleRun(kind, "error")
		p.log.Error("Rule failed", zap.Error(errors.Wrap(errors.ErrCodeRuleExecution, fmt.Sprintf("rule %s failed", kind), err)))

		return
	}

	p.metrics.RuleRun(kind, "ok")

	if result.IsNone() {
		return
	}

	alert := result.Unwrap()
	p.metrics.AlertRaised(kind)
	p.log.Info("Rule fired", zap.String("rule", kind), zap.String("alert", alert.ID), zap.String("direction", string(alert.Direction)))

	if p.alerts != nil {
		p.alerts.Notify(alert)
	}
}

func (p *ProcessorV1) EnableRule(kind types.RuleKind) bool {
	r, err := p.catalog.Get(kind)
	if err != nil {
		return false
	}

	p.mu.Lock()
	p.enabled[kind] = r
	p.mu.Unlock()

	return true
}

func (p *ProcessorV1) DisableRule(kind types.RuleKind) bool {
	p.mu.Lock()
	delete(p.enabled, kind)
	p.mu.Unlock()

	return true
}

func (p *ProcessorV1) SetConfig(cfg types.ProcessorConfig) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid processor config", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cfg = cfg.Clone()
	p.window.resize(p.cfg.MaxWindow())

	return nil
}

func (p *ProcessorV1) GetConfig() types.ProcessorConfig {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cfg.Clone()
}

func (p *ProcessorV1) GetEnabledRules() []types.RuleKind {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.enabledKindsLocked()
}

func (p *ProcessorV1) GetIdentity() types.ProcessorID {
	return p.id
}

func (p *ProcessorV1) Window() []types.Candle {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.window.snapshot()
}

func (p *ProcessorV1) Preload(candles []types.Candle) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	accepted := 0

	for _, candle := range candles {
		if candle.ProcessorID() == p.id && p.window.update(candle) {
			accepted++
		}
	}

	return accepted
}

func (p *ProcessorV1) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := Status{
		ID:           p.id,
		WindowLength: p.window.len(),
		EnabledRules: p.enabledKindsLocked(),
		Config:       p.cfg.Clone(),
		Latest:       nil,
	}

	if latest, ok := p.window.latest(); ok {
		status.Latest = &latest
	}

	return status
}

func (p *ProcessorV1) enabledKindsLocked() []types.RuleKind {
	kinds := make([]types.RuleKind, 0, len(p.enabled))
	for kind := range p.enabled {
		kinds = append(kinds, kind)
	}

	slices.Sort(kinds)

	return kinds
}

func (p *ProcessorV1) enabledRulesLocked() []rule.Rule {
	rules := make([]rule.Rule, 0, len(p.enabled))
	for _, kind := range p.enabledKindsLocked() {
		rules = append(rules, p.enabled[kind])
	}

	return rules
}

