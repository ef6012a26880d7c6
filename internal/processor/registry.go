package processor

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/metrics"
	"github.com/rxtech-lab/kline-sentinel/internal/rule"
	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Registry maps identities to processors and routes candles to them.
//
//nolint:interfacebloat
type Registry interface {
	// CreateProcessor creates a processor with the given rules enabled. It fails
	// with ErrCodeProcessorAlreadyExists when the identity is registered.
	CreateProcessor(id types.ProcessorID, rules []types.RuleKind, cfg types.ProcessorConfig) (Processor, error)
	// RemoveProcessor reports whether a processor was removed.
	RemoveProcessor(id types.ProcessorID) bool
	// RouteUpdate hands a candle to the processor of id. Candles without a
	// processor are dropped with ErrCodeProcessorNotFound.
	RouteUpdate(id types.ProcessorID, candle types.Candle) error
	// EnableRule enables a rule on one processor, or on every processor when
	// target is None, and returns the per-processor outcome.
	EnableRule(kind types.RuleKind, target optional.Option[types.ProcessorID]) (map[types.ProcessorID]bool, error)
	DisableRule(kind types.RuleKind, target optional.Option[types.ProcessorID]) (map[types.ProcessorID]bool, error)
	Get(id types.ProcessorID) (Processor, bool)
	// List returns the registered identities in a stable order.
	List() []types.ProcessorID
	Statuses() []Status
	Len() int
}

// RegistryV1 is the Registry implementation.
type RegistryV1 struct {
	processors map[types.ProcessorID]Processor
	mutex      sync.RWMutex
	catalog    rule.Registry
	scheduler  Scheduler
	alerts     AlertSink
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// NewRegistry creates an empty processor registry. Processors it creates share
// the rule catalogue, scheduler and alert sink.
func NewRegistry(
	catalog rule.Registry,
	scheduler Scheduler,
	alerts AlertSink,
	log *logger.Logger,
	collector *metrics.Metrics,
) *RegistryV1 {
	return &RegistryV1{
		processors: make(map[types.ProcessorID]Processor),
		mutex:      sync.RWMutex{},
		catalog:    catalog,
		scheduler:  scheduler,
		alerts:     alerts,
		log:        log.Named("processors"),
		metrics:    collector,
	}
}

func (r *RegistryV1) CreateProcessor(id types.ProcessorID, rules []types.RuleKind, cfg types.ProcessorConfig) (Processor, error) {
	for _, kind := range rules {
		if !r.catalog.Has(kind) {
			return nil, errors.Newf(errors.ErrCodeRuleNotFound, "rule %s is not registered", kind)
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.processors[id]; exists {
		return nil, errors.Newf(errors.ErrCodeProcessorAlreadyExists, "processor %s already exists", id)
	}

	p, err := NewProcessor(id, cfg, r.catalog, r.scheduler, r.alerts, r.log, r.metrics)
	if err != nil {
		return nil, err
	}

	for _, kind := range rules {
		p.EnableRule(kind)
	}

	r.processors[id] = p
	r.metrics.SetProcessors(len(r.processors))
	r.log.Info("Processor created", zap.String("processor", id.String()), zap.Int("rules", len(rules)))

	return p, nil
}

func (r *RegistryV1) RemoveProcessor(id types.ProcessorID) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.processors[id]; !exists {
		return false
	}

	delete(r.processors, id)
	r.metrics.SetProcessors(len(r.processors))
	r.log.Info("Processor removed", zap.String("processor", id.String()))

	return true
}

func (r *RegistryV1) RouteUpdate(id types.ProcessorID, candle types.Candle) error {
	p, ok := r.Get(id)
	if !ok {
		r.log.Warn("No processor for candle", zap.String("processor", id.String()))

		return errors.Newf(errors.ErrCodeProcessorNotFound, "processor %s not found", id)
	}

	p.UpdateData(candle)

	return nil
}

func (r *RegistryV1) EnableRule(kind types.RuleKind, target optional.Option[types.ProcessorID]) (map[types.ProcessorID]bool, error) {
	return r.applyRule(kind, target, "enable", Processor.EnableRule)
}

func (r *RegistryV1) DisableRule(kind types.RuleKind, target optional.Option[types.ProcessorID]) (map[types.ProcessorID]bool, error) {
	return r.applyRule(kind, target, "disable", Processor.DisableRule)
}

// applyRule runs op on the targets concurrently. A panicking processor is
// reported as false without affecting the others.
func (r *RegistryV1) applyRule(
	kind types.RuleKind,
	target optional.Option[types.ProcessorID],
	action string,
	op func(Processor, types.RuleKind) bool,
) (map[types.ProcessorID]bool, error) {
	if !r.catalog.Has(kind) {
		return nil, errors.Newf(errors.ErrCodeRuleNotFound, "rule %s is not registered", kind)
	}

	targets, err := r.targets(target)
	if err != nil {
		return nil, err
	}

	results := make(map[types.ProcessorID]bool, len(targets))

	var resultsMu sync.Mutex

	var group errgroup.Group

	for _, p := range targets {
		group.Go(func() error {
			ok := r.safeApply(p, kind, action, op)

			resultsMu.Lock()
			results[p.GetIdentity()] = ok
			resultsMu.Unlock()

			return nil
		})
	}

	_ = group.Wait()

	return results, nil
}

func (r *RegistryV1) safeApply(p Processor, kind types.RuleKind, action string, op func(Processor, types.RuleKind) bool) (ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.log.Error("Rule toggle failed",
				zap.String("processor", p.GetIdentity().String()),
				zap.String("rule", string(kind)),
				zap.String("action", action),
				zap.String("panic", fmt.Sprint(recovered)),
			)

			ok = false
		}
	}()

	return op(p, kind)
}

func (r *RegistryV1) targets(target optional.Option[types.ProcessorID]) ([]Processor, error) {
	if target.IsSome() {
		id := target.Unwrap()

		p, ok := r.Get(id)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeProcessorNotFound, "processor %s not found", id)
		}

		return []Processor{p}, nil
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	all := make([]Processor, 0, len(r.processors))
	for _, p := range r.processors {
		all = append(all, p)
	}

	return all, nil
}

func (r *RegistryV1) Get(id types.ProcessorID) (Processor, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, ok := r.processors[id]

	return p, ok
}

func (r *RegistryV1) List() []types.ProcessorID {
	r.mutex.RLock()

	ids := make([]types.ProcessorID, 0, len(r.processors))
	for id := range r.processors {
		ids = append(ids, id)
	}

	r.mutex.RUnlock()

	slices.SortFunc(ids, func(a, b types.ProcessorID) int {
		return strings.Compare(a.String(), b.String())
	})

	return ids
}

func (r *RegistryV1) Statuses() []Status {
	ids := r.List()
	statuses := make([]Status, 0, len(ids))

	for _, id := range ids {
		if p, ok := r.Get(id); ok {
			statuses = append(statuses, p.Status())
		}
	}

	return statuses
}

func (r *RegistryV1) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.processors)
}
