package rule

import (
	"slices"
	"sync"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// Registry is the catalogue of rules processors may enable.
type Registry interface {
	Register(rule Rule) error
	Get(kind types.RuleKind) (Rule, error)
	Has(kind types.RuleKind) bool
	List() []types.RuleKind
	Remove(kind types.RuleKind) error
}

// RegistryV1 is a Registry guarded by a read-write mutex.
type RegistryV1 struct {
	rules map[types.RuleKind]Rule
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *RegistryV1 {
	return &RegistryV1{
		rules: make(map[types.RuleKind]Rule),
		mu:    sync.RWMutex{},
	}
}

// NewDefaultRegistry creates a registry with the built-in rules.
func NewDefaultRegistry() *RegistryV1 {
	registry := NewRegistry()
	_ = registry.Register(NewHighVolumeRise())
	_ = registry.Register(NewPriceChange())

	return registry
}

// Register adds a rule to the registry.
func (r *RegistryV1) Register(rule Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := rule.Kind()
	if _, exists := r.rules[kind]; exists {
		return errors.Newf(errors.ErrCodeRuleAlreadyExists, "Register: rule %s already registered", kind)
	}

	r.rules[kind] = rule

	return nil
}

// Get retrieves a rule by kind.
func (r *RegistryV1) Get(kind types.RuleKind) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, exists := r.rules[kind]
	if !exists {
		return nil, errors.Newf(errors.ErrCodeRuleNotFound, "Get: rule %s not found", kind)
	}

	return rule, nil
}

// Has reports whether a rule of this kind is registered.
func (r *RegistryV1) Has(kind types.RuleKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.rules[kind]

	return exists
}

// List returns the registered kinds, sorted.
func (r *RegistryV1) List() []types.RuleKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]types.RuleKind, 0, len(r.rules))
	for kind := range r.rules {
		kinds = append(kinds, kind)
	}

	slices.Sort(kinds)

	return kinds
}

// Remove removes a rule from the registry.
func (r *RegistryV1) Remove(kind types.RuleKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[kind]; !exists {
		return errors.Newf(errors.ErrCodeRuleNotFound, "Remove: rule %s not found", kind)
	}

	delete(r.rules, kind)

	return nil
}
