package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/schema"
)

// ActionFunc implements a host-defined action type.
// It receives the action's resolved params and returns the step result.
type ActionFunc func(ctx context.Context, params map[string]any) (any, error)

type entry struct {
	fn     ActionFunc
	params schema.Schema
}

// Registry holds host-defined action types that extend the built-in set.
type Registry struct {
	mu      sync.RWMutex
	actions map[domain.ActionType]entry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[domain.ActionType]entry),
	}
}

// Register adds an action type. Registering the same type twice replaces it.
func (r *Registry) Register(name domain.ActionType, fn ActionFunc) {
	r.RegisterWithSchema(name, nil, fn)
}

// RegisterWithSchema adds an action type whose resolved params must satisfy params.
// Invalid params fail the step before fn runs.
func (r *Registry) RegisterWithSchema(name domain.ActionType, params schema.Schema, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = entry{fn: fn, params: params}
}

// Has reports whether name is registered.
func (r *Registry) Has(name domain.ActionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

// Schema returns the param schema of name, nil when it has none.
func (r *Registry) Schema(name domain.ActionType) schema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actions[name].params
}

// Types lists the registered action types in sorted order.
func (r *Registry) Types() []domain.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ActionType, 0, len(r.actions))
	for name := range r.actions {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Execute runs the action registered under name.
func (r *Registry) Execute(ctx context.Context, name domain.ActionType, params map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.actions[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAction, name)
	}
	if err := e.params.Validate(params); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return e.fn(ctx, params)
}
