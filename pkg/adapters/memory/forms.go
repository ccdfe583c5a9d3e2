package memory

import (
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
)

// Forms implements ports.FormScope in memory.
type Forms struct {
	values map[string]map[string]any
	mu     sync.RWMutex
}

// NewForms creates an empty form scope.
func NewForms() *Forms {
	return &Forms{values: make(map[string]map[string]any)}
}

// Values returns a copy of the values of formID (empty when unknown).
func (f *Forms) Values(formID string) map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if v := domain.CloneMap(f.values[formID]); v != nil {
		return v
	}
	return map[string]any{}
}

// Set merges values into formID.
func (f *Forms) Set(formID string, values map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[formID] = domain.DeepMerge(f.values[formID], values)
}

// Reset clears formID.
func (f *Forms) Reset(formID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, formID)
}
