package memory

import (
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
)

// NodeStore implements ports.OverrideStore and ports.StateStore in memory.
// Safe for concurrent use; the mutex only keeps the map consistent, it does
// not serialize read-modify-write sequences across calls.
type NodeStore struct {
	data map[string]map[string]any
	mu   sync.RWMutex
}

// NewNodeStore creates a new in-memory node store.
func NewNodeStore() *NodeStore {
	return &NodeStore{
		data: make(map[string]map[string]any),
	}
}

// Get returns a copy of the bag of nodeID, so callers can't mutate the store by reference.
func (s *NodeStore) Get(nodeID string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bag, ok := s.data[nodeID]
	if !ok {
		return nil, false
	}
	return domain.CloneMap(bag), true
}

// Merge deep-merges patch into the bag of nodeID.
func (s *NodeStore) Merge(nodeID string, patch map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[nodeID] = domain.DeepMerge(s.data[nodeID], patch)
}

// Init stores initial for nodeID unless a bag already exists.
func (s *NodeStore) Init(nodeID string, initial map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[nodeID]; ok {
		return false
	}
	bag := domain.CloneMap(initial)
	if bag == nil {
		bag = make(map[string]any)
	}
	s.data[nodeID] = bag
	return true
}

// Delete removes the bag of nodeID.
func (s *NodeStore) Delete(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, nodeID)
}

// Snapshot returns a deep copy of every bag.
func (s *NodeStore) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(domain.Snapshot, len(s.data))
	for id, bag := range s.data {
		snap[id] = domain.CloneMap(bag)
	}
	return snap
}

// Clear drops every bag.
func (s *NodeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]map[string]any)
}
