package domain

import (
	"reflect"
	"sort"
)

// Snapshot is a point-in-time copy of a keyed store (node id -> bag).
type Snapshot map[string]map[string]any

// StoreDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type StoreDiff struct {
	// Changed holds, per node id, only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Changed map[string]map[string]any `json:"changed,omitempty"`

	// Removed lists node ids whose whole bag disappeared.
	Removed []string `json:"removed,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, the diff contains the entire newSnap (initial load).
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap Snapshot) *StoreDiff {
	diff := &StoreDiff{Changed: make(map[string]map[string]any)}

	for id, newBag := range newSnap {
		if delta := diffBag(oldSnap[id], newBag); len(delta) > 0 {
			diff.Changed[id] = delta
		}
	}

	for id := range oldSnap {
		if _, exists := newSnap[id]; !exists {
			diff.Removed = append(diff.Removed, id)
		}
	}
	sort.Strings(diff.Removed)

	if diff.IsEmpty() {
		return nil
	}
	if len(diff.Changed) == 0 {
		diff.Changed = nil
	}
	return diff
}

func diffBag(old, new map[string]any) map[string]any {
	delta := make(map[string]any)

	// If old is nil, everything in new is a delta
	if old == nil {
		for k, v := range new {
			delta[k] = v
		}
		return delta
	}

	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}
	return delta
}

// NodeIDs returns every node id touched by the diff, sorted.
func (d *StoreDiff) NodeIDs() []string {
	if d == nil {
		return nil
	}
	ids := make([]string, 0, len(d.Changed)+len(d.Removed))
	for id := range d.Changed {
		ids = append(ids, id)
	}
	ids = append(ids, d.Removed...)
	sort.Strings(ids)
	return ids
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StoreDiff) IsEmpty() bool {
	return d == nil || (len(d.Changed) == 0 && len(d.Removed) == 0)
}
