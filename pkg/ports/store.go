package ports

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
)

// NodeStore is a keyed map of per-node bags (node id -> key/value bag).
// Writes are small synchronous merges; the last writer wins.
type NodeStore interface {
	// Get returns a copy of the bag stored for nodeID.
	Get(nodeID string) (map[string]any, bool)

	// Merge deep-merges patch into the bag of nodeID, creating it if needed.
	Merge(nodeID string, patch map[string]any)

	// Init stores initial as the bag of nodeID only if none exists yet.
	// It reports whether the bag was created.
	Init(nodeID string, initial map[string]any) bool

	// Delete drops the bag of nodeID.
	Delete(nodeID string)

	// Snapshot returns a deep copy of every bag.
	Snapshot() domain.Snapshot

	// Clear drops every bag.
	Clear()
}

// OverrideStore holds live override patches applied on top of node definitions.
type OverrideStore interface {
	NodeStore
}

// StateStore holds the internal state of nodes.
type StateStore interface {
	NodeStore
}

// RequirementCache is the shared cache of data requirement outcomes,
// keyed by the hash of the resolved source.
type RequirementCache interface {
	// Get returns the entry for key. Expired entries are reported as missing.
	Get(ctx context.Context, key string) (domain.CacheEntry, bool, error)

	// Set stores entry under key for entry.TTL (zero means no expiry).
	Set(ctx context.Context, key string, entry domain.CacheEntry) error

	// Clear drops every entry.
	Clear(ctx context.Context) error
}
