package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
)

// Cache implements ports.RequirementCache in memory.
type Cache struct {
	entries map[string]domain.CacheEntry
	mu      sync.RWMutex
	now     func() time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]domain.CacheEntry),
		now:     time.Now,
	}
}

// Get returns the entry for key unless it expired.
func (c *Cache) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return domain.CacheEntry{}, false, nil
	}
	if entry.Expired(c.now()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return domain.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// Set stores entry under key.
func (c *Cache) Set(ctx context.Context, key string, entry domain.CacheEntry) error {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = c.now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.CacheEntry)
	return nil
}
