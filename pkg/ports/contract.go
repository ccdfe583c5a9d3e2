package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunNodeStoreContract runs a suite of tests to verify that a NodeStore implementation
// adheres to the defined interface contract.
func RunNodeStoreContract(t *testing.T, newStore func() NodeStore) {
	t.Run("Get Missing", func(t *testing.T) {
		store := newStore()
		bag, ok := store.Get("nope")
		assert.False(t, ok)
		assert.Nil(t, bag)
	})

	t.Run("Merge Deep", func(t *testing.T) {
		store := newStore()
		store.Merge("modal", map[string]any{"params": map[string]any{"title": "a", "size": "sm"}, "tags": []any{"x", "y"}})
		store.Merge("modal", map[string]any{"params": map[string]any{"title": "b"}, "tags": []any{"z"}})

		bag, ok := store.Get("modal")
		require.True(t, ok)
		assert.Equal(t, map[string]any{"title": "b", "size": "sm"}, bag["params"])
		assert.Equal(t, []any{"z"}, bag["tags"], "arrays are replaced, not concatenated")
	})

	t.Run("Get Returns Copy", func(t *testing.T) {
		store := newStore()
		store.Merge("n", map[string]any{"nested": map[string]any{"a": 1}})

		bag, _ := store.Get("n")
		bag["nested"].(map[string]any)["a"] = 2

		again, _ := store.Get("n")
		assert.Equal(t, 1, again["nested"].(map[string]any)["a"])
	})

	t.Run("Init Only Once", func(t *testing.T) {
		store := newStore()
		assert.True(t, store.Init("n", map[string]any{"count": 0}))
		store.Merge("n", map[string]any{"count": 5})
		assert.False(t, store.Init("n", map[string]any{"count": 0}))

		bag, _ := store.Get("n")
		assert.Equal(t, 5, bag["count"])
	})

	t.Run("Init Empty Bag", func(t *testing.T) {
		store := newStore()
		assert.True(t, store.Init("n", nil))
		bag, ok := store.Get("n")
		assert.True(t, ok)
		assert.Empty(t, bag)
	})

	t.Run("Delete and Clear", func(t *testing.T) {
		store := newStore()
		store.Merge("a", map[string]any{"v": 1})
		store.Merge("b", map[string]any{"v": 2})

		store.Delete("a")
		_, ok := store.Get("a")
		assert.False(t, ok)
		assert.Equal(t, domain.Snapshot{"b": {"v": 2}}, store.Snapshot())

		store.Clear()
		assert.Empty(t, store.Snapshot())
	})
}

// RunRequirementCacheContract verifies a RequirementCache implementation.
// Values go through JSON in remote caches, so numbers are compared as float64.
func RunRequirementCacheContract(t *testing.T, cache RequirementCache) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405")

	t.Run("Set and Get", func(t *testing.T) {
		key := "value-" + suffix
		err := cache.Set(ctx, key, domain.CacheEntry{Value: map[string]any{"n": float64(1)}, StoredAt: time.Now()})
		require.NoError(t, err)

		entry, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"n": float64(1)}, entry.Value)
		assert.Empty(t, entry.Err)
	})

	t.Run("Errors Are Cached", func(t *testing.T) {
		key := "error-" + suffix
		require.NoError(t, cache.Set(ctx, key, domain.CacheEntry{Err: "boom", StoredAt: time.Now(), TTL: time.Minute}))

		entry, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "boom", entry.Err)
	})

	t.Run("Expired Entries Miss", func(t *testing.T) {
		key := "stale-" + suffix
		stale := domain.CacheEntry{Value: "old", StoredAt: time.Now().Add(-time.Hour), TTL: time.Second}
		require.NoError(t, cache.Set(ctx, key, stale))

		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Missing", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, "missing-"+suffix)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Clear", func(t *testing.T) {
		key := "clear-" + suffix
		require.NoError(t, cache.Set(ctx, key, domain.CacheEntry{Value: "v", StoredAt: time.Now()}))
		require.NoError(t, cache.Clear(ctx))

		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
