package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/aretw0/canopy/pkg/adapters/memory"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/persistence/middleware"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.RequirementCache, active []byte, fallback ...[]byte) ports.RequirementCache {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunRequirementCacheContract(t, encrypted(t, memory.NewCache(), generateKey(t)))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewCache()
	cache := encrypted(t, underlying, generateKey(t))
	ctx := context.Background()

	entry := domain.CacheEntry{Value: map[string]any{"secret": "my-secret-sauce"}, StoredAt: time.Now(), TTL: time.Minute}
	require.NoError(t, cache.Set(ctx, "user", entry))

	raw, ok, err := underlying.Get(ctx, "user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.IsType(t, "", raw.Value)
	assert.NotContains(t, raw.Value, "my-secret-sauce")
	assert.Equal(t, time.Minute, raw.TTL, "ttl stays readable by the wrapped cache")

	got, ok, err := cache.Get(ctx, "user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Value, got.Value)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewCache()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	oldCache := encrypted(t, underlying, oldKey)
	require.NoError(t, oldCache.Set(ctx, "k", domain.CacheEntry{Value: "encrypted-with-old-key", StoredAt: time.Now()}))

	newCache := encrypted(t, underlying, newKey, oldKey)
	got, ok, err := newCache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "encrypted-with-old-key", got.Value)

	require.NoError(t, newCache.Set(ctx, "k", domain.CacheEntry{Value: "encrypted-with-new-key", StoredAt: time.Now()}))
	_, _, err = oldCache.Get(ctx, "k")
	assert.Error(t, err, "old key alone cannot read new entries")
}

func TestEncryptionMiddleware_PlainEntryRejected(t *testing.T) {
	underlying := memory.NewCache()
	ctx := context.Background()
	require.NoError(t, underlying.Set(ctx, "k", domain.CacheEntry{Value: map[string]any{"a": 1.0}, StoredAt: time.Now()}))

	_, ok, err := encrypted(t, underlying, generateKey(t)).Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t), FallbackKeys: [][]byte{{1}}})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)
}

func TestDecodeKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.DecodeKey("c2hvcnQ=")
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)
	_, err = middleware.DecodeKey("%%%")
	assert.Error(t, err)
}
