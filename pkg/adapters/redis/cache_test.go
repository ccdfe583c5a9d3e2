package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/canopy/pkg/adapters/redis"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return mr, client
}

func TestRedisCache_Contract(t *testing.T) {
	_, client := setup(t)
	ports.RunRequirementCacheContract(t, redis.NewFromClient(client))
}

func TestRedisCache_ExpirationFollowsTTL(t *testing.T) {
	mr, client := setup(t)
	cache := redis.NewFromClient(client, redis.WithPrefix("test:"))
	ctx := context.Background()

	err := cache.Set(ctx, "k", domain.CacheEntry{Value: "v", StoredAt: time.Now(), TTL: 30 * time.Second})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:k"))
	assert.Greater(t, mr.TTL("test:k"), time.Duration(0))

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists("test:k"))
}

func TestRedisCache_NoTTLPersists(t *testing.T) {
	mr, client := setup(t)
	cache := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", domain.CacheEntry{Value: "v"}))
	assert.Equal(t, time.Duration(0), mr.TTL("canopy:requirement:k"))

	require.NoError(t, cache.Prune(ctx))
	_, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
