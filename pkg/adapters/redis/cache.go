package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Cache implements ports.RequirementCache using Redis, so several interpreter
// replicas share fetched requirement outcomes.
type Cache struct {
	client *backend.Client
	prefix string
	now    func() time.Time
}

type Option func(*Cache)

// WithPrefix sets the key prefix for cache entries.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// New creates a new Redis cache with options.
func New(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	cache := &Cache{
		client: client,
		prefix: "canopy:requirement:",
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

func (c *Cache) indexKey() string {
	return c.prefix + "index"
}

// Get retrieves an entry. Expired entries are reported as missing.
func (c *Cache) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.CacheEntry{}, false, nil
		}
		return domain.CacheEntry{}, false, fmt.Errorf("failed to get from redis: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	if entry.Expired(c.now()) {
		return domain.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// Set stores the entry with a Redis expiration matching its remaining TTL.
func (c *Cache) Set(ctx context.Context, key string, entry domain.CacheEntry) error {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = c.now()
	}

	var expiration time.Duration
	if entry.TTL > 0 {
		expiration = entry.StoredAt.Add(entry.TTL).Sub(c.now())
		if expiration <= 0 {
			return c.client.Del(ctx, c.key(key)).Err()
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.key(key), data, expiration)

	// Index (ZSET) scored by expiry so Clear can find every key without SCAN.
	score := float64(c.now().Add(expiration).Unix())
	if expiration == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, c.indexKey(), backend.Z{Score: score, Member: key})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Clear removes every entry written through this prefix.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}

	pipe := c.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, c.key(k))
	}
	pipe.Del(ctx, c.indexKey())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear redis cache: %w", err)
	}
	return nil
}

// Prune drops index members whose entries already expired.
func (c *Cache) Prune(ctx context.Context) error {
	now := float64(c.now().Unix())
	err := c.client.ZRemRangeByScore(ctx, c.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return fmt.Errorf("failed to prune expired entries: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
