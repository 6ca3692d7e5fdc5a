package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache remembers derived URLs already confirmed ready.
type Cache interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache is a concrete implementation backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a new Redis-backed cache adapter.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set writes a value to Redis.
func (c *RedisCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a cached value from Redis, mapping redis.Nil to ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

type lruEntry struct {
	value   string
	expires time.Time
}

// LRUCache keeps entries in process when no Redis is configured.
type LRUCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, lruEntry]
	now   func() time.Time
}

// NewLRUCache holds at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	cache, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: cache, now: time.Now}, nil
}

// Set stores value; a non-positive expiration never expires.
func (c *LRUCache) Set(_ context.Context, key string, value string, expiration time.Duration) error {
	entry := lruEntry{value: value}
	if expiration > 0 {
		entry.expires = c.now().Add(expiration)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, entry)
	return nil
}

// Get returns ErrCacheMiss for absent or expired keys.
func (c *LRUCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	if !entry.expires.IsZero() && c.now().After(entry.expires) {
		c.cache.Remove(key)
		return "", ErrCacheMiss
	}
	return entry.value, nil
}
