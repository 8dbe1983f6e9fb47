package resolver

import (
	"context"
	"sync"
	"time"

	"omnigest/internal/platform/redis"
	"omnigest/pkg/platform/sentinel"
)

// MemoryCache is the default in-process cache. Safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[name]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return id, nil
}

func (c *MemoryCache) Put(_ context.Context, name, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = id
	return nil
}

// RedisCache shares learned identities across instances. Entries expire
// after a day so stale gateway links age out on their own.
type RedisCache struct {
	kv *redis.KV
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{kv: client.Namespace("omnigest:identity:", 24*time.Hour)}
}

func (c *RedisCache) Get(ctx context.Context, name string) (string, error) {
	return c.kv.Get(ctx, name)
}

func (c *RedisCache) Put(ctx context.Context, name, id string) error {
	return c.kv.Set(ctx, name, id)
}
