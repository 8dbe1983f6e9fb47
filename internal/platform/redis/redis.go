// Package redis owns the shared redis connection and the namespaced key
// spaces built on top of it. The rest of the tree never touches go-redis
// directly: absent keys surface as sentinel.ErrNotFound and expiry lives
// with the namespace, not the caller.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"omnigest/internal/platform/config"
	"omnigest/pkg/platform/sentinel"
)

// Client wraps the go-redis client.
type Client struct {
	*redis.Client
}

// New dials redis from configuration and verifies the connection. A blank
// URL means redis is not configured; callers fall back to in-process
// implementations.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports connection liveness for readiness checks.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}

// Namespace returns a key space under the given prefix whose entries expire
// after ttl.
func (c *Client) Namespace(prefix string, ttl time.Duration) *KV {
	return &KV{client: c, prefix: prefix, ttl: ttl}
}

// KV is a flat string key space with a fixed TTL.
type KV struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// Get returns the value for key, or sentinel.ErrNotFound when the key is
// absent or has expired.
func (kv *KV) Get(ctx context.Context, key string) (string, error) {
	val, err := kv.client.Get(ctx, kv.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores the value under key with the namespace TTL.
func (kv *KV) Set(ctx context.Context, key, value string) error {
	return kv.client.Set(ctx, kv.prefix+key, value, kv.ttl).Err()
}
