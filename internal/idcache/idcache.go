// Package idcache holds an optional userName → user id lookup cache used by
// the membership engine when resolving member edits. The store stays the
// source of truth; entries are invalidated whenever a user is modified or
// deleted and carry a TTL as a backstop.
package idcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache resolves a userName to the internal user id. Get returns "" (and no
// error) on a miss.
type Cache interface {
	Get(ctx context.Context, userName string) (string, error)
	Set(ctx context.Context, userName, id string) error
	Invalidate(ctx context.Context, userName string) error
}

// Noop is used when no Redis backend is configured; every lookup misses.
type Noop struct{}

func (Noop) Get(ctx context.Context, userName string) (string, error) { return "", nil }
func (Noop) Set(ctx context.Context, userName, id string) error       { return nil }
func (Noop) Invalidate(ctx context.Context, userName string) error    { return nil }

// RedisCache implements Cache on Redis. Entries are stored under
// "<prefix><userName>" with the configured TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache. Prefix may be empty (defaults
// to "uid:"); ttl <= 0 disables expiry.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "uid:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(userName string) string { return c.prefix + userName }

func (c *RedisCache) Get(ctx context.Context, userName string) (string, error) {
	v, err := c.client.Get(ctx, c.key(userName)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (c *RedisCache) Set(ctx context.Context, userName, id string) error {
	return c.client.Set(ctx, c.key(userName), id, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, userName string) error {
	return c.client.Del(ctx, c.key(userName)).Err()
}
