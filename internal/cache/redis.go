package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores JSON-encoded values in Redis under a key prefix.
// Expiry is delegated to Redis, so CleanExpired is a no-op. Redis
// errors degrade to cache misses; the database remains the source of
// truth either way.
type RedisCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache[T any](client *redis.Client, prefix string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisCache[T]) Get(key string) (T, bool) {
	var zero T

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	body, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("Redis get failed", "key", key, "error", err)
		}
		return zero, false
	}

	var data T
	if err := json.Unmarshal(body, &data); err != nil {
		slog.Warn("Redis value unmarshal failed", "key", key, "error", err)
		return zero, false
	}
	return data, true
}

func (c *RedisCache[T]) Set(key string, data T) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Redis value marshal failed", "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.client.Set(ctx, c.prefix+key, body, c.ttl).Err(); err != nil {
		slog.Warn("Redis set failed", "key", key, "error", err)
	}
}

func (c *RedisCache[T]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		slog.Warn("Redis delete failed", "key", key, "error", err)
	}
}

func (c *RedisCache[T]) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var count int
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

// CleanExpired is a no-op: Redis evicts expired keys itself.
func (c *RedisCache[T]) CleanExpired() int {
	return 0
}
