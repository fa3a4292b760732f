package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Backends selectable via configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// New builds a cache for the configured backend. The redis backend
// requires a client; when backend is anything else, or the client is
// nil, it falls back to the in-process LRU.
func New[T any](backend string, client *redis.Client, prefix string, maxSize int, ttl time.Duration) Cache[T] {
	if backend == BackendRedis && client != nil {
		return NewRedisCache[T](client, prefix, ttl)
	}
	return NewLRUCache[T](maxSize, ttl)
}
