package domain

import (
	"context"
	"time"
)

// Cache defines the caching and locking surface.
// The TryLock/Unlock pair backs the retraining batcher's single-flight
// critical section: Redis SET NX in Pro, an in-process table in Community.
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// TryLock attempts to acquire a named lock for at most ttl.
	// Returns false without blocking when the lock is already held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases a lock acquired via TryLock.
	Unlock(ctx context.Context, key string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}
