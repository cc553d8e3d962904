package cache

import (
	"context"
	"time"
)

// Cache defines the unified interface for cache operations.
// This abstraction allows switching between different cache implementations
// (Redis, local memory) without changing business logic.
type Cache interface {
	BasicOps
	LockOps
	PubSubOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get retrieves the value for the given key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL
	// If ttl is 0, the key will not expire
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX sets the value only if the key does not exist (atomic operation)
	// Returns true if the key was set, false if it already existed
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Exists checks if one or more keys exist
	// Returns the number of keys that exist
	Exists(ctx context.Context, keys ...string) (int64, error)

	// Expire sets a timeout on a key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining time to live of a key
	// Returns -1 if the key exists but has no expiration
	// Returns -2 if the key does not exist
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Incr increments the integer value of a key by 1
	Incr(ctx context.Context, key string) (int64, error)

	// IncrBy increments the integer value of a key by the given amount
	IncrBy(ctx context.Context, key string, value int64) (int64, error)
}

// LockOps defines distributed lock operations
type LockOps interface {
	// TryLock attempts to acquire a distributed lock
	// Returns true if lock was acquired, false otherwise
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases a distributed lock
	Unlock(ctx context.Context, key string) error
}

// PubSubOps defines publish/subscribe operations used by the result
// delivery relay to fan events out across service instances.
type PubSubOps interface {
	// Publish sends a message to the given channel
	Publish(ctx context.Context, channel string, payload interface{}) error

	// Subscribe subscribes to one or more channels; messages arrive on the
	// returned Subscription until it is closed or the context is cancelled
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)

	// PSubscribe subscribes to one or more channel patterns (glob style,
	// e.g. "delivery:user:*")
	PSubscribe(ctx context.Context, patterns ...string) (Subscription, error)
}

// Subscription is a live pub/sub subscription.
type Subscription interface {
	// Messages returns the channel delivering published payloads
	Messages() <-chan Message

	// Close terminates the subscription
	Close() error
}

// Message is one published pub/sub payload.
type Message struct {
	Channel string
	Payload string
}

// NullCacheValue is a sentinel value to represent null/empty data in cache
// This prevents cache penetration by caching the absence of data
const NullCacheValue = "$NULL$"

// GetWithCached implements cache-aside pattern with null value caching.
// It tries to get data from cache first; on a miss it calls the fetch
// function and stores the result. Empty results are cached with a shorter
// TTL to prevent cache penetration.
func GetWithCached[T any](
	ctx context.Context,
	cache Cache,
	key string,
	ttl time.Duration,
	emptyTTL time.Duration,
	isEmpty func(T) bool,
	marshal func(T) string,
	unmarshal func(string) (T, error),
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	// Try to get from cache first
	if cached, err := cache.Get(ctx, key); err == nil && cached != "" {
		if cached == NullCacheValue {
			return zero, nil
		}
		if result, err := unmarshal(cached); err == nil {
			return result, nil
		}
	}

	// Cache miss: fetch from source
	data, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	if isEmpty(data) {
		_ = cache.Set(ctx, key, NullCacheValue, emptyTTL)
		return zero, nil
	}

	_ = cache.Set(ctx, key, marshal(data), ttl)
	return data, nil
}
