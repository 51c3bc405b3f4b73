package cache

import (
	"context"
	"time"
)

// Cache is the subset of Redis the judge relies on: plain key access for
// the template cache plus the counters used by the rate limiter.
type Cache interface {
	Ping(ctx context.Context) error
	Close() error

	// Get returns "" with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error

	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}
