// Package cache defines the port interface for caching encoded frames.
package cache

import (
	"context"
	"time"
)

// Cache is a key-value byte cache. The broadcaster uses it to keep
// marshal-once copies of queue frames, keyed by entry index.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
