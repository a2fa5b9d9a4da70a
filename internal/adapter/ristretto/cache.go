// Package ristretto implements the frame cache port using dgraph-io/ristretto.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache keeps marshal-once frame bytes in process memory. Queue entries
// are immutable, so cached frames never need invalidation.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a ristretto-backed frame cache. maxCostBytes bounds the
// total size of cached frames in bytes.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get retrieves a cached frame.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a frame with the given TTL. Wait makes the write visible to
// immediate readers; sets happen once per queue index, so the cost is nil.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	c.c.Wait()
	return nil
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
