// Package cache keeps short-lived results of read queries.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// PricesKey is the key for the latest prices view.
const PricesKey = "coins"

const defaultSize = 128

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache maps keys to values that expire after a TTL.
//
// It holds no lock around producers: two callers missing the same key at
// once both run their producer and the last one to finish is kept.
type Cache struct {
	entries *lru.Cache
	now     func() time.Time
}

// New creates a cache holding at most size keys.
func New(size int) *Cache {
	if size <= 0 {
		size = defaultSize
	}

	entries, _ := lru.New(size)

	return &Cache{entries: entries, now: time.Now}
}

// Invalidate removes a key.
func (c *Cache) Invalidate(key string) {
	c.entries.Remove(key)
}

func (c *Cache) lookup(key string) (any, bool) {
	raw, ok := c.entries.Get(key)

	if !ok {
		return nil, false
	}

	cached := raw.(entry)

	if !c.now().Before(cached.expiresAt) {
		c.entries.Remove(key)

		return nil, false
	}

	return cached.value, true
}

// GetOrPopulate returns the cached value for key, or stores the producer's result for ttl.
//
// Producer errors are returned and not cached.
func GetOrPopulate[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	producer func(context.Context) (T, error),
) (T, error) {
	if value, ok := c.lookup(key); ok {
		if typed, ok := value.(T); ok {
			return typed, nil
		}
	}

	value, err := producer(ctx)

	if err != nil {
		var zero T

		return zero, err
	}

	if ttl > 0 {
		c.entries.Add(key, entry{value: value, expiresAt: c.now().Add(ttl)})
	}

	return value, nil
}
