// Package catalog resolves individual products against the store API,
// caching results per id, and keeps the optional search index in sync.
package catalog

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mshuvalov/storefront/internal/models"
)

// Fetcher is the slice of the store API client the cache needs.
type Fetcher interface {
	ProductByID(ctx context.Context, id int) (models.Product, error)
}

// CacheObserver counts hits and misses. Nil disables counting.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// Cache is a read-through product cache. Concurrent lookups for the same id
// share one upstream call. Each key carries a generation counter: an
// invalidation bumps it, so an in-flight fetch started under the old
// generation resolves for its callers but never repopulates the cache with
// a stale value.
type Cache struct {
	fetch    Fetcher
	observer CacheObserver

	mu      sync.Mutex
	entries map[int]models.Product
	gens    map[int]uint64

	group singleflight.Group
}

func NewCache(fetch Fetcher, observer CacheObserver) *Cache {
	return &Cache{
		fetch:    fetch,
		observer: observer,
		entries:  make(map[int]models.Product),
		gens:     make(map[int]uint64),
	}
}

// Product returns the cached snapshot for id, fetching it on miss. Errors
// are not cached; the next caller retries.
func (c *Cache) Product(ctx context.Context, id int) (models.Product, error) {
	c.mu.Lock()
	if p, ok := c.entries[id]; ok {
		c.mu.Unlock()
		if c.observer != nil {
			c.observer.CacheHit()
		}
		return p, nil
	}
	gen := c.gens[id]
	c.mu.Unlock()

	// The miss is counted inside the flight so it stays one-to-one with
	// upstream requests, however many callers join.
	v, err, _ := c.group.Do(strconv.Itoa(id), func() (any, error) {
		if c.observer != nil {
			c.observer.CacheMiss()
		}
		return c.fetch.ProductByID(ctx, id)
	})
	if err != nil {
		return models.Product{}, err
	}
	p := v.(models.Product)

	c.mu.Lock()
	if c.gens[id] == gen {
		c.entries[id] = p
	}
	c.mu.Unlock()

	return p, nil
}

// Invalidate drops id from the cache and bumps its generation so that any
// response still in flight is discarded as stale.
func (c *Cache) Invalidate(id int) {
	c.mu.Lock()
	delete(c.entries, id)
	c.gens[id]++
	c.mu.Unlock()
	c.group.Forget(strconv.Itoa(id))
}

// Len reports the number of cached products.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
