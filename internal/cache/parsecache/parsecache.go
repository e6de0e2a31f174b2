// Package parsecache keeps recently validated record batches so that
// loading identical bytes again skips parsing.
package parsecache

import (
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/observability"
)

type Cache struct {
	batches *lru.Cache[string, []model.Record]
	// dataset handle -> content key it was last loaded under
	handles *lru.Cache[string, string]
}

func New(size int) *Cache {
	if size <= 0 {
		size = 128
	}
	b, _ := lru.New[string, []model.Record](size)
	h, _ := lru.New[string, string](size * 4)
	return &Cache{batches: b, handles: h}
}

// Get returns a copy of the batch stored under key.
func (c *Cache) Get(key string) ([]model.Record, bool) {
	recs, ok := c.batches.Get(key)
	observability.IncParseCache(ok)
	if !ok {
		return nil, false
	}
	return slices.Clone(recs), true
}

func (c *Cache) Add(key string, recs []model.Record) {
	c.batches.Add(key, slices.Clone(recs))
}

// Tag links a stored dataset handle to the content key its bytes hashed to.
func (c *Cache) Tag(handle, key string) {
	c.handles.Add(handle, key)
}

// EvictHandle drops the batch last loaded for handle. It reports whether
// anything was removed.
func (c *Cache) EvictHandle(handle string) bool {
	key, ok := c.handles.Peek(handle)
	if !ok {
		return false
	}
	c.handles.Remove(handle)
	return c.batches.Remove(key)
}

// GetOrParse serves key from the cache or runs parse and caches a
// successful result. Failed parses are never cached.
func (c *Cache) GetOrParse(key string, parse func() ([]model.Record, error)) ([]model.Record, bool, error) {
	if recs, ok := c.Get(key); ok {
		return recs, true, nil
	}
	recs, err := parse()
	if err != nil {
		return nil, false, err
	}
	c.Add(key, recs)
	return recs, false, nil
}

func (c *Cache) Len() int { return c.batches.Len() }
