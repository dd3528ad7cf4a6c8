package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/varscore/internal/model"
)

// MemoryCache is an in-process expiring cache. Nothing is persisted.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache. defaultTTL <= 0 keeps entries
// until the process exits.
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a bundle from the cache
func (c *MemoryCache) Get(key string) (model.AnnotationResult, bool) {
	if val, found := c.cache.Get(key); found {
		return val.(model.AnnotationResult), true
	}
	return model.AnnotationResult{}, false
}

// Set stores a bundle with the given TTL; 0 uses the default
func (c *MemoryCache) Set(key string, value model.AnnotationResult, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
}

// Delete removes a bundle from the cache
func (c *MemoryCache) Delete(key string) {
	c.cache.Delete(key)
}

// Clear removes all bundles
func (c *MemoryCache) Clear() {
	c.cache.Flush()
}

// Len returns the number of cached bundles, including expired ones not yet
// cleaned up
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}
