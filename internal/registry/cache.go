package registry

import (
	"sync"
	"time"
)

// Cache is the injected platform-config cache. Implementations must replace
// entries atomically as whole objects: a concurrent reader sees either the
// previous *Platform or the new one, never a torn value. Cached platforms
// are treated as immutable — callers must not mutate what Get returns.
type Cache interface {
	Get(id string) (*Platform, bool)
	Set(id string, p *Platform)
	Delete(id string)
	Purge()
}

type cacheEntry struct {
	platform  *Platform
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache. Entries are evicted lazily on Get
// and eagerly on Delete/Purge; writes replace the whole entry under a lock,
// which gives the atomic-replacement contract for free.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time // test hook
}

// NewMemoryCache creates a MemoryCache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached platform if present and fresh.
func (c *MemoryCache) Get(id string) (*Platform, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a fresh Set may have raced us.
		if e2, ok := c.entries[id]; ok && c.now().After(e2.expiresAt) {
			delete(c.entries, id)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.platform, true
}

// Set stores a platform with a fresh TTL.
func (c *MemoryCache) Set(id string, p *Platform) {
	c.mu.Lock()
	c.entries[id] = cacheEntry{platform: p, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Delete evicts one entry.
func (c *MemoryCache) Delete(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Purge evicts everything.
func (c *MemoryCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
