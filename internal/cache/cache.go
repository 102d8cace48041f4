// Package cache holds completed analysis reports keyed by a deterministic
// fingerprint of the request, with time-based expiry.
package cache

import (
	"fmt"
	"sync"
	"time"
)

// ReportTTL is how long a completed report stays servable.
const ReportTTL = 24 * time.Hour

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is an in-process TTL map. Writes are all-or-nothing; expired
// entries read as absent and are removed lazily.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Key builds a deterministic, collision-free cache key. The kind prefix
// keeps different families of entries from aliasing each other.
func Key(kind string, parts ...string) string {
	key := kind
	for _, p := range parts {
		key += fmt.Sprintf(":%d:%s", len(p), p)
	}
	return key
}

// Get returns the cached value, or nil and false when absent or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. Last write wins.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Len reports the number of live entries, counting expired ones out.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// SetClock overrides the cache's clock. Tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
