package cache

import (
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	savedAt time.Time
}

// MemoryCache is an in-process Cache with an optional TTL. A zero TTL
// disables expiry.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached value, dropping it first if expired.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.savedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

// Set stores a value, overwriting any previous entry.
func (c *MemoryCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, savedAt: c.now()}
}

// Len returns the number of stored entries, including not-yet-reaped
// expired ones.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
