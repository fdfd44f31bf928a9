package license

import (
	"sync"
	"time"
)

// ValidationCache holds the last validation result of a Client.
type ValidationCache interface {
	Get() (*ValidationResult, bool)
	Set(result *ValidationResult)
	Clear()
}

// TTLCache keeps one validation result for a fixed time.
type TTLCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	entry    *ValidationResult
	storedAt time.Time
}

// NewTTLCache creates a cache whose entries are fresh while younger than
// ttl. A nil now uses time.Now.
func NewTTLCache(ttl time.Duration, now func() time.Time) *TTLCache {
	if now == nil {
		now = time.Now
	}
	return &TTLCache{ttl: ttl, now: now}
}

// Get returns a copy of the cached result if it is still fresh.
func (c *TTLCache) Get() (*ValidationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry == nil || c.now().Sub(c.storedAt) >= c.ttl {
		return nil, false
	}
	return c.entry.clone(), true
}

// Set stores a copy of result stamped with the current time.
func (c *TTLCache) Set(result *ValidationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = result.clone()
	c.storedAt = c.now()
}

// Clear drops the cached result.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = nil
	c.storedAt = time.Time{}
}
