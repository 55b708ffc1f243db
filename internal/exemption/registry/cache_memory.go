package registry

import (
	"context"
	"sync"
	"time"

	"vatguard/pkg/platform/sentinel"
)

type cachedStatus struct {
	status   Status
	storedAt time.Time
}

// MemoryCache keeps registry answers in process with TTL expiration.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cachedStatus
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache with the specified TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cachedStatus),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Find returns a cached answer, or sentinel.ErrNotFound if absent or expired.
func (c *MemoryCache) Find(_ context.Context, countryCode, number string) (Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cached, ok := c.entries[countryCode+number]; ok {
		if c.now().Sub(cached.storedAt) < c.ttl {
			return cached.status, nil
		}
	}
	return StatusUnknown, sentinel.ErrNotFound
}

// Save stores a definitive answer; StatusUnknown is ignored.
func (c *MemoryCache) Save(_ context.Context, countryCode, number string, status Status) error {
	if !status.Definitive() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[countryCode+number] = cachedStatus{status: status, storedAt: c.now()}
	return nil
}
