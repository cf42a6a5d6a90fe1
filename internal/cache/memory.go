package cache

import (
	"context"
	"sync"
	"time"

	"github.com/navuara/flightsearch/internal/models"
)

// MemoryCache is the in-process result cache. Expiry is checked lazily on
// read; Sweep and StartJanitor only reclaim memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	ttl     time.Duration

	// Now is the clock; tests replace it to step past the TTL.
	Now func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[Key]Entry),
		ttl:     ttl,
		Now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key Key) (Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.Expired(c.Now(), c.ttl) {
		return Entry{}, false
	}
	return entry, true
}

func (c *MemoryCache) Set(ctx context.Context, key Key, value models.SearchResult) error {
	c.mu.Lock()
	c.entries[key] = Entry{Value: value, StoredAt: c.Now()}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep deletes expired entries and reports how many were removed.
func (c *MemoryCache) Sweep() int {
	now := c.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.Expired(now, c.ttl) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps every interval until ctx is done.
func (c *MemoryCache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[Key]Entry)
	c.mu.Unlock()
	return nil
}
