package leaderboard

import (
	"sync"
	"time"
)

// Cache is an in-process map of payloads with the time they were stored.
// Freshness is decided by the caller's TTL on every Get.
//
// When maxItems is positive the cache never holds more than maxItems
// entries: a Put of a new key into a full cache first drops entries older
// than maxAge, and if none are, the oldest entry.
type Cache[T any] struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry[T]
	maxItems int
	maxAge   time.Duration
	now      func() time.Time
}

type cacheEntry[T any] struct {
	Data       T
	InsertedAt time.Time
}

// NewCache builds a cache; maxItems <= 0 means unbounded.
func NewCache[T any](maxItems int, maxAge time.Duration) *Cache[T] {
	return &Cache[T]{
		entries:  make(map[string]cacheEntry[T]),
		maxItems: maxItems,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Get returns the entry for key when it is younger than ttl.
func (c *Cache[T]) Get(key string, ttl time.Duration) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.InsertedAt) >= ttl {
		var zero T
		return zero, false
	}
	return e.Data, true
}

func (c *Cache[T]) Put(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, ok := c.entries[key]; !ok && c.maxItems > 0 && len(c.entries) >= c.maxItems {
		c.evict(now)
	}
	c.entries[key] = cacheEntry[T]{Data: data, InsertedAt: now}
}

// evict makes room for one entry. Callers hold mu.
func (c *Cache[T]) evict(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
		removed   bool
	)
	for k, e := range c.entries {
		if c.maxAge > 0 && now.Sub(e.InsertedAt) >= c.maxAge {
			delete(c.entries, k)
			removed = true
			continue
		}
		if !found || e.InsertedAt.Before(oldest) {
			oldestKey, oldest, found = k, e.InsertedAt, true
		}
	}
	if !removed && found {
		delete(c.entries, oldestKey)
	}
}

// Len counts stored entries, fresh or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
