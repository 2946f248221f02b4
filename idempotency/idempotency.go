package idempotency

import (
	"fmt"
	"sync"
	"time"
)

/* Cache records the serialized response of a completed request so a
 * retried request with the same idempotency key replays the captured
 * result instead of re-executing the handler. Entries are scoped to the
 * authenticated key, so callers cannot replay each other's responses.
 */

// Entry is one captured response
type Entry struct {
	StatusCode int
	Body       []byte
	StoredAt   time.Time
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache that retains captured responses for ttl
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithNow overrides the clock, for tests
func (c *Cache) WithNow(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the captured response for (apiKey, idempotencyKey) if one
// exists within the retention window.
func (c *Cache) Get(apiKey, idempotencyKey string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey(apiKey, idempotencyKey)]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(entry.StoredAt) > c.ttl {
		delete(c.entries, cacheKey(apiKey, idempotencyKey))
		return Entry{}, false
	}
	return entry, true
}

// Store captures a response for later replay
func (c *Cache) Store(apiKey, idempotencyKey string, statusCode int, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(apiKey, idempotencyKey)] = Entry{
		StatusCode: statusCode,
		Body:       body,
		StoredAt:   c.now(),
	}
}

// Sweep removes expired entries and returns the number removed
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.StoredAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func cacheKey(apiKey, idempotencyKey string) string {
	return fmt.Sprintf("%s:%s", apiKey, idempotencyKey)
}
