package recur

import (
	"fmt"
	"sync"
	"time"

	"github.com/nhle/taskcal/internal/model"
)

// cacheEntry holds one memoized expansion.
type cacheEntry struct {
	days       []time.Time
	expiresAt  time.Time
	accessedAt time.Time
}

// Cache memoizes Expand results keyed by task version and range, so a
// view can be re-rendered on every state change without recomputing
// unchanged series. Entries expire after a TTL and the oldest-accessed
// entries are evicted past a size limit.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
}

// DefaultTTL is how long a cached expansion stays valid.
const DefaultTTL = 15 * time.Minute

// DefaultMaxEntries caps the cache size before eviction kicks in.
const DefaultMaxEntries = 1000

// NewCache creates a Cache. Non-positive arguments select the defaults.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// cacheKey identifies an expansion by task identity, task version, and
// the requested range. Ledger state is irrelevant here: expansion is a
// pure function of the task definition.
func cacheKey(t model.Task, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%s|%s",
		t.ID, t.UpdatedAt.UnixNano(), model.DateKey(start), model.DateKey(end))
}

// Expand returns the memoized expansion for the task and range,
// computing and storing it on a miss.
func (c *Cache) Expand(t model.Task, start, end time.Time) ([]time.Time, error) {
	key := cacheKey(t, start, end)
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		e.accessedAt = now
		days := e.days
		c.mu.Unlock()
		return days, nil
	}
	c.mu.Unlock()

	days, err := Expand(t, start, end)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		days:       days,
		expiresAt:  now.Add(c.ttl),
		accessedAt: now,
	}
	if len(c.entries) > c.maxEntries {
		c.evict(now)
	}
	c.mu.Unlock()

	return days, nil
}

// Invalidate drops every cached expansion for the given task.
func (c *Cache) Invalidate(taskID string) {
	prefix := taskID + "|"
	c.mu.Lock()
	for key := range c.entries {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict removes expired entries, then the least recently accessed ones
// until the cache is back under its limit. Caller holds c.mu.
func (c *Cache) evict(now time.Time) {
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	for len(c.entries) > c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for key, e := range c.entries {
			if oldestKey == "" || e.accessedAt.Before(oldest) {
				oldestKey = key
				oldest = e.accessedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}
