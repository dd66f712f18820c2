// Package cache implements the TTL+LRU cache used for the recall and rules
// hot paths, per spec §4.F. Grounded on the original's TTLCache
// (evict-expired-then-evict-oldest, a single lock, a stats view).
package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultTTL is the default entry lifetime in seconds.
	DefaultTTL = 5 * time.Second
	// DefaultMaxSize is the default capacity before eviction kicks in.
	DefaultMaxSize = 100
)

type entry struct {
	value     any
	expiresAt time.Time
	insertedAt time.Time
}

// Stats mirrors the original's hit/miss/hit_rate view.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

// Cache is a single-lock TTL+LRU cache. All operations are serialized by
// one mutex, per spec §5's "thread/task-safe via a single mutex per cache
// instance".
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]entry
	hits    int64
	misses  int64
}

// New returns a cache with the given TTL and capacity. ttl<=0 and
// maxSize<=0 fall back to the package defaults.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{ttl: ttl, maxSize: maxSize, entries: make(map[string]entry)}
}

// Get returns (found, value). A found entry past its TTL counts as a miss
// and is evicted.
func (c *Cache) Get(key string) (bool, any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return false, nil
	}
	c.hits++
	return true, e.value
}

// Set inserts or replaces a key, evicting expired entries first and then
// the oldest entry if still at capacity.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictExpiredLocked(now)
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = entry{value: value, expiresAt: now.Add(c.ttl), insertedAt: now}
}

func (c *Cache) evictExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.insertedAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear empties the cache, returning how many entries were evicted.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]entry)
	return n
}

// Stats returns hit/miss counters and the derived hit rate.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{Hits: c.hits, Misses: c.misses, HitRate: rate}
}

// NormalizeKey builds a stable cache key from arbitrary argument values:
// slices are treated as ordered tuples, maps have their keys sorted before
// joining, matching the original's "lists->tuples, maps->sorted pairs"
// normalization so the same logical query always hashes to the same key.
func NormalizeKey(parts ...any) string {
	normalized := make([]any, len(parts))
	for i, p := range parts {
		normalized[i] = normalize(p)
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Sprintf("%v", normalized)
	}
	return string(b)
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([][2]any, 0, len(t))
		for _, k := range keys {
			pairs = append(pairs, [2]any{k, normalize(t[k])})
		}
		return pairs
	case []string:
		cp := append([]string{}, t...)
		return cp
	default:
		return v
	}
}
