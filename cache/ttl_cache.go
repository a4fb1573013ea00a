package cache

import (
	"sync"
	"time"
)

// sweepInterval spaces out the full scans that writes trigger.
const sweepInterval = time.Minute

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func newEntry[V any](value V, ttl time.Duration, now time.Time) cacheEntry[V] {
	entry := cacheEntry[V]{value: value}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	return entry
}

func (e cacheEntry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// TTLCache stores values in memory with per-entry TTLs.
type TTLCache[K comparable, V any] struct {
	mu        sync.RWMutex
	items     map[K]cacheEntry[V]
	now       func() time.Time
	nextSweep time.Time
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{items: make(map[K]cacheEntry[V]), now: time.Now}
}

// Get returns a value if present and not expired. Expired entries are
// evicted on read.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if entry.expired(c.now()) {
		c.Delete(key)
		return zero, false
	}
	return entry.value, true
}

// GetOrSet returns the live value for key, storing the result of create
// when there is none. The TTL is refreshed on every call.
func (c *TTLCache[K, V]) GetOrSet(key K, ttl time.Duration, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.sweepLocked(now)
	entry, ok := c.items[key]
	if !ok || entry.expired(now) {
		entry = cacheEntry[V]{value: create()}
	}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.items[key] = entry
	return entry.value
}

func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	now := c.now()
	c.mu.Lock()
	c.sweepLocked(now)
	c.items[key] = newEntry(value, ttl, now)
	c.mu.Unlock()
}

// SetUnless stores value unless the live entry for key satisfies keep. The
// check and the store happen under one lock. It returns the live value and
// false when the existing entry was kept.
func (c *TTLCache[K, V]) SetUnless(key K, value V, ttl time.Duration, keep func(V) bool) (V, bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
	if entry, ok := c.items[key]; ok && !entry.expired(now) && keep(entry.value) {
		return entry.value, false
	}
	c.items[key] = newEntry(value, ttl, now)
	return value, true
}

// Sweep evicts every expired entry.
func (c *TTLCache[K, V]) Sweep() {
	if c == nil {
		return
	}
	now := c.now()
	c.mu.Lock()
	c.nextSweep = time.Time{}
	c.sweepLocked(now)
	c.mu.Unlock()
}

// sweepLocked evicts expired entries at most once per sweepInterval, so
// keys that are written once and never read again do not pile up.
func (c *TTLCache[K, V]) sweepLocked(now time.Time) {
	if now.Before(c.nextSweep) {
		return
	}
	for k, entry := range c.items {
		if entry.expired(now) {
			delete(c.items, k)
		}
	}
	c.nextSweep = now.Add(sweepInterval)
}

func (c *TTLCache[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// DeleteFunc removes every entry whose key matches.
func (c *TTLCache[K, V]) DeleteFunc(match func(K) bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	for k := range c.items {
		if match(k) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

// Len counts entries, expired ones included.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
