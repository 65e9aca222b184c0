package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lborres/gatekeep/core"
)

const (
	defaultTTL     = 5 * time.Minute
	defaultMaxSize = 500
)

// InMemoryCache is a size-bounded TTL cache for values of type V.
type InMemoryCache[V any] struct {
	entries map[string]entry[V]
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	// counters
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

type entry[V any] struct {
	value    V
	cachedAt time.Time
}

// NewInMemoryCache creates a cache; zero TTL or MaxSize use the defaults.
func NewInMemoryCache[V any](c core.CacheConfig) *InMemoryCache[V] {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = defaultMaxSize
	}

	return &InMemoryCache[V]{
		entries: make(map[string]entry[V]),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
		now:     time.Now,
	}
}

// WithClock replaces the cache clock. Intended for tests.
func (c *InMemoryCache[V]) WithClock(now func() time.Time) *InMemoryCache[V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Get returns core.ErrCacheNotFound for missing or expired keys. Expired
// entries are dropped on read.
func (c *InMemoryCache[V]) Get(key string) (V, error) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	expired := ok && c.now().Sub(e.cachedAt) > c.ttl
	c.mu.RUnlock()

	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return zero, core.ErrCacheNotFound
	}
	if expired {
		atomic.AddInt64(&c.misses, 1)
		c.mu.Lock()
		// re-check: a concurrent Set may have refreshed the key
		if cur, still := c.entries[key]; still && c.now().Sub(cur.cachedAt) > c.ttl {
			delete(c.entries, key)
			atomic.AddInt64(&c.evictions, 1)
		}
		c.mu.Unlock()
		return zero, core.ErrCacheNotFound
	}

	atomic.AddInt64(&c.hits, 1)
	return e.value, nil
}

func (c *InMemoryCache[V]) Set(key string, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOneLocked()
	}

	c.entries[key] = entry[V]{value: value, cachedAt: c.now()}
	atomic.AddInt64(&c.sets, 1)
	return nil
}

// evictOneLocked drops an expired entry if there is one, else an arbitrary one.
func (c *InMemoryCache[V]) evictOneLocked() {
	now := c.now()
	victim := ""
	for k, e := range c.entries {
		victim = k
		if now.Sub(e.cachedAt) > c.ttl {
			break
		}
	}
	delete(c.entries, victim)
	atomic.AddInt64(&c.evictions, 1)
}

func (c *InMemoryCache[V]) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.entries[key]; existed {
		delete(c.entries, key)
		atomic.AddInt64(&c.deletes, 1)
	}
	return nil
}

func (c *InMemoryCache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
	return nil
}

func (c *InMemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryCache[V]) Stats() core.CacheStats {
	return core.CacheStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Sets:      atomic.LoadInt64(&c.sets),
		Deletes:   atomic.LoadInt64(&c.deletes),
		Evictions: atomic.LoadInt64(&c.evictions),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}
