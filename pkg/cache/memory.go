package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lborres/tanod/core"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 500
)

// InMemoryCache is a bounded in-process session cache. When full it evicts
// the entry closest to expiry.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
	now     core.Clock

	hits, misses, sets, deletes, evictions atomic.Int64
}

var _ core.CacheWithStats = (*InMemoryCache)(nil)

type entry struct {
	session core.Session
	until   time.Time
}

func NewInMemoryCache(c core.CacheConfig) *InMemoryCache {
	return newInMemoryCache(c, core.SystemClock)
}

func newInMemoryCache(c core.CacheConfig, now core.Clock) *InMemoryCache {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}

	return &InMemoryCache{
		entries: make(map[string]*entry, c.MaxSize),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
		now:     now,
	}
}

// Get returns a copy of the cached session.
func (c *InMemoryCache) Get(_ context.Context, tokenHash string) (*core.Session, error) {
	c.mu.RLock()
	e, ok := c.entries[tokenHash]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, core.ErrCacheNotFound
	}

	if c.now().After(e.until) {
		c.misses.Add(1)
		c.mu.Lock()
		// a concurrent Set may have replaced it
		if c.entries[tokenHash] == e {
			delete(c.entries, tokenHash)
		}
		c.mu.Unlock()
		return nil, core.ErrCacheNotFound
	}

	c.hits.Add(1)
	s := e.session
	return &s, nil
}

// Set stores a copy of session until the cache TTL passes or the session
// expires, whichever is sooner.
func (c *InMemoryCache) Set(_ context.Context, tokenHash string, session *core.Session) error {
	until := c.now().Add(c.ttl)
	if session.ExpiresAt.Before(until) {
		until = session.ExpiresAt
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, replacing := c.entries[tokenHash]; !replacing && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[tokenHash] = &entry{session: *session, until: until}

	c.sets.Add(1)
	return nil
}

// evictLocked drops the entry that would leave the cache first.
func (c *InMemoryCache) evictLocked() {
	var (
		victim string
		first  time.Time
	)
	for k, e := range c.entries {
		if victim == "" || e.until.Before(first) {
			victim, first = k, e.until
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.evictions.Add(1)
	}
}

func (c *InMemoryCache) Delete(_ context.Context, tokenHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[tokenHash]; ok {
		delete(c.entries, tokenHash)
		c.deletes.Add(1)
	}
	return nil
}

// Len returns the number of cached sessions, expired ones included until
// they are read or evicted.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryCache) Stats() core.CacheStats {
	return core.CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}
