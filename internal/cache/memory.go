package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in a map. Expiry is lazy: an entry is only
// removed when a Get finds it stale. There is no background sweep.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Entry
	ttl   time.Duration
	clock Clock
}

// NewMemoryStore creates an in-process store.
// A ttl <= 0 falls back to 24h.
func NewMemoryStore(ttl time.Duration, clock Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		items: make(map[string]Entry),
		ttl:   ttl,
		clock: clock,
	}
}

func (c *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, ErrInvalidKey
	}

	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return Entry{}, false, nil
	}

	now := c.clock.now()
	if entry.Expired(now, c.ttl) {
		c.mu.Lock()
		// re-check: a concurrent Put may have replaced it
		if e, exists := c.items[key]; exists && e.Expired(now, c.ttl) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return Entry{}, false, nil
	}

	return entry, true, nil
}

func (c *MemoryStore) Put(_ context.Context, key string, payload string) error {
	if key == "" {
		return ErrInvalidKey
	}

	entry := Entry{Key: key, Payload: payload, CreatedAt: c.clock.now()}

	c.mu.Lock()
	c.items[key] = entry
	c.mu.Unlock()

	return nil
}

func (c *MemoryStore) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Clear removes all items and reports how many were dropped.
func (c *MemoryStore) Clear(_ context.Context) (int, error) {
	c.mu.Lock()
	n := len(c.items)
	c.items = make(map[string]Entry)
	c.mu.Unlock()
	return n, nil
}

func (c *MemoryStore) Stats(_ context.Context) (Stats, error) {
	st := Stats{Backend: "memory", TTL: c.ttl.String()}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.items {
		collectStats(&st, e, int64(len(e.Payload)))
	}
	return st, nil
}

// Len returns the number of items currently held, expired or not.
func (c *MemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
