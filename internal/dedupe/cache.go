package dedupe

import (
	"context"
	"slices"
	"sync"
	"time"
)

// minQueueSlack bounds how many superseded queue entries small caches keep.
const minQueueSlack = 64

// Store records which job id owns a dedupe key across batches.
type Store interface {
	// Claim binds key to id. It returns false when key is already bound to a
	// different id inside the retention window.
	Claim(ctx context.Context, key, id string) (bool, error)
}

type claim struct {
	id string
	ts time.Time
}

type entry struct {
	key string
	ts  time.Time
}

// Cache is an in-process Store with a fixed capacity and a ttl.
type Cache struct {
	mu       sync.Mutex
	items    map[string]claim
	order    []entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		items:    make(map[string]claim, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Claim implements Store. A repeated claim by the same id refreshes the entry.
func (c *Cache) Claim(_ context.Context, key, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.compact(now)

	if cur, ok := c.items[key]; ok && now.Sub(cur.ts) <= c.ttl && cur.id != id {
		return false, nil
	}

	c.items[key] = claim{id: id, ts: now}
	c.order = append(c.order, entry{key: key, ts: now})
	c.compact(now)
	if len(c.order) > 2*len(c.items)+minQueueSlack {
		c.dropSuperseded()
	}
	return true, nil
}

// Len reports how many keys are currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		// A refreshed key has a newer entry further down the queue.
		if cur, ok := c.items[oldest.key]; ok && cur.ts.Equal(oldest.ts) {
			delete(c.items, oldest.key)
		}
	}
}

// dropSuperseded rebuilds the queue with one entry per held key, the one
// matching its current claim.
func (c *Cache) dropSuperseded() {
	kept := make([]entry, 0, len(c.items))
	seen := make(map[string]struct{}, len(c.items))
	for i := len(c.order) - 1; i >= 0; i-- {
		e := c.order[i]
		if _, dup := seen[e.key]; dup {
			continue
		}
		if cur, ok := c.items[e.key]; ok && cur.ts.Equal(e.ts) {
			seen[e.key] = struct{}{}
			kept = append(kept, e)
		}
	}
	slices.Reverse(kept)
	c.order = kept
}
