// Package beatmaps resolves beatmap ids to parsed charts through a bounded
// in-memory cache backed by local storage and an optional remote source.
package beatmaps

import (
	"sync"

	"github.com/refx-online/omajinai/internal/domain/beatmap"
)

// cache is a bounded map with insertion-order eviction. Map iteration order
// is not insertion order in Go, so the order is tracked in a separate queue.
// Reads share the lock; inserts and evictions take it exclusively.
type cache struct {
	mu      sync.RWMutex
	entries map[int64]*beatmap.Beatmap
	order   []int64
	bound   int
}

func newCache(bound int) *cache {
	return &cache{
		entries: make(map[int64]*beatmap.Beatmap),
		bound:   bound,
	}
}

// get returns a clone of the cached beatmap, if present.
func (c *cache) get(id int64) (*beatmap.Beatmap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bm, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return bm.Clone(), true
}

// put inserts a beatmap and evicts the oldest-inserted entries beyond the
// bound. Returns the number of evicted entries.
func (c *cache) put(id int64, bm *beatmap.Beatmap) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; !exists {
		c.order = append(c.order, id)
	}
	c.entries[id] = bm

	evicted := 0
	for len(c.entries) > c.bound && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			evicted++
		}
	}
	return evicted
}

// len returns the current entry count.
func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
