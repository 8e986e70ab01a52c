package layout

import (
	"sync"

	"coregraph/internal/types"
)

type cacheEntry struct {
	Layout TypeLayout
	Err    *LayoutError
}

// cache memoizes per-type results. Engines are shared by concurrent readers
// (reloc.ResolveAll fans ResolveRecord out over one engine per side), so the
// map is guarded; recomputing a type lost in a put/put race is harmless as
// layouts are deterministic.
type cache struct {
	mu     sync.RWMutex
	byType map[types.TypeID]cacheEntry
}

func newCache() *cache {
	return &cache{byType: make(map[types.TypeID]cacheEntry, 256)}
}

func (c *cache) get(id types.TypeID) (cacheEntry, bool) {
	if c == nil {
		return cacheEntry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byType[id]
	return e, ok
}

func (c *cache) put(id types.TypeID, e cacheEntry) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byType[id] = e
}
