package protocol

import (
	"container/list"
	"sync"
)

// DefaultDeltaCacheLimit is the default byte budget for a DeltaCache, a
// working set large enough to hold the base-object chain of a typical
// AUR package pack without retaining the whole pack in memory.
const DefaultDeltaCacheLimit = 10 * 1024 * 1024

// DeltaCache memoizes resolved objects by pack offset, evicting the
// least-recently-used entries once their combined size exceeds a byte
// budget. Delta chains in AUR packs frequently share bases (successive
// commits touching the same package), so caching resolved bases avoids
// re-walking the same chain for every descendant.
type DeltaCache struct {
	mu    sync.Mutex
	limit int
	used  int
	ll    *list.List
	items map[int64]*list.Element
}

type cacheEntry struct {
	offset int64
	object Object
}

// NewDeltaCache creates a cache with the given byte budget. A limit of
// 0 uses DefaultDeltaCacheLimit.
func NewDeltaCache(limit int) *DeltaCache {
	if limit <= 0 {
		limit = DefaultDeltaCacheLimit
	}
	return &DeltaCache{
		limit: limit,
		ll:    list.New(),
		items: make(map[int64]*list.Element),
	}
}

// Get returns the cached object at offset, if present, moving it to the
// most-recently-used position.
func (c *DeltaCache) Get(offset int64) (Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[offset]
	if !ok {
		return Object{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).object, true
}

// Put inserts or refreshes the object at offset, evicting
// least-recently-used entries until the cache is back under budget.
func (c *DeltaCache) Put(offset int64, obj Object) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[offset]; ok {
		old := el.Value.(*cacheEntry).object
		c.used += len(obj.Data) - len(old.Data)
		el.Value.(*cacheEntry).object = obj
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&cacheEntry{offset: offset, object: obj})
		c.items[offset] = el
		c.used += len(obj.Data)
	}

	for c.used > c.limit && c.ll.Len() > 0 {
		back := c.ll.Back()
		entry := back.Value.(*cacheEntry)
		c.ll.Remove(back)
		delete(c.items, entry.offset)
		c.used -= len(entry.object.Data)
	}
}

// Len reports the number of entries currently cached.
func (c *DeltaCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
