package cache

import "fmt"

// Config sets up a combined cache.
type Config struct {
	// Dir is the on-disk cache directory.
	Dir string
	// MemoryLimit bounds the in-memory mirror by entry count.
	// Zero means 64.
	MemoryLimit int
}

// Cache pairs the durable store with its LRU mirror. Reads hit memory
// first; writes go through the store (picking up merges) and the merged
// result lands back in memory.
type Cache struct {
	store *Store
	mem   *lru
}

// New opens a cache rooted at cfg.Dir.
func New(cfg Config) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache: dir required")
	}
	limit := cfg.MemoryLimit
	if limit <= 0 {
		limit = 64
	}
	store, err := NewStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, mem: newLRU(limit)}, nil
}

// Get returns the cached entry matching id, or a miss. A memory hit with
// a stale identity falls through to disk.
func (c *Cache) Get(id Identity) (*Entry, bool) {
	key := Key(id.Path)
	if e, ok := c.mem.get(key); ok && e.Meta.Identity == id {
		return e, true
	}
	e, ok := c.store.Get(id)
	if !ok {
		return nil, false
	}
	c.mem.put(key, e)
	return e, true
}

// Put persists the entry. The stored (possibly merged) form replaces any
// memory copy.
func (c *Cache) Put(e *Entry) error {
	if err := c.store.Put(e); err != nil {
		return err
	}
	c.mem.put(Key(e.Meta.Path), e)
	return nil
}

// Delete drops a clip's entry from disk and memory.
func (c *Cache) Delete(path string) error {
	c.mem.remove(Key(path))
	return c.store.Delete(path)
}
