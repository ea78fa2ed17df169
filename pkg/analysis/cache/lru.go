package cache

import (
	"container/list"
	"sync"
)

// lru is the in-memory mirror of the store, bounded by entry count.
// Hits refresh recency; overflow evicts the coldest entry.
type lru struct {
	mu    sync.Mutex
	limit int
	order *list.List
	items map[string]*list.Element
}

type lruItem struct {
	key   string
	entry *Entry
}

func newLRU(limit int) *lru {
	return &lru{
		limit: limit,
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

func (l *lru) get(key string) (*Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el, ok := l.items[key]
	if !ok {
		return nil, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruItem).entry, true
}

func (l *lru) put(key string, e *Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.items[key]; ok {
		el.Value.(*lruItem).entry = e
		l.order.MoveToFront(el)
		return
	}
	l.items[key] = l.order.PushFront(&lruItem{key: key, entry: e})
	for l.limit > 0 && l.order.Len() > l.limit {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.items, oldest.Value.(*lruItem).key)
	}
}

func (l *lru) remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.items[key]; ok {
		l.order.Remove(el)
		delete(l.items, key)
	}
}

func (l *lru) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
