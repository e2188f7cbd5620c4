package flagcache

import "container/list"

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// lru is a bounded least-recently-used map.
// It is not synchronised; Cache guards it with its own mutex so that
// generation checks and writes happen atomically.
type lru[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	order    *list.List
	onEvict  func(key K, value V)
}

func newLRU[K comparable, V any](capacity int, onEvict func(K, V)) *lru[K, V] {
	return &lru[K, V]{
		capacity: max(capacity, 1),
		items:    make(map[K]*list.Element),
		order:    list.New(),
		onEvict:  onEvict,
	}
}

// get returns the value for key and marks it as recently used.
func (c *lru[K, V]) get(key K) (V, bool) {
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*lruEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// put inserts or replaces key, evicting the least recently used entry when full.
func (c *lru[K, V]) put(key K, value V) {
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*lruEntry[K, V]).value = value
		return
	}

	c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		entry := oldest.Value.(*lruEntry[K, V])
		delete(c.items, entry.key)
		if c.onEvict != nil {
			c.onEvict(entry.key, entry.value)
		}
	}
}

// remove deletes key without calling onEvict.
func (c *lru[K, V]) remove(key K) bool {
	elem, ok := c.items[key]
	if ok {
		c.order.Remove(elem)
		delete(c.items, key)
	}
	return ok
}

func (c *lru[K, V]) clear() {
	clear(c.items)
	c.order.Init()
}

func (c *lru[K, V]) len() int {
	return c.order.Len()
}

// each calls fn for every entry, most recently used first.
func (c *lru[K, V]) each(fn func(key K, value V)) {
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*lruEntry[K, V])
		fn(entry.key, entry.value)
	}
}
