// internal/cache/lru.go
//
// Small bounded LRU with per-entry expiry.  The Vault client keeps resolved
// secret values here so repeated lookups of one reference during start-up
// hit Vault once.  Safe for concurrent use.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a least-recently-used cache whose entries also expire after ttl.
// A ttl of zero means entries never expire.
type LRU[K comparable, V any] struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	now  func() time.Time
	ll   *list.List
	dict map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key K
	val V
	exp time.Time
}

// New returns an LRU with the given capacity.  Panics on capacity < 1.
func New[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity < 1 {
		panic("cache: capacity must be ≥1")
	}
	return &LRU[K, V]{
		cap:  capacity,
		ttl:  ttl,
		now:  time.Now,
		ll:   list.New(),
		dict: make(map[K]*list.Element, capacity),
	}
}

// Get returns the live value for key and marks it MRU.  Expired entries are
// dropped on sight.
func (c *LRU[K, V]) Get(key K) (val V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, hit := c.dict[key]
	if !hit {
		return val, false
	}
	e := ele.Value.(entry[K, V])
	if !e.exp.IsZero() && !c.now().Before(e.exp) {
		c.ll.Remove(ele)
		delete(c.dict, key)
		return val, false
	}
	c.ll.MoveToFront(ele)
	return e.val, true
}

// Add inserts or refreshes a value, evicting the LRU entry when full.
func (c *LRU[K, V]) Add(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[K, V]{key: key, val: val}
	if c.ttl > 0 {
		e.exp = c.now().Add(c.ttl)
	}
	if ele, hit := c.dict[key]; hit {
		ele.Value = e
		c.ll.MoveToFront(ele)
		return
	}
	c.dict[key] = c.ll.PushFront(e)
	if c.ll.Len() > c.cap {
		last := c.ll.Back()
		c.ll.Remove(last)
		delete(c.dict, last.Value.(entry[K, V]).key)
	}
}

// Len reports current size, expired entries included.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
