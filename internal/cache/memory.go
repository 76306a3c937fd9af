package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"device-geocoder/internal/geo"
)

// LRU is a process-scoped, size bounded cache with per-entry TTL.
type LRU struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
	now  func() time.Time
}

type entry struct {
	key string
	res geo.Resolution
	exp time.Time
}

// NewLRU returns an LRU holding at most capacity entries for ttl each.
// A non-positive ttl keeps entries until they are evicted by size.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU{
		cap:  capacity,
		ttl:  ttl,
		lst:  list.New(),
		dict: make(map[string]*list.Element),
		now:  time.Now,
	}
}

func (c *LRU) Get(_ context.Context, key string) (geo.Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[key]
	if !ok {
		return geo.Resolution{}, false
	}
	it := e.Value.(entry)
	if c.ttl > 0 && !c.now().Before(it.exp) {
		c.lst.Remove(e)
		delete(c.dict, key)
		return geo.Resolution{}, false
	}
	c.lst.MoveToFront(e)
	return it.res, true
}

func (c *LRU) Set(_ context.Context, key string, res geo.Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := entry{key: key, res: res, exp: c.now().Add(c.ttl)}
	if e, ok := c.dict[key]; ok {
		e.Value = it
		c.lst.MoveToFront(e)
		return
	}
	c.dict[key] = c.lst.PushFront(it)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(entry).key)
		c.lst.Remove(back)
	}
}

// Len returns the number of live and expired-but-unreaped entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}
