package suggest

import (
	"container/list"
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// CacheKey identifies a request context.
type CacheKey [blake2b.Size256]byte

// NewCacheKey hashes the document, cursor and kind.
func NewCacheKey(text string, pos Position, kind Kind) CacheKey {
	h, _ := blake2b.New256(nil)
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(pos.Line))
	binary.LittleEndian.PutUint64(buf[8:], uint64(pos.Column))
	h.Write(buf[:])
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(text))

	var k CacheKey
	copy(k[:], h.Sum(nil))
	return k
}

type cacheEntry struct {
	key     CacheKey
	value   string
	expires time.Time
}

// Cache is a bounded LRU of suggestions with a per-entry TTL.
type Cache struct {
	max int
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	order   *list.List
	entries map[CacheKey]*list.Element
}

// NewCache returns a cache holding at most max entries for ttl each.
func NewCache(max int, ttl time.Duration) *Cache {
	if max <= 0 {
		max = 1
	}
	return &Cache{
		max:     max,
		ttl:     ttl,
		now:     time.Now,
		order:   list.New(),
		entries: make(map[CacheKey]*list.Element),
	}
}

// Get returns a live entry and marks it recently used.
func (c *Cache) Get(k CacheKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[k]
	if !ok {
		return "", false
	}
	e := el.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().After(e.expires) {
		c.order.Remove(el)
		delete(c.entries, k)
		return "", false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Put stores value under k, evicting the least recently used entry when
// full.
func (c *Cache) Put(k CacheKey, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.entries[k]; ok {
		e := el.Value.(*cacheEntry)
		e.value = value
		e.expires = expires
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[k] = c.order.PushFront(&cacheEntry{key: k, value: value, expires: expires})
}

// Len returns the number of entries, including expired ones not yet
// evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.order.Init()
	c.entries = make(map[CacheKey]*list.Element)
	c.mu.Unlock()
}
