// Package imagery fetches satellite snapshot imagery through an ordered
// layer fallback chain with bounded retries, backed by a capacity-bounded
// LRU cache.
package imagery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/emberline/firewatch-service/internal/domain"
)

// FetchParams identifies one imagery request. Two logically identical
// requests always produce the same cache key.
type FetchParams struct {
	Satellite string
	Product   string
	Date      string // ISO-8601 date
	Center    domain.GeoPoint
	RadiusKm  float64
}

// Key hashes the full ordered parameter tuple. SHA-256 keeps distinct
// request shapes from colliding in practice.
func (p FetchParams) Key() string {
	input := fmt.Sprintf("%s|%s|%s|%.6f|%.6f|%.3f",
		p.Satellite, p.Product, p.Date, p.Center.Lat, p.Center.Lon, p.RadiusKm)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Cache stores fetched imagery payloads by key. Implementations are
// best-effort: the cache is not a source of truth and unreadable entries are
// reported as misses rather than errors.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, payload []byte)
}

// LRUCache is an in-memory Cache with least-recently-used eviction. No
// time-based expiry; the entry count alone bounds the cache.
type LRUCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	payload []byte
	prev    *entry
	next    *entry
}

// NewLRUCache creates a cache holding at most maxEntries payloads.
func NewLRUCache(maxEntries int) *LRUCache {
	return &LRUCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// Get returns the payload for key and promotes the entry. An empty payload
// is treated as a miss (fail-open on unreadable entries).
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || len(e.payload) == 0 {
		return nil, false
	}
	c.moveToFront(e)
	return e.payload, true
}

// Set stores payload under key, evicting the least-recently-used entry when
// the cache is over capacity.
func (c *LRUCache) Set(key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.payload = payload
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, payload: payload}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRUCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *LRUCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRUCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *LRUCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
