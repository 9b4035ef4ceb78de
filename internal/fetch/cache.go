package fetch

import (
	"sync"
	"time"
)

// TTLCache is a small in-memory read-through cache. The manager keeps one
// for bar series and one for quotes; adapters keep their own realtime quote
// caches. The layers are independent and may disagree briefly, bounded by
// their respective TTLs.
type TTLCache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]ttlEntry[V]
}

type ttlEntry[V any] struct {
	value V
	at    time.Time
}

// NewTTLCache builds a cache whose entries expire after ttl.
func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{ttl: ttl, entries: make(map[string]ttlEntry[V])}
}

// Get returns the live entry for key, if any.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.at) >= c.ttl {
		var zero V
		if ok {
			delete(c.entries, key)
		}
		return zero, false
	}
	return e.value, true
}

// Set stores v under key with a fresh timestamp.
func (c *TTLCache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = ttlEntry[V]{value: v, at: time.Now()}
}
