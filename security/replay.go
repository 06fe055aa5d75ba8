package security

import (
	"sync"
	"time"
)

// ReplayCache remembers request signatures until they fall outside the
// accepted clock skew, so a captured request cannot be submitted twice.
type ReplayCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time // keyed by signature, value is expiry
}

// NewReplayCache builds a cache holding entries for ttl.
func NewReplayCache(ttl time.Duration) *ReplayCache {
	return &ReplayCache{
		ttl:  ttl,
		seen: make(map[string]time.Time),
	}
}

// Remember records sig and reports whether it was new.
func (c *ReplayCache) Remember(sig string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, exp := range c.seen {
		if now.After(exp) {
			delete(c.seen, k)
		}
	}
	if _, dup := c.seen[sig]; dup {
		return false
	}
	c.seen[sig] = now.Add(c.ttl)
	return true
}

// Len returns the number of live entries.
func (c *ReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
