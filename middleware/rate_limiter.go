package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	clients    map[string]*ClientBucket
	mu         sync.Mutex
	capacity   int
	refillRate int // tokens per second
	now        func() time.Time
	lastSweep  time.Time
}

// sweepInterval bounds how often idle buckets are dropped.
const sweepInterval = time.Minute

// ClientBucket tracks rate limit state for a client
type ClientBucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a limiter whose buckets hold capacity tokens and
// regain refillRate tokens per second.
func NewRateLimiter(capacity, refillRate int) *RateLimiter {
	return &RateLimiter{
		clients:    make(map[string]*ClientBucket),
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
}

// CheckRateLimit checks if a request should be allowed
func (rl *RateLimiter) CheckRateLimit(clientID string, cost int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.evictFull(now)
		rl.lastSweep = now
	}
	bucket, exists := rl.clients[clientID]
	if !exists {
		// Start with full bucket
		bucket = &ClientBucket{tokens: rl.capacity, lastRefill: now}
		rl.clients[clientID] = bucket
	}

	// Refill tokens based on elapsed time
	tokensToAdd := int(now.Sub(bucket.lastRefill).Seconds()) * rl.refillRate
	if tokensToAdd > 0 {
		bucket.tokens += tokensToAdd
		if bucket.tokens > rl.capacity {
			bucket.tokens = rl.capacity
		}
		bucket.lastRefill = now
	}

	if bucket.tokens >= cost {
		bucket.tokens -= cost
		return true
	}
	return false
}

// evictFull drops buckets that would be full by now. A fresh bucket starts
// full, so dropping them changes no outcome.
func (rl *RateLimiter) evictFull(now time.Time) {
	for id, b := range rl.clients {
		refilled := int64(b.tokens) + int64(now.Sub(b.lastRefill).Seconds())*int64(rl.refillRate)
		if refilled >= int64(rl.capacity) {
			delete(rl.clients, id)
		}
	}
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Middleware charges one token per request. Behind SignatureAuth the bucket
// belongs to the signer, elsewhere to the remote IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.CheckRateLimit(key, 1) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if caller, ok := CallerFrom(r.Context()); ok {
		return "id:" + caller.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
