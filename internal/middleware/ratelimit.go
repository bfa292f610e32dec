package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TokenBucket implements token bucket rate limiting
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	refillRate int // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity, refillRate int, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// Refill tokens based on time passed
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tokensToAdd := int(elapsed * float64(tb.refillRate))

	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimiter keeps one bucket per client IP. The least recently seen client
// is dropped once maxClients buckets exist.
type RateLimiter struct {
	buckets    *lru.Cache[string, *TokenBucket]
	capacity   int
	refillRate int
	now        func() time.Time
}

func NewRateLimiter(capacity, refillRate, maxClients int) (*RateLimiter, error) {
	if maxClients <= 0 {
		maxClients = 4096
	}
	cache, err := lru.New[string, *TokenBucket](maxClients)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		buckets:    cache,
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}, nil
}

func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	if b, ok := rl.buckets.Get(key); ok {
		return b
	}
	b := newTokenBucket(rl.capacity, rl.refillRate, rl.now)
	// a concurrent request for the same key may have won the race
	if prev, ok, _ := rl.buckets.PeekOrAdd(key, b); ok {
		return prev
	}
	return b
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.getBucket(key).Allow()
}

// RetryAfter is the number of whole seconds until one token is back.
func (rl *RateLimiter) RetryAfter() int {
	if rl.refillRate <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(rl.refillRate)))
}

// Middleware limits requests per client IP. Run it after chi's RealIP so
// proxied requests are keyed by the original client.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r)) {
			IncrementRateLimited()
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "Too many requests. Please wait a moment and try again.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
