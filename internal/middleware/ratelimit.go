package middleware

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"realtime-service/internal/observability"
)

// Fixed-window rate limit buckets.
const (
	GeneralBucket = "general"
	AuthBucket    = "auth"

	RateLimitWindow    = 15 * time.Minute
	GeneralMaxRequests = 100
	AuthMaxRequests    = 10
	cleanupProbability = 100 // 1-in-N chance per request of a full sweep
	staleWindowGrace   = RateLimitWindow
)

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter maintains fixed-window counters per client and bucket.
// Cleanup of stale windows is probabilistic rather than scheduled; stale
// entries cost nothing but memory.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	now      func() time.Time
	disabled bool
}

// NewRateLimiter creates a limiter. Disabled limiters pass every request
// through (test mode).
func NewRateLimiter(disabled bool) *RateLimiter {
	return &RateLimiter{
		windows:  make(map[string]*window),
		now:      time.Now,
		disabled: disabled,
	}
}

// NewRateLimiterWithClock creates a limiter with an injected clock for tests.
func NewRateLimiterWithClock(now func() time.Time) *RateLimiter {
	rl := NewRateLimiter(false)
	rl.now = now
	return rl
}

// Allow counts a request against the client's window. It returns whether the
// request may proceed, the remaining quota, and the window reset time.
func (rl *RateLimiter) Allow(clientID, bucket string) (allowed bool, remaining int, resetAt time.Time) {
	limit := GeneralMaxRequests
	if bucket == AuthBucket {
		limit = AuthMaxRequests
	}
	key := bucket + ":" + clientID
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rand.Intn(cleanupProbability) == 0 {
		rl.cleanupLocked(now)
	}

	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(RateLimitWindow)}
		rl.windows[key] = w
		return true, limit - 1, w.resetAt
	}

	w.count++
	if w.count > limit {
		return false, 0, w.resetAt
	}
	return true, limit - w.count, w.resetAt
}

func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for key, w := range rl.windows {
		if now.Sub(w.resetAt) > staleWindowGrace {
			delete(rl.windows, key)
		}
	}
}

// Middleware enforces the limiter for a bucket. Preflight requests bypass it
// entirely.
func (rl *RateLimiter) Middleware(bucket string) gin.HandlerFunc {
	limit := GeneralMaxRequests
	if bucket == AuthBucket {
		limit = AuthMaxRequests
	}

	return func(c *gin.Context) {
		if rl.disabled || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		clientID := observability.IPFromRequest(c.Request)
		allowed, remaining, resetAt := rl.Allow(clientID, bucket)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			observability.IncRateLimited(bucket)
			retryAfter := int(resetAt.Sub(rl.now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("rate limit exceeded for %s requests", bucket),
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
