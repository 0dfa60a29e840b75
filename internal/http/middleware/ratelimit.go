// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with per-identity
// buckets and opportunistic garbage collection, for a single-process
// deployment.
//
// Two limiters are installed by the router:
//   - a global one keyed by user or client IP (KeyByUserOrIP)
//   - a stricter one on /token and /register keyed by client IP (KeyByIP),
//     which bounds password guessing and bcrypt work per address
//
// Only limiters built with AllowReplays let idempotent replays flagged by
// IdempotencyValidator through; the credential limiter never does.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// rateLimited counts rejected requests per limiter name.
var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by a rate limiter.",
	},
	[]string{"limiter"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP prefers the user id set by Identify under "userID" and falls
// back to the client IP. Keys are prefixed ("user:7", "ip:203.0.113.7").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(ctxKeyUserID); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP keys buckets by client IP only.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-key token-bucket rate limiter. Idle buckets
// are evicted after a TTL during lookups. Safe for concurrent use.
type RateLimiter struct {
	name     string
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64

	allowReplays bool
}

// NewRateLimiter constructs a RateLimiter with the given tokens-per-second
// and burst size, keyed by keyFn. Burst values <= 0 are coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		name:     "global",
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// Named sets the limiter label used in http_rate_limited_total.
func (rl *RateLimiter) Named(name string) *RateLimiter {
	if name != "" {
		rl.name = name
	}
	return rl
}

// AllowReplays lets requests flagged as idempotent replays skip this
// limiter. The flag is only set where IdempotencyValidator is mounted ahead
// of the limiter.
func (rl *RateLimiter) AllowReplays() *RateLimiter {
	rl.allowReplays = true
	return rl
}

// getVisitor returns (and updates) the limiter for key, creating it if absent.
// It also performs opportunistic GC of idle entries after ~5000 lookups.
//
// GC runs before the requested visitor is touched so an old bucket can be
// evicted even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay that should not consume tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns a Gin middleware that enforces per-key token-bucket limits.
// Rejected requests get 429 rate_limited with Retry-After: 1.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.allowReplays && IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		rateLimited.WithLabelValues(rl.name).Inc()
		c.Header("Retry-After", "1")
		abortJSON(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}
