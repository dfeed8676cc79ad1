// Per-client token-bucket rate limiting.
//
// Two limiters are installed by the router: "global" keyed by admin subject
// or client IP, and "login" keyed by client IP in front of the credential
// check. Buckets live in process memory; this is abuse control at the edge,
// not authorization.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429 by limiter name.",
	},
	[]string{"limiter"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// keyFunc maps a request to its bucket.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys by the admin subject set by RequireSession or
// SessionGate, falling back to the client IP. The subject only exists once
// those have run, so mount this limiter after them. Keys are prefixed so the
// two namespaces cannot collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s := c.GetString(userIDKey); s != "" {
			return "user:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// KeyByIP keys by client IP only, for endpoints reached before login.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Buckets idle for ttl are
// swept every sweepEvery lookups. Safe for concurrent use.
type RateLimiter struct {
	name  string
	rps   rate.Limit
	burst int
	keyFn keyFunc
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
}

const (
	visitorTTL = 10 * time.Minute
	sweepEvery = 5000
	// maxRetryAfter is advertised when the bucket can never refill (rps 0).
	maxRetryAfter = 60
)

// NewRateLimiter returns a limiter allowing rps requests per second with
// bursts of burst (coerced to >= 1) per key. name labels its metrics.
func NewRateLimiter(name string, rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		name:     name,
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		now:      time.Now,
		visitors: make(map[string]*visitor),
		ttl:      visitorTTL,
	}
}

// getVisitor returns the bucket for key. The sweep runs before the lookup so
// a stale bucket is dropped even when it is the one requested.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// retryAfter takes a token if one is available and returns 0, otherwise the
// whole seconds until the next token.
func (rl *RateLimiter) retryAfter(lim *rate.Limiter) int {
	now := rl.now()
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return maxRetryAfter
	}
	d := res.DelayFrom(now)
	if d == 0 {
		return 0
	}
	res.CancelAt(now)
	return int(math.Max(1, math.Ceil(d.Seconds())))
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replayed view beacon, which is served without spending a token.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limit. Rejections answer 429 with Retry-After and
// the standard error body (code "too_many_requests").
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		wait := rl.retryAfter(rl.getVisitor(rl.keyFn(c)))
		if wait == 0 {
			c.Next()
			return
		}
		rateLimited.WithLabelValues(rl.name).Inc()
		c.Header("Retry-After", strconv.Itoa(wait))
		abortError(c, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
	}
}
