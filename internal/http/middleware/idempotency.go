// View beacon deduplication at the edge.
//
// The blog client sends one Idempotency-Key per page load with
// POST /api/posts/:slug/view. IdempotencyValidator checks the key's shape
// and asks a lookup whether (slug, key) was already counted; a replay is
// flagged so the handler can answer without touching the counter and the
// rate limiter lets it through for free. The view service still dedups
// inside its own transaction, so a lookup miss is always safe.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HeaderIdempotencyKey carries the per-page-load beacon key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemMaxLen = 200
	defaultScopeParam = "slug"
)

var (
	defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

	viewReplays = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "view_replays_total",
		Help:      "View beacons answered from an existing receipt.",
	})
)

func init() {
	prometheus.MustRegister(viewReplays)
}

// GetIdempotencyKey returns the validated key, if the request carried one.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// IsReplay reports whether the lookup found a live receipt for the request.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator. Zero values select
// the defaults.
type IdempotencyOptions struct {
	MaxLen     int            // default 200
	Pattern    *regexp.Regexp // default ^[A-Za-z0-9._~\-:]+$
	ScopeParam string         // route parameter scoping keys; default "slug"
	Now        func() time.Time
}

// IdempotencyLookup reports whether a receipt for (scope, key) is still live
// at now.
type IdempotencyLookup func(ctx context.Context, scope, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator rejects malformed keys with 400 and marks replays.
// Requests without the header, or on routes without the scope parameter,
// pass through without a lookup. A failing lookup is logged and treated as
// a miss.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}
	param := opts.ScopeParam
	if param == "" {
		param = defaultScopeParam
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortError(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		scope := c.Param(param)
		if lookup == nil || scope == "" {
			c.Next()
			return
		}
		exists, err := lookup(c.Request.Context(), scope, key, now().UTC())
		switch {
		case err != nil:
			LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup failed")
		case exists:
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
			viewReplays.Inc()
		}
		c.Next()
	}
}
