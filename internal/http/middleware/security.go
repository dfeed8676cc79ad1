// Browser hardening headers for the three surfaces: the JSON API, the
// static admin UI and ops endpoints.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// APICSP locks JSON responses out of any rendering context.
	APICSP = "default-src 'none'; frame-ancestors 'none'"

	// AdminCSP allows the admin bundle its own scripts and styles, and
	// images from the CDN over https.
	AdminCSP = "default-src 'self'; img-src 'self' https: data:; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"

	defaultHSTSMaxAge     = 180 * 24 * time.Hour
	defaultReferrerPolicy = "strict-origin-when-cross-origin"
	permissionsPolicy     = "geolocation=(), microphone=(), camera=(), payment=(), interest-cohort=()"
)

// SecurityOptions configures SecurityHeaders. The zero value sends the
// baseline set only.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests. Enable
	// only when the proxy-to-app hop is HTTPS or sets X-Forwarded-Proto.
	EnableHSTS bool
	HSTSMaxAge time.Duration // default 180 days

	// NoStore forbids caching (admin pages and session responses).
	NoStore bool

	ContentSecurityPolicy string
	ReferrerPolicy        string // default strict-origin-when-cross-origin
}

// SecurityHeaders sets nosniff, frame denial, a referrer policy and a
// restrictive Permissions-Policy on every response, plus the optional
// headers selected by opt. Later instances override earlier ones, so a
// route group can tighten what the engine-level instance set.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains; preload"
	referrer := opt.ReferrerPolicy
	if referrer == "" {
		referrer = defaultReferrerPolicy
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", referrer)
		h.Set("Permissions-Policy", permissionsPolicy)
		h.Set("X-Permitted-Cross-Domain-Policies", "none")

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if opt.ContentSecurityPolicy != "" {
			h.Set("Content-Security-Policy", opt.ContentSecurityPolicy)
		}
		c.Next()
	}
}

// isHTTPS reports whether the client connection was TLS, directly or as
// reported by the proxy.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
