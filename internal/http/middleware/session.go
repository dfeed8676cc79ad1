// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the session gatekeeper for the admin surface:
//
//   - SessionGate protects the admin UI pages. Unauthenticated navigation is
//     redirected to the login page with the original destination preserved
//     in the callbackUrl query parameter.
//   - RequireSession protects the admin JSON API and answers 401 instead of
//     redirecting.
//
// Both verify the signed session token carried by the request and, on
// success, stash the auth.Identity (SessionFrom) and the admin subject under
// "userID" so that the rate limiter and access logger key on it.
package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/hesapla-backend/internal/auth"
)

const (
	// userIDKey holds the authenticated subject for logging and rate limiting.
	userIDKey   = "userID"
	identityKey = "auth.identity"
)

// SessionVerifier verifies the session carried by a request.
// *auth.Sessions satisfies it.
type SessionVerifier interface {
	FromRequest(r *http.Request) (auth.Identity, error)
}

// GateOptions configures SessionGate.
type GateOptions struct {
	// Prefix is the protected path prefix. Defaults to "/admin".
	Prefix string
	// LoginPath is always reachable and is the redirect target.
	// Defaults to Prefix + "/login".
	LoginPath string
	// AllowPrefixes lists further public paths under Prefix (login page assets).
	AllowPrefixes []string
}

// SessionFrom returns the identity verified for this request, if any.
func SessionFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func setIdentity(c *gin.Context, id auth.Identity) {
	c.Set(identityKey, id)
	c.Set(userIDKey, id.Subject)
}

// SessionGate redirects unauthenticated requests under opts.Prefix to the
// login page with 307 Temporary Redirect:
//
//	GET /admin/posts?draft=1  ->  /admin/login?callbackUrl=%2Fadmin%2Fposts%3Fdraft%3D1
//
// Paths outside the prefix pass through untouched.
func SessionGate(v SessionVerifier, opts GateOptions) gin.HandlerFunc {
	prefix := strings.TrimRight(opts.Prefix, "/")
	if prefix == "" {
		prefix = "/admin"
	}
	login := opts.LoginPath
	if login == "" {
		login = prefix + "/login"
	}
	allow := append([]string{login}, opts.AllowPrefixes...)

	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if p != prefix && !strings.HasPrefix(p, prefix+"/") {
			c.Next()
			return
		}
		for _, a := range allow {
			if p == a || strings.HasPrefix(p, strings.TrimRight(a, "/")+"/") {
				c.Next()
				return
			}
		}

		id, err := v.FromRequest(c.Request)
		if err != nil {
			target := login + "?callbackUrl=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusTemporaryRedirect, target)
			c.Abort()
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// RequireSession aborts with 401 unless the request carries a valid session.
//
//	HTTP/1.1 401 Unauthorized
//	{"request_id":"…","code":"unauthorized","message":"authentication required"}
func RequireSession(v SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.FromRequest(c.Request)
		if err != nil {
			c.Header("Cache-Control", "no-store")
			abortError(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}
