// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements CanonicalHost, which moves traffic that arrives on a
// preview deployment hostname to the production origin.
package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CanonicalHost answers 301 Moved Permanently with canonicalOrigin + the
// original path and query for any request whose Host matches one of
// previewHosts. Entries are exact hostnames or "*.suffix" wildcards matching
// any subdomain of suffix. The check runs before, and independently of,
// authentication. An empty canonicalOrigin disables the middleware.
func CanonicalHost(canonicalOrigin string, previewHosts []string) gin.HandlerFunc {
	origin := strings.TrimRight(canonicalOrigin, "/")
	var canonicalHost string
	if u, err := url.Parse(origin); err == nil {
		canonicalHost = strings.ToLower(u.Hostname())
	}

	exact := map[string]struct{}{}
	var suffixes []string
	for _, h := range previewHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
		case strings.HasPrefix(h, "*."):
			suffixes = append(suffixes, h[1:]) // keep the leading dot
		default:
			exact[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if origin == "" || canonicalHost == "" {
			c.Next()
			return
		}
		host := requestHost(c.Request)
		if host == "" || host == canonicalHost || !isPreviewHost(host, exact, suffixes) {
			c.Next()
			return
		}
		c.Redirect(http.StatusMovedPermanently, origin+c.Request.URL.RequestURI())
		c.Abort()
	}
}

func requestHost(r *http.Request) string {
	h := r.Host
	if hh, _, err := net.SplitHostPort(h); err == nil {
		h = hh
	}
	return strings.ToLower(strings.TrimSuffix(h, "."))
}

func isPreviewHost(host string, exact map[string]struct{}, suffixes []string) bool {
	if _, ok := exact[host]; ok {
		return true
	}
	for _, s := range suffixes {
		if strings.HasSuffix(host, s) && len(host) > len(s) {
			return true
		}
	}
	return false
}
