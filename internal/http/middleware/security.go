// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders for a JSON API behind a reverse proxy.
// Credential-bearing routes (token issue, profile) can be marked no-store so
// shared caches never keep access tokens or account data. No CSP is sent;
// nothing here serves HTML.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultHSTSMaxAge is used when SecurityOptions.HSTSMaxAge is not positive.
const DefaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	HSTSMaxAge time.Duration

	// NoStoreRoutes lists route patterns (as reported by gin's FullPath)
	// whose responses get Cache-Control: no-store.
	NoStoreRoutes []string

	// BrowserPolicy adds Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies.
	BrowserPolicy bool
}

// SecurityHeaders sets on every response:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// plus the optional headers selected by opt.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = DefaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains"

	noStore := make(map[string]struct{}, len(opt.NoStoreRoutes))
	for _, p := range opt.NoStoreRoutes {
		noStore[p] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.BrowserPolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if _, ok := noStore[c.FullPath()]; ok {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

// isHTTPS reports whether the request arrived over TLS directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
