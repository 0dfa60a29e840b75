// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements idempotency support for POST /detect. It validates an
// Idempotency-Key request header, stores it for the handler
// (GetIdempotencyKey) and, when a completed request already exists for the
// key, flags the request so a limiter built with AllowReplays lets it
// through. Mount it only on the routes that honour the key.
//
// Keys are scoped per caller (IdempotencyScope): "user:<id>" once Identify
// has resolved a user, otherwise "ip:<client ip>". The same key sent by two
// different callers never collides.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the canonical request header that clients use to
// convey an idempotency key for unsafe operations.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed is set on responses served from a stored result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyRateBypass = "rate.bypass" // bool: a stored result exists for the key
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated idempotency key stored in the Gin
// context by IdempotencyValidator. The second return value indicates presence.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IdempotencyScope names the caller a key belongs to: "user:<id>" for an
// identified user, else "ip:<client ip>".
func IdempotencyScope(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			return "user:" + s
		}
	}
	return "ip:" + c.ClientIP()
}

// IdempotencyOptions configures header validation for IdempotencyValidator.
// TTL is enforced by the lookup, not here.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. If nil, ^[A-Za-z0-9._~\-:]+$ is
	// used.
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a still-valid result exists for
// (scope, key) at now. Errors are treated as a miss.
type IdempotencyLookup func(ctx context.Context, scope, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header (if present),
// stashes it in the request context, and consults lookup for a prior
// completed request. A hit marks the request as a replay for limiters built
// with AllowReplays.
//
// Behavior:
//   - If header is absent: the middleware is a no-op.
//   - If header fails validation: responds 400 bad_idempotency_key.
//   - Always invokes the next handler unless validation fails.
//
// It does not serve the stored payload; the handler does.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			scope := IdempotencyScope(c)
			if exists, _ := lookup(c.Request.Context(), scope, key, time.Now().UTC()); exists {
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
