// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token sessions in two steps:
//   - Identify runs early in the global chain. It reads an optional
//     "Authorization: Bearer <token>" header, verifies the token, resolves
//     the subject to a stored user and records the outcome in the context.
//     It never rejects a request, so downstream middleware (rate limiting,
//     idempotency scoping, access logs) can key on the caller's identity.
//   - RequireUser guards protected routes. It turns the recorded outcome into
//     401 (no or invalid credentials), 404 (token subject no longer exists)
//     or 503 (user lookup failed), and otherwise lets the request through
//     with the user available via CurrentUser.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
)

// Context keys for the session outcome. "userID" is shared with the rate
// limiter and the access logger.
const (
	ctxKeyUser      = "auth.user"
	ctxKeyAuthState = "auth.state"
	ctxKeyAuthErr   = "auth.err"
	ctxKeyUserID    = "userID"
)

// Messages returned by RequireUser.
const (
	MsgNotAuthenticated   = "Not authenticated"
	MsgInvalidCredentials = "Could not validate credentials"
	MsgUserNotFound       = "User not found"
)

type authState int

const (
	authAnonymous authState = iota // no bearer credentials
	authInvalid                    // token failed verification
	authUnknownUser                // token valid, subject has no user
	authUnavailable                // user lookup failed
	authOK
)

// TokenVerifier checks a session token and returns its subject.
type TokenVerifier interface {
	Verify(token string, now time.Time) (string, error)
}

// UserResolver loads the user for a token subject. It returns (nil, nil)
// when no such user exists and a non-nil error only when the lookup failed.
type UserResolver func(ctx context.Context, email string) (*domain.User, error)

// Identify verifies an optional bearer token and stores the outcome for
// RequireUser and CurrentUser. A nil verifier or resolver disables it.
func Identify(tokens TokenVerifier, resolve UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil || resolve == nil {
			c.Set(ctxKeyAuthState, authAnonymous)
			c.Next()
			return
		}

		raw, present := bearerToken(c.GetHeader("Authorization"))
		if !present {
			c.Set(ctxKeyAuthState, authAnonymous)
			c.Next()
			return
		}

		subject, err := tokens.Verify(raw, time.Now())
		if err != nil {
			c.Set(ctxKeyAuthState, authInvalid)
			c.Next()
			return
		}

		u, err := resolve(c.Request.Context(), subject)
		switch {
		case err != nil:
			c.Set(ctxKeyAuthState, authUnavailable)
			c.Set(ctxKeyAuthErr, err)
		case u == nil:
			c.Set(ctxKeyAuthState, authUnknownUser)
		default:
			c.Set(ctxKeyAuthState, authOK)
			c.Set(ctxKeyUser, u)
			c.Set(ctxKeyUserID, strconv.FormatInt(u.ID, 10))
		}
		c.Next()
	}
}

// RequireUser aborts unless Identify resolved a stored user.
//
//	no / non-Bearer Authorization  401 "Not authenticated"
//	invalid or expired token       401 "Could not validate credentials"
//	token subject has no user      404 "User not found"
//	user lookup failed             503
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch stateOf(c) {
		case authOK:
			c.Next()
		case authInvalid:
			c.Header("WWW-Authenticate", "Bearer")
			abortJSON(c, http.StatusUnauthorized, "unauthorized", MsgInvalidCredentials)
		case authUnknownUser:
			abortJSON(c, http.StatusNotFound, "not_found", MsgUserNotFound)
		case authUnavailable:
			if v, ok := c.Get(ctxKeyAuthErr); ok {
				if err, ok := v.(error); ok {
					LoggerFrom(c).Error().Err(err).Msg("resolve session user")
				}
			}
			abortJSON(c, http.StatusServiceUnavailable, "unavailable", "service unavailable")
		default:
			c.Header("WWW-Authenticate", "Bearer")
			abortJSON(c, http.StatusUnauthorized, "unauthorized", MsgNotAuthenticated)
		}
	}
}

// CurrentUser returns the user resolved by Identify, if any.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

func stateOf(c *gin.Context) authState {
	v, ok := c.Get(ctxKeyAuthState)
	if !ok {
		return authAnonymous
	}
	s, _ := v.(authState)
	return s
}

// bearerToken splits "Bearer <token>". The scheme is case-insensitive.
// present is false when the header is absent or uses another scheme; an empty
// token after a Bearer scheme is present but will fail verification.
func bearerToken(header string) (token string, present bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, rest, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// abortJSON writes the {request_id, code, message} error envelope.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
