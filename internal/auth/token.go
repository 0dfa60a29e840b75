package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ErrInvalidToken covers every verification failure: bad signature, expiry,
// malformed input, unexpected algorithm or a missing subject.
var ErrInvalidToken = errors.New("invalid token")

// ErrEmptySecret is returned by NewTokenManager when no signing key is configured.
var ErrEmptySecret = errors.New("token secret must not be empty")

// TokenManager issues and verifies HS256 session tokens. It is immutable
// after construction and safe for concurrent use.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// sessionClaims carries the expiry at nanosecond precision next to the
// standard whole-second exp, which is rounded up so generic JWT tooling never
// sees the token expire before exp_ns does.
type sessionClaims struct {
	ExpiresAtNano int64 `json:"exp_ns"`
	jwt.RegisteredClaims
}

// NewTokenManager builds a manager over secret with the given lifetime.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token for subject valid on [now, now+TTL) and returns the
// exact expiry.
func (m *TokenManager) Issue(subject string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl)
	claims := sessionClaims{
		ExpiresAtNano: exp.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(exp)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm and expiry against now and returns the
// subject. The token is valid iff now < exp_ns.
func (m *TokenManager) Verify(token string, now time.Time) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		log.Debug().Err(err).Msg("token rejected")
		return "", ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		log.Debug().Msg("token rejected: no subject")
		return "", ErrInvalidToken
	}
	if claims.ExpiresAtNano == 0 || !now.Before(time.Unix(0, claims.ExpiresAtNano)) {
		log.Debug().Msg("token rejected: expired")
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func ceilSecond(t time.Time) time.Time {
	s := t.Truncate(time.Second)
	if s.Equal(t) {
		return s
	}
	return s.Add(time.Second)
}
