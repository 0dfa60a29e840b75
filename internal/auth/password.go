// Package auth holds the credential primitives: bcrypt password digests and
// HS256 session tokens. Nothing here touches the store or HTTP.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is returned for passwords bcrypt cannot digest (over 72 bytes).
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// PasswordHasher produces and checks bcrypt digests. The zero value uses
// bcrypt.DefaultCost.
type PasswordHasher struct {
	Cost int
}

// NewPasswordHasher returns a hasher with the given cost; out-of-range costs
// fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return PasswordHasher{Cost: cost}
}

// Hash returns a salted digest of plain. Two calls on the same input yield
// different digests.
func (h PasswordHasher) Hash(plain string) ([]byte, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	return digest, err
}

// Verify reports whether plain matches digest. A malformed digest is a
// mismatch, never an error.
func (h PasswordHasher) Verify(plain string, digest []byte) bool {
	return bcrypt.CompareHashAndPassword(digest, []byte(plain)) == nil
}
