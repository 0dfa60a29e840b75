// Package services – AuthService
//
// AuthService owns the identity flow: registering users with a bcrypt
// digest, exchanging email+password for a signed session token, and
// resolving a token subject back to a stored user for the session
// middleware.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-newscheck-backend/internal/auth"
	"github.com/tbourn/go-newscheck-backend/internal/domain"
	"github.com/tbourn/go-newscheck-backend/internal/repo"
)

// TokenTypeBearer is the token_type reported on login.
const TokenTypeBearer = "bearer"

// RegisterInput carries the already-shape-validated registration form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Token is a freshly issued session token.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// AuthService implements registration, login and subject resolution.
type AuthService struct {
	DB     *gorm.DB
	Hasher auth.PasswordHasher
	Tokens *auth.TokenManager

	// dummyDigest is compared against when the email is unknown so a miss
	// costs the same bcrypt work as a wrong password.
	dummyDigest []byte
}

// NewAuthService wires an AuthService and precomputes the dummy digest at
// the hasher's cost.
func NewAuthService(db *gorm.DB, hasher auth.PasswordHasher, tokens *auth.TokenManager) (*AuthService, error) {
	if tokens == nil {
		return nil, errors.New("auth service: token manager is required")
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy digest: %w", err)
	}
	return &AuthService{DB: db, Hasher: hasher, Tokens: tokens, dummyDigest: dummy}, nil
}

// Register creates a user. Checks run in order: confirmation match, email
// availability, hashing, insert. No token is issued.
//
// The availability check runs once before hashing, so a taken email costs
// no bcrypt work, and again inside the insert transaction; a unique
// violation from a concurrent registration also maps to ErrEmailTaken.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	if in.Password != in.ConfirmPassword {
		registrationsTotal.WithLabelValues("password_mismatch").Inc()
		return nil, ErrPasswordMismatch
	}
	email := strings.TrimSpace(in.Email)

	taken, err := repo.EmailExists(ctx, s.DB, email)
	if err != nil {
		registrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		registrationsTotal.WithLabelValues("email_taken").Inc()
		return nil, ErrEmailTaken
	}

	digest, err := s.Hasher.Hash(in.Password)
	if err != nil {
		registrationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	u := &domain.User{
		Username:       strings.TrimSpace(in.Username),
		Email:          email,
		HashedPassword: digest,
	}
	err = repo.InTx(ctx, s.DB, func(tx *gorm.DB) error {
		exists, err := repo.EmailExists(ctx, tx, email)
		if err != nil {
			return err
		}
		if exists {
			return ErrEmailTaken
		}
		if err := repo.CreateUser(ctx, tx, u); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrEmailTaken
			}
			return err
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrEmailTaken):
		registrationsTotal.WithLabelValues("email_taken").Inc()
		return nil, ErrEmailTaken
	case err != nil:
		registrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create user: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", u.ID))
	registrationsTotal.WithLabelValues("success").Inc()
	return u, nil
}

// Login verifies email+password and issues a token valid from now. An
// unknown email and a wrong password both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, now time.Time) (*Token, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, strings.TrimSpace(email))
	switch {
	case errors.Is(err, repo.ErrNotFound):
		_ = s.Hasher.Verify(password, s.dummyDigest)
		loginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	case err != nil:
		loginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !s.Hasher.Verify(password, u.HashedPassword) {
		loginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	signed, exp, err := s.Tokens.Issue(u.Email, now)
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", u.ID))
	loginsTotal.WithLabelValues("success").Inc()
	return &Token{AccessToken: signed, TokenType: TokenTypeBearer, ExpiresAt: exp}, nil
}

// UserByEmail resolves a token subject to its user, or ErrUserNotFound.
func (s *AuthService) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "UserByEmail")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
