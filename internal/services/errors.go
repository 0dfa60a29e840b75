// Package services holds the business rules for registration, login and
// detection. This file centralizes the service-level error values; handlers
// translate them into HTTP statuses and user-facing messages.
package services

import "errors"

// Registration and login errors.
var (
	// ErrPasswordMismatch is returned when password and confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrUserNotFound indicates that no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
)

// Detection errors.
var (
	// ErrEmptyText is returned for empty or whitespace-only submissions.
	ErrEmptyText = errors.New("text is empty")

	// ErrProcessingFailed wraps any classifier or persistence failure.
	ErrProcessingFailed = errors.New("processing failed")
)
