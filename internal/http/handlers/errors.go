// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Every non-2xx response carries one of them in the
// {request_id, code, message} envelope written by fail().
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_credentials",
//	  "message": "Incorrect email or password"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "unavailable"

	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodePasswordMismatch   = "password_mismatch"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeEmptyText          = "empty_text"
	ErrCodeProcessingFailed   = "processing_failed"
	ErrCodeListFailed         = "list_failed"
	ErrCodeUserMismatch       = "user_mismatch"
)
