// Auth HTTP handlers.
//
// This file exposes the identity endpoints:
//   - POST /register   (create an account; no token is issued)
//   - POST /token      (form login; returns a bearer token)
//   - GET  /users/me   (profile of the token's user)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-newscheck-backend/internal/auth"
	"github.com/tbourn/go-newscheck-backend/internal/http/middleware"
	"github.com/tbourn/go-newscheck-backend/internal/services"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,max=255" example:"ann"`
	Email           string `json:"email" binding:"required,email,max=255" example:"ann@example.com"`
	Password        string `json:"password" binding:"required" example:"correct horse battery staple"`
	ConfirmPassword string `json:"confirmPassword" binding:"required" example:"correct horse battery staple"`
}

// RegisterResponse acknowledges a new account.
type RegisterResponse struct {
	Message string `json:"message" example:"User registered successfully"`
	UserID  int64  `json:"user_id" example:"1"`
}

// TokenRequest is the form-encoded login payload. Username carries the email.
type TokenRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// TokenResponse carries a session token.
type TokenResponse struct {
	AccessToken string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string `json:"token_type" example:"bearer"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	Username string `json:"username" example:"ann"`
	Email    string `json:"email" example:"ann@example.com"`
	ID       int64  `json:"id" example:"1"`
}

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Register a user
// @Description Creates an account. The password must match confirmPassword and be at most 72 bytes.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Registration payload"
//
// @Success     200  {object}  handlers.RegisterResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid input, password mismatch or email taken"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username, a valid email, password and confirmPassword are required")
		return
	}

	u, err := h.authSvc.Register(c.Request.Context(), services.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	switch {
	case errors.Is(err, services.ErrPasswordMismatch):
		fail(c, http.StatusBadRequest, ErrCodePasswordMismatch, "Passwords do not match")
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusBadRequest, ErrCodeConflict, "Email already registered")
	case errors.Is(err, auth.ErrPasswordTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Password must be at most 72 bytes")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "registration failed", err)
	default:
		ok(c, http.StatusOK, RegisterResponse{Message: "User registered successfully", UserID: u.ID})
	}
}

// Token godoc
// @ID          token
// @Summary     Log in
// @Description Exchanges email (sent as username) and password for a bearer token valid for 30 minutes.
// @Tags        Auth
// @Accept      x-www-form-urlencoded
// @Produce     json
//
// @Param       username  formData  string  true  "Email address"  example(ann@example.com)
// @Param       password  formData  string  true  "Password"
//
// @Success     200  {object}  handlers.TokenResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Incorrect email or password"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /token [post]
func (h *Handlers) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password form fields are required")
		return
	}

	tok, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password, h.clock())
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusBadRequest, ErrCodeInvalidCredentials, "Incorrect email or password")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "login failed", err)
	default:
		ok(c, http.StatusOK, TokenResponse{AccessToken: tok.AccessToken, TokenType: tok.TokenType})
	}
}

// Me godoc
// @ID          me
// @Summary     Current user
// @Description Returns the profile of the user named by the bearer token.
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  handlers.UserResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated or invalid token"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Router      /users/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, found := middleware.CurrentUser(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, middleware.MsgNotAuthenticated)
		return
	}
	ok(c, http.StatusOK, UserResponse{Username: u.Username, Email: u.Email, ID: u.ID})
}
