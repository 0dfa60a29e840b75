// Detection HTTP handlers.
//
// This file exposes:
//   - POST /detect               (classify and record a submission)
//   - GET  /users/me/detections  (paginated history of the caller)
//
// /detect is public. With a valid bearer token the caller's id is recorded
// and a body user_id naming anyone else is refused with 403. Anonymous
// requests may attribute a detection to any user_id; history lists
// detections by that attribution.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
	"github.com/tbourn/go-newscheck-backend/internal/http/middleware"
	"github.com/tbourn/go-newscheck-backend/internal/services"
)

//
// DTOs
//

// DetectRequest is the JSON payload for a detection.
type DetectRequest struct {
	Text   string `json:"text" example:"Aliens endorse fake moon landing"`
	UserID *int64 `json:"user_id,omitempty" example:"1"`
}

// DetectionResponse is one recorded detection.
type DetectionResponse struct {
	ID            int64     `json:"id" example:"42"`
	CreatedAt     time.Time `json:"created_at" example:"2025-01-01T12:00:00Z"`
	Result        string    `json:"result" enums:"FAKE,REAL" example:"FAKE"`
	Confidence    float64   `json:"confidence" example:"0.9"`
	ProcessedText string    `json:"processed_text" example:"Aliens endorse fake moon landing"`
}

// HistoryResponse is a page of the caller's detections.
type HistoryResponse struct {
	Detections []DetectionResponse `json:"detections"`
	Pagination Pagination          `json:"pagination"`
}

func toDetectionResponse(d domain.DetectionResult) DetectionResponse {
	return DetectionResponse{
		ID:            d.ID,
		CreatedAt:     d.CreatedAt.UTC(),
		Result:        d.Label(),
		Confidence:    d.Confidence,
		ProcessedText: d.Text,
	}
}

//
// Handlers
//

// Detect godoc
// @ID          detect
// @Summary     Detect fake news
// @Description Truncates the text to 500 characters, classifies it and records the result.
// @Description An Idempotency-Key header replays the stored result for a repeated request.
// @Tags        Detection
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                   false  "Idempotency key (max 200 chars)"
// @Param       body             body    handlers.DetectRequest   true   "Text to classify"
//
// @Success     200  {object}  handlers.DetectionResponse
// @Header      200  {string}  Idempotency-Replayed  "true when the stored result was replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid input or empty text"
// @Failure     403  {object}  handlers.ErrorResponse  "user_id differs from the authenticated user"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Processing failed"
// @Router      /detect [post]
func (h *Handlers) Detect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, ErrCodeEmptyText, "text must not be empty")
		return
	}

	uid := req.UserID
	if u, found := middleware.CurrentUser(c); found {
		if uid != nil && *uid != u.ID {
			fail(c, http.StatusForbidden, ErrCodeUserMismatch, "user_id does not match the authenticated user")
			return
		}
		id := u.ID
		uid = &id
	}

	key, _ := middleware.GetIdempotencyKey(c)
	res, replayed, err := h.detectSvc.DetectIdempotent(
		c.Request.Context(),
		services.DetectInput{Text: req.Text, UserID: uid},
		middleware.IdempotencyScope(c),
		key,
	)
	switch {
	case errors.Is(err, services.ErrEmptyText):
		fail(c, http.StatusBadRequest, ErrCodeEmptyText, "text must not be empty")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeProcessingFailed, "Processing failed", err)
		return
	}

	if replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusOK, toDetectionResponse(*res))
}

// History godoc
// @ID          listDetections
// @Summary     Detection history
// @Description Lists the caller's detections, newest first. Supports a weak ETag.
// @Tags        Detection
// @Produce     json
// @Security    BearerAuth
//
// @Param       page           query   int     false  "Page number (1-based)"  minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"         minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
//
// @Success     200  {object}  handlers.HistoryResponse
// @Success     304  "Not Modified"
// @Header      200  {string}  ETag  "Weak validator of the caller's history"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated or invalid token"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /users/me/detections [get]
func (h *Handlers) History(c *gin.Context) {
	u, found := middleware.CurrentUser(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, middleware.MsgNotAuthenticated)
		return
	}
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	count, maxID, err := h.detectSvc.HistoryStats(ctx, u.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list detections", err)
		return
	}
	etag := fmt.Sprintf(`W/"detections:%d:%d:%d"`, u.ID, count, maxID)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Header("ETag", etag)
		c.Status(http.StatusNotModified)
		return
	}

	items, total, err := h.detectSvc.History(ctx, u.ID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list detections", err)
		return
	}

	out := make([]DetectionResponse, 0, len(items))
	for _, d := range items {
		out = append(out, toDetectionResponse(d))
	}
	c.Header("ETag", etag)
	c.Header("Cache-Control", "private, must-revalidate")
	ok(c, http.StatusOK, HistoryResponse{Detections: out, Pagination: newPagination(page, pageSize, total)})
}
