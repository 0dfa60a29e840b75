// Package handlers implements the HTTP endpoints. Handlers are transport-thin:
// they bind and validate input, call application services, and translate
// results and service errors into HTTP responses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-newscheck-backend/internal/domain"
	"github.com/tbourn/go-newscheck-backend/internal/services"
	"github.com/tbourn/go-newscheck-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService covers registration and login.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string, now time.Time) (*services.Token, error)
}

// DetectionService records detections and lists a user's history.
type DetectionService interface {
	// DetectIdempotent classifies and stores in.Text. A blank key disables
	// replay; replayed reports a stored result for (scope, key).
	DetectIdempotent(ctx context.Context, in services.DetectInput, scope, key string) (res *domain.DetectionResult, replayed bool, err error)
	// History returns one page of userID's detections and the total count.
	History(ctx context.Context, userID int64, page, pageSize int) ([]domain.DetectionResult, int64, error)
	// HistoryStats returns the count and highest id for the history ETag.
	HistoryStats(ctx context.Context, userID int64) (count, maxID int64, err error)
}

// Pinger reports whether the store is reachable.
type Pinger func(ctx context.Context) error

//
// Handler wiring
//

// Handlers groups the HTTP endpoints.
type Handlers struct {
	authSvc   AuthService
	detectSvc DetectionService
	ping      Pinger

	// now is a test seam; nil means time.Now.
	now func() time.Time
}

// New constructs Handlers bound to the given services. A nil ping makes the
// root status endpoint report the database as disconnected.
func New(authSvc AuthService, detectSvc DetectionService, ping Pinger) *Handlers {
	return &Handlers{authSvc: authSvc, detectSvc: detectSvc, ping: ping}
}

func (h *Handlers) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page and page_size from the query string.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}
