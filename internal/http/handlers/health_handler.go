package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-newscheck-backend/internal/http/middleware"
)

const pingTimeout = 2 * time.Second

// StatusResponse reports service and database reachability.
type StatusResponse struct {
	Status    string    `json:"status" example:"ok"`
	Database  string    `json:"database" enums:"connected,disconnected" example:"connected"`
	Timestamp time.Time `json:"timestamp" example:"2025-01-01T12:00:00Z"`
}

// Status godoc
// @ID          status
// @Summary     Service status
// @Description Pings the database. Answers 503 when it cannot be reached.
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.StatusResponse
// @Failure     503  {object}  handlers.StatusResponse
// @Router      / [get]
func (h *Handlers) Status(c *gin.Context) {
	now := h.clock().UTC()
	if h.ping == nil {
		c.JSON(http.StatusServiceUnavailable, StatusResponse{Status: "ok", Database: "disconnected", Timestamp: now})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()
	if err := h.ping(ctx); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("database ping failed")
		c.JSON(http.StatusServiceUnavailable, StatusResponse{Status: "ok", Database: "disconnected", Timestamp: now})
		return
	}
	ok(c, http.StatusOK, StatusResponse{Status: "ok", Database: "connected", Timestamp: now})
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Tags        Health
// @Produce     json
// @Success     200  {object}  map[string]string
// @Router      /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
