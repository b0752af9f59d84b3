// ===========================================
// Health Check Handler
// ===========================================
// No authentication, no rate limiting. These must answer even when
// the store is down.
//
// 1. /live:   the process is running. No dependency checks.
// 2. /ready:  the backing store answers. Gate traffic on this.
// 3. /health: every dependency, with details, for humans and monitors.
// ===========================================

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/linkshortener/internal/service"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	reporter *service.HealthReporter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(reporter *service.HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// ===========================================
// GET /health
// ===========================================
// Response (200 - healthy, 503 - degraded):
//
//	{
//	  "status": "healthy",
//	  "version": "1.0.0",
//	  "timestamp": "2024-01-01T00:00:00Z",
//	  "checks": {"database": "ok", "redis": "ok"},
//	  "click_recorder": {"enqueued": 10, "recorded": 10, "failed": 0, "dropped": 0, "pending": 0}
//	}
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.reporter.Report(c.Request.Context())

	status := http.StatusOK
	if !report.OK() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Ready handles GET /ready: 200 or 503, no body.
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.reporter.Check(c.Request.Context()); err != nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	c.Status(http.StatusOK)
}

// Live handles GET /live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.Status(http.StatusOK)
}
