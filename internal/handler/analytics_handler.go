package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/service"
)

// AnalyticsHandler serves click analytics.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	logger    *slog.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, logger: logger}
}

// ===========================================
// GET /api/links/:id/analytics
// GET /api/analytics
// ===========================================
// Query parameters (all optional):
//
//	from, to  RFC 3339 window; from inclusive, to exclusive
//	bucket    hour | day (default day)
//	limit     number of recent clicks (default 20)
//
// Response (200):
//
//	{
//	  "link_id": "...",
//	  "total_clicks": 7,
//	  "window_clicks": 3,
//	  "bucket": "day",
//	  "series": [{"start": "2024-05-01T00:00:00Z", "count": 3}],
//	  "recent": [{"id": "...", "ip_address": null, "user_agent": null, ...}]
//	}

// Link handles GET /api/links/:id/analytics.
func (h *AnalyticsHandler) Link(c *gin.Context) {
	id, ok := linkID(c)
	if !ok {
		return
	}
	h.summary(c, &id)
}

// All handles GET /api/analytics.
func (h *AnalyticsHandler) All(c *gin.Context) {
	h.summary(c, nil)
}

func (h *AnalyticsHandler) summary(c *gin.Context, id *uuid.UUID) {
	q, err := parseAnalyticsQuery(c)
	if err != nil {
		badRequest(c, "Invalid analytics query", err)
		return
	}
	q.LinkID = id

	resp, err := h.analytics.Summary(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parseAnalyticsQuery(c *gin.Context) (service.AnalyticsQuery, error) {
	var (
		q   service.AnalyticsQuery
		err error
	)
	if q.From, err = queryTime(c, "from"); err != nil {
		return q, err
	}
	if q.To, err = queryTime(c, "to"); err != nil {
		return q, err
	}
	if v := c.Query("bucket"); v != "" {
		q.Bucket = models.Bucket(v)
	}
	if q.RecentLimit, err = queryInt(c, "limit", 0); err != nil {
		return q, fmt.Errorf("limit: %w", err)
	}
	return q, nil
}

func queryTime(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t.UTC(), nil
}
