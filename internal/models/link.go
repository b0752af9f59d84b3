// ===========================================
// Package models - Domain Models
// ===========================================
// Plain data shared by the repository, service and handler
// layers. The only behavior here is small state checks.
// ===========================================

package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxIPAddressLength fits the longest textual IPv6 form.
const MaxIPAddressLength = 45

// ===========================================
// Core Domain Models
// ===========================================

// Link maps a short code to its destination.
type Link struct {
	ID           uuid.UUID `json:"id"`
	ShortCode    string    `json:"short_code"`
	OriginalURL  string    `json:"original_url"`
	IsActive     bool      `json:"is_active"`      // false = soft-disabled
	IsCustomCode bool      `json:"is_custom_code"` // caller chose the code
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClickEvent is one recorded resolution of a Link.
//
// IPAddress and UserAgent are nil when the client did not supply them
// (privacy proxies, scrubbed traffic). They serialize as JSON null.
type ClickEvent struct {
	ID        uuid.UUID `json:"id"`
	LinkID    uuid.UUID `json:"link_id"`
	ClickedAt time.Time `json:"clicked_at"`
	IPAddress *string   `json:"ip_address"`
	UserAgent *string   `json:"user_agent"`
}

// ===========================================
// Query Models
// ===========================================

// ListLinksOptions filters and pages a link listing.
type ListLinksOptions struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ClickQuery scopes an analytics query.
// A nil LinkID means all links; zero From/To leave that side open.
// From is inclusive, To is exclusive.
type ClickQuery struct {
	LinkID *uuid.UUID
	From   time.Time
	To     time.Time
}

// Bucket is the width of a time-series bucket.
type Bucket string

const (
	BucketHour Bucket = "hour"
	BucketDay  Bucket = "day"
)

// Valid reports whether b is a supported bucket width.
func (b Bucket) Valid() bool {
	return b == BucketHour || b == BucketDay
}

// Truncate returns the UTC start of the bucket containing t.
func (b Bucket) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch b {
	case BucketDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(time.Hour)
	}
}

// ClickBucket is one point of a click time series.
type ClickBucket struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// ===========================================
// Request DTOs
// ===========================================

// CreateLinkRequest is the body of POST /api/links.
type CreateLinkRequest struct {
	URL       string `json:"url" binding:"required"`
	ShortCode string `json:"short_code,omitempty"`
}

// UpdateLinkRequest is the body of PATCH /api/links/:id.
type UpdateLinkRequest struct {
	URL string `json:"url" binding:"required"`
}

// ===========================================
// Response DTOs
// ===========================================

// LinkResponse wraps a Link with its clickable URL.
type LinkResponse struct {
	Link
	ShortURL string `json:"short_url"`
}

// LinkListResponse is returned by GET /api/links.
type LinkListResponse struct {
	Links  []LinkResponse `json:"links"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// AnalyticsResponse bundles the aggregator results for one scope.
type AnalyticsResponse struct {
	LinkID       *uuid.UUID    `json:"link_id,omitempty"`
	TotalClicks  int64         `json:"total_clicks"`
	WindowClicks *int64        `json:"window_clicks,omitempty"`
	From         *time.Time    `json:"from,omitempty"`
	To           *time.Time    `json:"to,omitempty"`
	Bucket       Bucket        `json:"bucket"`
	Series       []ClickBucket `json:"series"`
	Recent       []ClickEvent  `json:"recent"`
}

// ===========================================
// Error Response
// ===========================================

// ErrorResponse provides consistent error format across all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error codes for ErrorResponse.Code.
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeCapacity         = "CODE_SPACE_EXHAUSTED"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// ===========================================
// Health Report
// ===========================================

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthReport is returned by the /health endpoint.
type HealthReport struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"` // component -> "ok" | "error"
	Recorder  *RecorderStats    `json:"click_recorder,omitempty"`
}

// OK reports whether every check passed.
func (h HealthReport) OK() bool {
	return h.Status == StatusHealthy
}

// RecorderStats are the click recorder counters since startup.
type RecorderStats struct {
	Enqueued uint64 `json:"enqueued"`
	Recorded uint64 `json:"recorded"`
	Failed   uint64 `json:"failed"`
	Dropped  uint64 `json:"dropped"`
	Pending  int    `json:"pending"`
}
