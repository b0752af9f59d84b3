// ===========================================
// Package repository - Data Access Layer
// ===========================================
// The backing store is the sole arbiter of consistency:
// - short_code uniqueness is a UNIQUE constraint
// - click_events.link_id is a foreign key with ON DELETE CASCADE
// - every mutation is a single atomic statement or transaction
//
// Two implementations share this contract: PostgresStore (pgx)
// and SQLiteStore (database/sql on modernc sqlite or libsql).
// ===========================================

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkshortener/internal/models"
)

// Errors returned by every Store implementation. Check with errors.Is.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrUnavailable   = errors.New("store unavailable")
)

// LinkRepository owns the links table.
type LinkRepository interface {
	// CreateLink inserts link. A taken short code yields ErrAlreadyExists.
	CreateLink(ctx context.Context, link *models.Link) error
	GetLinkByCode(ctx context.Context, shortCode string) (*models.Link, error)
	GetLinkByID(ctx context.Context, id uuid.UUID) (*models.Link, error)
	CodeExists(ctx context.Context, shortCode string) (bool, error)
	ListLinks(ctx context.Context, opts models.ListLinksOptions) ([]models.Link, error)
	SetLinkActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) (*models.Link, error)
	UpdateLinkURL(ctx context.Context, id uuid.UUID, originalURL string, at time.Time) (*models.Link, error)
	// DeleteLink removes the link and its click events atomically and
	// returns the removed row.
	DeleteLink(ctx context.Context, id uuid.UUID) (*models.Link, error)
}

// ClickRepository appends click events.
type ClickRepository interface {
	// InsertClick stores event as given. An unknown link yields ErrNotFound.
	InsertClick(ctx context.Context, event *models.ClickEvent) error
}

// AnalyticsRepository runs read-only aggregate queries over click events.
type AnalyticsRepository interface {
	CountClicks(ctx context.Context, q models.ClickQuery) (int64, error)
	// ClickSeries returns non-empty buckets in ascending order.
	ClickSeries(ctx context.Context, q models.ClickQuery, bucket models.Bucket) ([]models.ClickBucket, error)
	// RecentClicks returns up to limit events, newest first.
	RecentClicks(ctx context.Context, q models.ClickQuery, limit int) ([]models.ClickEvent, error)
}

// Store is the full backing store.
type Store interface {
	LinkRepository
	ClickRepository
	AnalyticsRepository
	Ping(ctx context.Context) error
}

// ===========================================
// Helper Functions
// ===========================================

// wrapErr classifies err with classify and annotates it with op.
// Sentinel results keep the driver error in the chain.
func wrapErr(op string, err error, classify func(error) error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	if sentinel := classify(err); sentinel != nil {
		return fmt.Errorf("%s: %w: %w", op, sentinel, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// clampLimit bounds list sizes.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
