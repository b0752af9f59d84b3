package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/repository"
)

// Recent click limits.
const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 1000
)

// AnalyticsQuery selects what Summary computes.
type AnalyticsQuery struct {
	LinkID      *uuid.UUID // nil = all links
	From, To    time.Time  // window; zero = open
	Bucket      models.Bucket
	RecentLimit int
}

// AnalyticsService runs read-only queries over click events. Results
// are never cached, so they reflect every committed click.
type AnalyticsService struct {
	clicks  repository.AnalyticsRepository
	links   repository.LinkRepository
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(clicks repository.AnalyticsRepository, links repository.LinkRepository, opTimeout time.Duration, logger *slog.Logger) *AnalyticsService {
	return &AnalyticsService{
		clicks:  clicks,
		links:   links,
		timeout: opTimeout,
		logger:  logger.With("component", "analytics"),
	}
}

// Total counts every click of linkID, or of all links when nil. An
// unknown or deleted link counts zero.
func (s *AnalyticsService) Total(ctx context.Context, linkID *uuid.UUID) (int64, error) {
	return s.count(ctx, models.ClickQuery{LinkID: linkID})
}

// CountBetween counts clicks in [from, to).
func (s *AnalyticsService) CountBetween(ctx context.Context, linkID *uuid.UUID, from, to time.Time) (int64, error) {
	if err := validateWindow(from, to); err != nil {
		return 0, err
	}
	return s.count(ctx, models.ClickQuery{LinkID: linkID, From: from, To: to})
}

// Series returns non-empty bucket counts in chronological order.
func (s *AnalyticsService) Series(ctx context.Context, linkID *uuid.UUID, from, to time.Time, bucket models.Bucket) ([]models.ClickBucket, error) {
	if !bucket.Valid() {
		return nil, fmt.Errorf("%w: bucket must be %q or %q", ErrValidation, models.BucketHour, models.BucketDay)
	}
	if err := validateWindow(from, to); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	series, err := s.clicks.ClickSeries(ctx, models.ClickQuery{LinkID: linkID, From: from, To: to}, bucket)
	if err != nil {
		return nil, translate("click series", err)
	}
	return series, nil
}

// Recent returns the newest clicks first. Absent ip_address and
// user_agent stay nil.
func (s *AnalyticsService) Recent(ctx context.Context, linkID *uuid.UUID, limit int) ([]models.ClickEvent, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}
	if limit == 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	events, err := s.clicks.RecentClicks(ctx, models.ClickQuery{LinkID: linkID}, limit)
	if err != nil {
		return nil, translate("recent clicks", err)
	}
	return events, nil
}

// Summary bundles total, window count, series and recent clicks. A
// LinkID that does not exist yields ErrNotFound.
func (s *AnalyticsService) Summary(ctx context.Context, q AnalyticsQuery) (*models.AnalyticsResponse, error) {
	if q.Bucket == "" {
		q.Bucket = models.BucketDay
	}

	if q.LinkID != nil {
		linkCtx, cancel := withTimeout(ctx, s.timeout)
		_, err := s.links.GetLinkByID(linkCtx, *q.LinkID)
		cancel()
		if err != nil {
			return nil, translate("get link", err)
		}
	}

	total, err := s.Total(ctx, q.LinkID)
	if err != nil {
		return nil, err
	}
	series, err := s.Series(ctx, q.LinkID, q.From, q.To, q.Bucket)
	if err != nil {
		return nil, err
	}
	recent, err := s.Recent(ctx, q.LinkID, q.RecentLimit)
	if err != nil {
		return nil, err
	}

	resp := &models.AnalyticsResponse{
		LinkID:      q.LinkID,
		TotalClicks: total,
		Bucket:      q.Bucket,
		Series:      series,
		Recent:      recent,
	}

	if !q.From.IsZero() || !q.To.IsZero() {
		window, err := s.CountBetween(ctx, q.LinkID, q.From, q.To)
		if err != nil {
			return nil, err
		}
		resp.WindowClicks = &window
		if !q.From.IsZero() {
			from := q.From.UTC()
			resp.From = &from
		}
		if !q.To.IsZero() {
			to := q.To.UTC()
			resp.To = &to
		}
	}
	return resp, nil
}

func (s *AnalyticsService) count(ctx context.Context, q models.ClickQuery) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.clicks.CountClicks(ctx, q)
	if err != nil {
		return 0, translate("count clicks", err)
	}
	return n, nil
}

func validateWindow(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("%w: from must be before to", ErrValidation)
	}
	return nil
}
