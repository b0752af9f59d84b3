// ===========================================
// Package service - Business Logic Layer
// ===========================================
// LinkService owns link lifecycle and resolution, ClickRecorder
// appends click events, AnalyticsService answers read-only queries
// and HealthReporter pings the store.
//
// Every store call runs under the configured operation timeout, so a
// stalled store surfaces as ErrStoreUnavailable instead of hanging.
// ===========================================

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/database"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/repository"
	"github.com/user/linkshortener/internal/shortcode"
)

// Page sizes for List.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// CreateLinkInput describes a new link.
type CreateLinkInput struct {
	OriginalURL string
	// ShortCode is the custom code. Empty means generate one.
	ShortCode string
	// Generated marks a supplied ShortCode as machine-made, so the link
	// is not flagged custom. The code is still validated.
	Generated bool
	// CreatedAt backdates the link. Only seeding tools set it.
	CreatedAt time.Time
}

// LinkService handles link creation, resolution and administration.
type LinkService struct {
	store    repository.LinkRepository
	cache    *database.RedisDB // nil when Redis is not configured
	recorder *ClickRecorder
	gen      *shortcode.Generator
	baseURL  string
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// LinkOption customizes a LinkService.
type LinkOption func(*LinkService)

// WithGenerator replaces the generator built from config.
func WithGenerator(g *shortcode.Generator) LinkOption {
	return func(s *LinkService) { s.gen = g }
}

// WithClock replaces time.Now for updated_at stamps.
func WithClock(now func() time.Time) LinkOption {
	return func(s *LinkService) { s.now = now }
}

// NewLinkService creates a new link service. cache may be nil.
func NewLinkService(
	store repository.LinkRepository,
	cache *database.RedisDB,
	recorder *ClickRecorder,
	cfg config.ShortenerConfig,
	opTimeout time.Duration,
	logger *slog.Logger,
	opts ...LinkOption,
) *LinkService {
	s := &LinkService{
		store:    store,
		cache:    cache,
		recorder: recorder,
		gen:      shortcode.New(cfg.DefaultCodeLength, cfg.MaxAttempts),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  opTimeout,
		logger:   logger.With("component", "link_service"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShortURL is the public URL of link.
func (s *LinkService) ShortURL(link *models.Link) string {
	return s.baseURL + "/" + link.ShortCode
}

// ===========================================
// Creation
// ===========================================

// Create stores a new link with either the caller's code or a
// generated one.
//
// A custom code is not pre-checked: the UNIQUE constraint decides, and
// a violation is reported as ErrConflict. Generated codes are checked
// with CodeExists first; a conflict on insert (lost race) retries
// within the generator's attempt budget.
func (s *LinkService) Create(ctx context.Context, in CreateLinkInput) (*models.Link, error) {
	if err := validateURL(in.OriginalURL); err != nil {
		return nil, err
	}

	now := in.CreatedAt
	if now.IsZero() {
		now = s.now()
	}
	link := &models.Link{
		ID:           uuid.New(),
		ShortCode:    in.ShortCode,
		OriginalURL:  strings.TrimSpace(in.OriginalURL),
		IsActive:     true,
		IsCustomCode: in.ShortCode != "" && !in.Generated,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}

	if link.ShortCode != "" {
		if err := shortcode.Validate(link.ShortCode); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		ctx, cancel := withTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.store.CreateLink(ctx, link); err != nil {
			return nil, translate("create link", err)
		}
		s.logger.Info("link created", "short_code", link.ShortCode, "custom", link.IsCustomCode)
		return link, nil
	}

	if err := s.createGenerated(ctx, link); err != nil {
		return nil, err
	}
	s.logger.Info("link created", "short_code", link.ShortCode, "custom", false)
	return link, nil
}

func (s *LinkService) createGenerated(ctx context.Context, link *models.Link) error {
	attempts := 0
	exists := func(ctx context.Context, code string) (bool, error) {
		attempts++
		ctx, cancel := withTimeout(ctx, s.timeout)
		defer cancel()
		return s.store.CodeExists(ctx, code)
	}

	for {
		code, err := s.gen.Generate(ctx, exists)
		if errors.Is(err, shortcode.ErrExhausted) {
			s.logger.Error("short code space exhausted", "attempts", attempts)
			return fmt.Errorf("%w: %w", ErrCapacity, err)
		}
		if err != nil {
			return translate("generate code", err)
		}

		link.ShortCode = code
		insertCtx, cancel := withTimeout(ctx, s.timeout)
		err = s.store.CreateLink(insertCtx, link)
		cancel()

		if !errors.Is(err, repository.ErrAlreadyExists) {
			return translate("create link", err)
		}
		if attempts >= s.gen.MaxAttempts() {
			s.logger.Error("short code space exhausted", "attempts", attempts)
			return fmt.Errorf("%w after %d attempts", ErrCapacity, attempts)
		}
		s.logger.Debug("generated code lost insert race, retrying", "short_code", code)
	}
}

// ===========================================
// Resolution
// ===========================================

// Resolve returns the link for shortCode whether it is active or not.
// Callers serving end users must check IsActive (see Redirect).
//
// Cache-aside: Redis first, store on miss. Cache errors are logged
// and ignored.
func (s *LinkService) Resolve(ctx context.Context, shortCode string) (*models.Link, error) {
	if shortcode.Validate(shortCode) != nil {
		return nil, ErrNotFound
	}

	if link := s.cacheGet(ctx, shortCode); link != nil {
		return link, nil
	}

	storeCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	link, err := s.store.GetLinkByCode(storeCtx, shortCode)
	if err != nil {
		return nil, translate("resolve", err)
	}

	s.cacheSet(ctx, link)
	return link, nil
}

// Redirect is the end-user path: resolve, record the click, then
// refuse disabled links with ErrLinkDisabled.
//
// The click is recorded for every existing link, active or not, and
// is queued so recording never adds latency or failure here.
func (s *LinkService) Redirect(ctx context.Context, shortCode string, ip, userAgent *string) (*models.Link, error) {
	link, err := s.Resolve(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.Track(link.ID, ip, userAgent)
	}

	if !link.IsActive {
		return link, ErrLinkDisabled
	}
	return link, nil
}

// ===========================================
// Administration
// ===========================================

// Get returns the link with id.
func (s *LinkService) Get(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.store.GetLinkByID(ctx, id)
	if err != nil {
		return nil, translate("get link", err)
	}
	return link, nil
}

// List returns links newest first, along with the options actually
// applied: a zero limit becomes DefaultListLimit and larger ones are
// capped at MaxListLimit.
func (s *LinkService) List(ctx context.Context, opts models.ListLinksOptions) ([]models.Link, models.ListLinksOptions, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, opts, fmt.Errorf("%w: limit and offset must not be negative", ErrValidation)
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultListLimit
	}
	opts.Limit = min(opts.Limit, MaxListLimit)

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	links, err := s.store.ListLinks(ctx, opts)
	if err != nil {
		return nil, opts, translate("list links", err)
	}
	return links, opts, nil
}

// Disable soft-disables the link. Disabling twice succeeds and bumps
// updated_at again.
func (s *LinkService) Disable(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	return s.setActive(ctx, id, false)
}

// Enable re-activates the link.
func (s *LinkService) Enable(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	return s.setActive(ctx, id, true)
}

func (s *LinkService) setActive(ctx context.Context, id uuid.UUID, active bool) (*models.Link, error) {
	storeCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.store.SetLinkActive(storeCtx, id, active, s.now().UTC())
	if err != nil {
		return nil, translate("set link active", err)
	}

	s.cacheEvict(ctx, link.ShortCode)
	s.logger.Info("link state changed", "short_code", link.ShortCode, "active", active)
	return link, nil
}

// UpdateURL points the link at a new destination. The code and
// identity are unchanged.
func (s *LinkService) UpdateURL(ctx context.Context, id uuid.UUID, originalURL string) (*models.Link, error) {
	if err := validateURL(originalURL); err != nil {
		return nil, err
	}

	storeCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.store.UpdateLinkURL(storeCtx, id, strings.TrimSpace(originalURL), s.now().UTC())
	if err != nil {
		return nil, translate("update link", err)
	}

	s.cacheEvict(ctx, link.ShortCode)
	return link, nil
}

// Delete removes the link and all of its click events.
func (s *LinkService) Delete(ctx context.Context, id uuid.UUID) error {
	storeCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.store.DeleteLink(storeCtx, id)
	if err != nil {
		return translate("delete link", err)
	}

	s.cacheEvict(ctx, link.ShortCode)
	s.logger.Info("link deleted", "short_code", link.ShortCode)
	return nil
}

// ===========================================
// Caching Operations
// ===========================================

func (s *LinkService) cacheGet(ctx context.Context, shortCode string) *models.Link {
	if s.cache == nil {
		return nil
	}
	link, err := s.cache.GetLink(ctx, shortCode)
	if err != nil {
		s.logger.Warn("cache read failed", "short_code", shortCode, "error", err)
		return nil
	}
	return link
}

func (s *LinkService) cacheSet(ctx context.Context, link *models.Link) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetLink(ctx, link); err != nil {
		s.logger.Warn("cache write failed", "short_code", link.ShortCode, "error", err)
	}
}

// cacheEvict drops a mutated link. A failed eviction leaves a stale
// entry until its TTL, so it is logged at error.
func (s *LinkService) cacheEvict(ctx context.Context, shortCode string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteLink(ctx, shortCode); err != nil {
		s.logger.Error("cache eviction failed", "short_code", shortCode, "error", err)
	}
}

// ===========================================
// Validation Helpers
// ===========================================

// validateURL requires a non-empty, parseable URL. A scheme is not
// required and reachability is never checked.
func validateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: url must not be empty", ErrValidation)
	}
	if _, err := url.Parse(raw); err != nil {
		return fmt.Errorf("%w: malformed url: %w", ErrValidation, err)
	}
	return nil
}
