// ===========================================
// Package seed - Development Data
// ===========================================
// Loads the fixture links and their backdated click history.
//
// Links go through the Link Service's Create, so URLs and codes are
// validated exactly as for API callers. Inactive fixtures are disabled
// after creation. Clicks go through the Click Recorder's RecordAt, the one path that
// accepts a caller-supplied timestamp.
//
// Running twice is safe: a code that already exists is skipped along
// with its clicks, so history is never duplicated.
// ===========================================

package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkshortener/internal/service"
)

// Result counts what a Run did.
type Result struct {
	LinksCreated int
	LinksSkipped int
	Clicks       int
}

// Seeder writes fixtures into a store.
type Seeder struct {
	links    *service.LinkService
	recorder *service.ClickRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a seeder. now may be nil for time.Now.
func New(links *service.LinkService, recorder *service.ClickRecorder, logger *slog.Logger, now func() time.Time) *Seeder {
	if now == nil {
		now = time.Now
	}
	return &Seeder{links: links, recorder: recorder, logger: logger, now: now}
}

// Run seeds links, then clicks for the links created in this run.
func (s *Seeder) Run(ctx context.Context, links []LinkFixture, clicks []ClickFixture) (Result, error) {
	var res Result
	now := s.now().UTC()
	created := make(map[string]uuid.UUID, len(links))

	for _, f := range links {
		id, ok, err := s.createLink(ctx, f, now)
		if err != nil {
			return res, err
		}
		if !ok {
			res.LinksSkipped++
			s.logger.Info("skip existing link", "short_code", f.ShortCode)
			continue
		}
		created[f.ShortCode] = id
		res.LinksCreated++
		s.logger.Info("link seeded", "short_code", f.ShortCode, "active", f.Active)
	}

	for _, f := range clicks {
		id, ok := created[f.ShortCode]
		if !ok {
			continue
		}
		if _, err := s.recorder.RecordAt(ctx, id, optional(f.IP), optional(f.UserAgent), now.Add(-f.Ago)); err != nil {
			return res, fmt.Errorf("seed click for %q: %w", f.ShortCode, err)
		}
		res.Clicks++
	}

	return res, nil
}

// createLink creates f unless its code is taken. ok is false when it
// was skipped.
func (s *Seeder) createLink(ctx context.Context, f LinkFixture, now time.Time) (uuid.UUID, bool, error) {
	link, err := s.links.Create(ctx, service.CreateLinkInput{
		OriginalURL: f.OriginalURL,
		ShortCode:   f.ShortCode,
		Generated:   !f.Custom,
		CreatedAt:   now.Add(-f.CreatedAgo),
	})
	switch {
	case errors.Is(err, service.ErrConflict):
		return uuid.Nil, false, nil
	case err != nil:
		return uuid.Nil, false, fmt.Errorf("seed link %q: %w", f.ShortCode, err)
	}

	if !f.Active {
		if _, err := s.links.Disable(ctx, link.ID); err != nil {
			return uuid.Nil, false, fmt.Errorf("disable seeded link %q: %w", f.ShortCode, err)
		}
	}
	return link.ID, true, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
