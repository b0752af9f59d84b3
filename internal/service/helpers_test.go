package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/database"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/repository"
	"github.com/user/linkshortener/internal/service"
	"github.com/user/linkshortener/internal/testutils"
)

type env struct {
	store     repository.Store
	recorder  *service.ClickRecorder
	links     *service.LinkService
	analytics *service.AnalyticsService
}

var shortenerConfig = config.ShortenerConfig{
	DefaultCodeLength: 6,
	MaxAttempts:       10,
	BaseURL:           "http://sho.rt",
}

var recorderConfig = config.RecorderConfig{
	Workers:      2,
	QueueSize:    64,
	WriteTimeout: 2 * time.Second,
}

// newEnv wires the services on a fresh in-memory store.
func newEnv(t *testing.T, opts ...service.LinkOption) *env {
	t.Helper()
	return newEnvWithStore(t, testutils.NewSQLiteStore(t), nil, opts...)
}

func newEnvWithStore(t *testing.T, store repository.Store, cache *database.RedisDB, opts ...service.LinkOption) *env {
	t.Helper()
	logger := testutils.Logger()

	recorder := service.NewClickRecorder(store, recorderConfig, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = recorder.Close(ctx)
	})

	return &env{
		store:     store,
		recorder:  recorder,
		links:     service.NewLinkService(store, cache, recorder, shortenerConfig, 3*time.Second, logger, opts...),
		analytics: service.NewAnalyticsService(store, store, 3*time.Second, logger),
	}
}

// drain flushes queued clicks so counts are final.
func (e *env) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.recorder.Close(ctx); err != nil {
		t.Fatalf("failed to drain recorder: %v", err)
	}
}

func strPtr(s string) *string { return &s }

// failingStore fails every call with err.
type failingStore struct {
	err error
}

var _ repository.Store = failingStore{}

func (f failingStore) Ping(context.Context) error { return f.err }

func (f failingStore) CreateLink(context.Context, *models.Link) error { return f.err }

func (f failingStore) InsertClick(context.Context, *models.ClickEvent) error { return f.err }

func (f failingStore) GetLinkByCode(context.Context, string) (*models.Link, error) {
	return nil, f.err
}

func (f failingStore) GetLinkByID(context.Context, uuid.UUID) (*models.Link, error) {
	return nil, f.err
}

func (f failingStore) CodeExists(context.Context, string) (bool, error) {
	return false, f.err
}

func (f failingStore) ListLinks(context.Context, models.ListLinksOptions) ([]models.Link, error) {
	return nil, f.err
}

func (f failingStore) SetLinkActive(context.Context, uuid.UUID, bool, time.Time) (*models.Link, error) {
	return nil, f.err
}

func (f failingStore) UpdateLinkURL(context.Context, uuid.UUID, string, time.Time) (*models.Link, error) {
	return nil, f.err
}

func (f failingStore) DeleteLink(context.Context, uuid.UUID) (*models.Link, error) {
	return nil, f.err
}

func (f failingStore) CountClicks(context.Context, models.ClickQuery) (int64, error) {
	return 0, f.err
}

func (f failingStore) ClickSeries(context.Context, models.ClickQuery, models.Bucket) ([]models.ClickBucket, error) {
	return nil, f.err
}

func (f failingStore) RecentClicks(context.Context, models.ClickQuery, int) ([]models.ClickEvent, error) {
	return nil, f.err
}
