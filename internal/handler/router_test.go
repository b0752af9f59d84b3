package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/handler"
	"github.com/user/linkshortener/internal/middleware"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/repository"
	"github.com/user/linkshortener/internal/service"
	"github.com/user/linkshortener/internal/testutils"
)

const adminKey = "test-admin-key"

type server struct {
	router   *gin.Engine
	recorder *service.ClickRecorder
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, store repository.Store, keys ...string) *server {
	t.Helper()
	return newProxiedServer(t, store, nil, keys...)
}

func newProxiedServer(t *testing.T, store repository.Store, proxies []string, keys ...string) *server {
	t.Helper()
	logger := testutils.Logger()

	recorder := service.NewClickRecorder(store, config.RecorderConfig{
		Workers:      1,
		QueueSize:    32,
		WriteTimeout: 2 * time.Second,
	}, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = recorder.Close(ctx)
	})

	links := service.NewLinkService(store, nil, recorder, config.ShortenerConfig{
		DefaultCodeLength: 6,
		MaxAttempts:       10,
		BaseURL:           "http://sho.rt",
	}, 2*time.Second, logger)
	analytics := service.NewAnalyticsService(store, store, 2*time.Second, logger)

	router, err := handler.NewRouter(handler.RouterDeps{
		Links:          handler.NewLinkHandler(links, logger),
		Analytics:      handler.NewAnalyticsHandler(analytics, logger),
		Health:         handler.NewHealthHandler(service.NewHealthReporter(store, nil, recorder, "test", logger)),
		Auth:           middleware.NewAdminAuth(keys),
		RateLimiter:    middleware.NewRateLimiter(nil, 0, logger),
		Logger:         logger,
		TrustedProxies: proxies,
	})
	require.NoError(t, err)

	return &server{recorder: recorder, router: router}
}

func (s *server) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", adminKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.recorder.Close(ctx))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCreateAndRedirect(t *testing.T) {
	s := newServer(t, testutils.NewSQLiteStore(t), adminKey)

	w := s.do(t, http.MethodPost, "/api/links", models.CreateLinkRequest{URL: "https://github.com", ShortCode: "gh"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.LinkResponse](t, w)
	assert.Equal(t, "gh", created.ShortCode)
	assert.Equal(t, "http://sho.rt/gh", created.ShortURL)
	assert.True(t, created.IsCustomCode)

	w = s.do(t, http.MethodGet, "/gh", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://github.com", w.Header().Get("Location"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	s.drain(t)
	w = s.do(t, http.MethodGet, "/api/links/"+created.ID.String()+"/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[models.AnalyticsResponse](t, w)
	assert.Equal(t, int64(1), summary.TotalClicks)
	require.Len(t, summary.Recent, 1)
	assert.Equal(t, models.BucketDay, summary.Bucket)
}

func TestCreateErrors(t *testing.T) {
	s := newServer(t, testutils.NewSQLiteStore(t), adminKey)

	w := s.do(t, http.MethodPost, "/api/links", models.CreateLinkRequest{URL: "https://a.example", ShortCode: "dup"})
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing url", map[string]string{}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"blank url", models.CreateLinkRequest{URL: "   "}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"bad code", models.CreateLinkRequest{URL: "https://b.example", ShortCode: "no spaces"}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"taken code", models.CreateLinkRequest{URL: "https://b.example", ShortCode: "dup"}, http.StatusConflict, models.ErrCodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/links", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[models.ErrorResponse](t, w).Code)
		})
	}
}

func TestDisabledLinkIsNotFound(t *testing.T) {
	s := newServer(t, testutils.NewSQLiteStore(t), adminKey)

	w := s.do(t, http.MethodPost, "/api/links", models.CreateLinkRequest{URL: "https://youtube.com", ShortCode: "yt"})
	require.Equal(t, http.StatusCreated, w.Code)
	link := decode[models.LinkResponse](t, w)

	w = s.do(t, http.MethodPost, "/api/links/"+link.ID.String()+"/disable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.LinkResponse](t, w).IsActive)

	w = s.do(t, http.MethodGet, "/yt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/links/"+link.ID.String()+"/enable", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/yt", nil)
	assert.Equal(t, http.StatusFound, w.Code)

	w = s.do(t, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrCodeNotFound, decode[models.ErrorResponse](t, w).Code)
}

func TestLinkAdministration(t *testing.T) {
	s := newServer(t, testutils.NewSQLiteStore(t), adminKey)

	w := s.do(t, http.MethodPost, "/api/links", models.CreateLinkRequest{URL: "https://old.example"})
	require.Equal(t, http.StatusCreated, w.Code)
	link := decode[models.LinkResponse](t, w)
	assert.False(t, link.IsCustomCode)
	assert.Len(t, link.ShortCode, 6)

	path := "/api/links/" + link.ID.String()

	w = s.do(t, http.MethodPatch, path, models.UpdateLinkRequest{URL: "https://new.example"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://new.example", decode[models.LinkResponse](t, w).OriginalURL)

	w = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://new.example", decode[models.LinkResponse](t, w).OriginalURL)

	w = s.do(t, http.MethodGet, "/api/links?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.LinkListResponse](t, w)
	assert.Len(t, list.Links, 1)
	assert.Equal(t, 10, list.Limit)

	w = s.do(t, http.MethodGet, "/api/links?limit=1000&offset=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[models.LinkListResponse](t, w)
	assert.Equal(t, service.MaxListLimit, list.Limit)

	w = s.do(t, http.MethodGet, "/api/links", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.DefaultListLimit, decode[models.LinkListResponse](t, w).Limit)

	w = s.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/links/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/links?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsQueryValidation(t *testing.T) {
	s := newServer(t, testutils.NewSQLiteStore(t), adminKey)

	for _, q := range []string{
		"?bucket=week",
		"?from=yesterday",
		"?from=2024-05-02T00:00:00Z&to=2024-05-01T00:00:00Z",
		"?limit=-1",
	} {
		w := s.do(t, http.MethodGet, "/api/analytics"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w := s.do(t, http.MethodGet, "/api/analytics?bucket=hour&from=2024-05-01T00:00:00Z&to=2024-05-02T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[models.AnalyticsResponse](t, w)
	assert.Equal(t, models.BucketHour, summary.Bucket)
	require.NotNil(t, summary.WindowClicks)
	assert.Zero(t, *summary.WindowClicks)
}

func TestAdminKeyRequired(t *testing.T) {
	s := newServer(t, testutils.NewSQLiteStore(t), adminKey)

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.Header.Set("Authorization", "Bearer "+adminKey)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Redirects and health checks are public.
	req = httptest.NewRequest(http.MethodGet, "/live", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientIPIgnoresUntrustedForwarding(t *testing.T) {
	tests := []struct {
		name    string
		proxies []string
		want    string
	}{
		{"no trusted proxies", nil, "203.0.113.9"},
		{"peer is a trusted proxy", []string{"203.0.113.0/24"}, "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newProxiedServer(t, testutils.NewSQLiteStore(t), tt.proxies, adminKey)

			w := s.do(t, http.MethodPost, "/api/links", models.CreateLinkRequest{URL: "https://github.com", ShortCode: "gh"})
			require.Equal(t, http.StatusCreated, w.Code)
			link := decode[models.LinkResponse](t, w)

			req := httptest.NewRequest(http.MethodGet, "/gh", nil)
			req.RemoteAddr = "203.0.113.9:40000"
			req.Header.Set("X-Forwarded-For", "198.51.100.7")
			w = httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			require.Equal(t, http.StatusFound, w.Code)

			s.drain(t)
			w = s.do(t, http.MethodGet, "/api/links/"+link.ID.String()+"/analytics", nil)
			require.Equal(t, http.StatusOK, w.Code)
			summary := decode[models.AnalyticsResponse](t, w)
			require.Len(t, summary.Recent, 1)
			require.NotNil(t, summary.Recent[0].IPAddress)
			assert.Equal(t, tt.want, *summary.Recent[0].IPAddress)
		})
	}
}

func TestNewRouterRejectsBadProxy(t *testing.T) {
	logger := testutils.Logger()
	_, err := handler.NewRouter(handler.RouterDeps{
		Logger:         logger,
		TrustedProxies: []string{"proxy.internal"},
	})
	assert.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	s := newServer(t, testutils.NewSQLiteStore(t))

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[models.HealthReport](t, w)
	assert.Equal(t, models.StatusHealthy, report.Status)
	assert.Equal(t, "ok", report.Checks["database"])

	w = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStoreUnavailable(t *testing.T) {
	s := newServer(t, downStore{testutils.NewSQLiteStore(t)})

	w := s.do(t, http.MethodGet, "/gh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.Equal(t, models.ErrCodeStoreUnavailable, decode[models.ErrorResponse](t, w).Code)

	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, models.StatusDegraded, decode[models.HealthReport](t, w).Status)

	w = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// downStore fails link lookups and pings as if the database were gone.
type downStore struct {
	*repository.SQLiteStore
}

var errDown = errors.Join(repository.ErrUnavailable, errors.New("connection refused"))

func (downStore) Ping(context.Context) error { return errDown }

func (downStore) GetLinkByCode(context.Context, string) (*models.Link, error) {
	return nil, errDown
}
