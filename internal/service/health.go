package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/linkshortener/internal/database"
	"github.com/user/linkshortener/internal/models"
)

// Health check results.
const (
	checkOK    = "ok"
	checkError = "error"
)

// Pinger is a dependency with a side-effect-free liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter pings the backing store and the optional cache.
type HealthReporter struct {
	store    Pinger
	cache    *database.RedisDB // nil when Redis is not configured
	recorder *ClickRecorder
	version  string
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewHealthReporter creates a reporter. cache and recorder may be nil.
func NewHealthReporter(store Pinger, cache *database.RedisDB, recorder *ClickRecorder, version string, logger *slog.Logger) *HealthReporter {
	return &HealthReporter{
		store:    store,
		cache:    cache,
		recorder: recorder,
		version:  version,
		logger:   logger.With("component", "health"),
		timeout:  3 * time.Second,
		now:      time.Now,
	}
}

// Check is one round trip to the backing store. A failure is reported
// as ErrStoreUnavailable.
func (h *HealthReporter) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Report checks every dependency. Any failed check makes the status
// degraded. The report is public, so a failed check reads "error" and
// the cause goes to the log only.
func (h *HealthReporter) Report(ctx context.Context) models.HealthReport {
	report := models.HealthReport{
		Status:    models.StatusHealthy,
		Version:   h.version,
		Timestamp: h.now().UTC(),
		Checks:    make(map[string]string),
	}

	if err := h.Check(ctx); err != nil {
		h.logger.Error("health check failed", "check", "database", "error", err)
		report.Checks["database"] = checkError
		report.Status = models.StatusDegraded
	} else {
		report.Checks["database"] = checkOK
	}

	if h.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := h.cache.Health(cacheCtx)
		cancel()
		if err != nil {
			h.logger.Error("health check failed", "check", "redis", "error", err)
			report.Checks["redis"] = checkError
			report.Status = models.StatusDegraded
		} else {
			report.Checks["redis"] = checkOK
		}
	}

	if h.recorder != nil {
		stats := h.recorder.Stats()
		report.Recorder = &stats
	}
	return report
}
