package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/repository"
)

// ===========================================
// Click Recorder
// ===========================================
// Two entry points:
// - Track: best-effort, used on the redirect path. The event is stamped
//   immediately and handed to a bounded queue served by a worker pool.
//   It never blocks and never fails the caller; a full queue drops the
//   event. Delivery is at-most-once.
// - Record: synchronous, returns the stored event or the store error.
//
// clicked_at is always assigned here. Only RecordAt (seeding) accepts
// a caller-supplied time.
// ===========================================

// ClickRecorder appends click events.
type ClickRecorder struct {
	store        repository.ClickRepository
	queue        chan models.ClickEvent
	writeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	enqueued atomic.Uint64
	recorded atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
}

// NewClickRecorder starts cfg.Workers workers. Call Close to drain them.
func NewClickRecorder(store repository.ClickRepository, cfg config.RecorderConfig, logger *slog.Logger) *ClickRecorder {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Second
	}

	r := &ClickRecorder{
		store:        store,
		queue:        make(chan models.ClickEvent, queueSize),
		writeTimeout: writeTimeout,
		logger:       logger.With("component", "click_recorder"),
		now:          func() time.Time { return time.Now().UTC() },
	}

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	return r
}

// Track queues a click for link. It reports whether the event was
// accepted; false means it was dropped.
func (r *ClickRecorder) Track(linkID uuid.UUID, ip, userAgent *string) bool {
	event := r.newEvent(linkID, ip, userAgent, time.Time{})

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(event, "recorder closed")
		return false
	}

	select {
	case r.queue <- event:
		r.enqueued.Add(1)
		return true
	default:
		r.drop(event, "queue full")
		return false
	}
}

// Record stores one click synchronously.
func (r *ClickRecorder) Record(ctx context.Context, linkID uuid.UUID, ip, userAgent *string) (*models.ClickEvent, error) {
	return r.insert(ctx, r.newEvent(linkID, ip, userAgent, time.Time{}))
}

// RecordAt stores one click with a backdated timestamp. It exists for
// administrative seeding of historical data only.
func (r *ClickRecorder) RecordAt(ctx context.Context, linkID uuid.UUID, ip, userAgent *string, at time.Time) (*models.ClickEvent, error) {
	return r.insert(ctx, r.newEvent(linkID, ip, userAgent, at))
}

// Close stops accepting clicks and waits for the queue to drain or ctx
// to expire. Events still queued when ctx expires are lost.
func (r *ClickRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("click recorder drain interrupted", "pending", len(r.queue))
		return ctx.Err()
	}
}

// Stats returns the counters since start.
func (r *ClickRecorder) Stats() models.RecorderStats {
	return models.RecorderStats{
		Enqueued: r.enqueued.Load(),
		Recorded: r.recorded.Load(),
		Failed:   r.failed.Load(),
		Dropped:  r.dropped.Load(),
		Pending:  len(r.queue),
	}
}

func (r *ClickRecorder) worker() {
	defer r.wg.Done()
	for event := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		_, err := r.insert(ctx, event)
		cancel()
		if err != nil {
			r.logger.Warn("failed to record click", "link_id", event.LinkID, "error", err)
		}
	}
}

func (r *ClickRecorder) insert(ctx context.Context, event models.ClickEvent) (*models.ClickEvent, error) {
	ctx, cancel := withTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err := r.store.InsertClick(ctx, &event); err != nil {
		r.failed.Add(1)
		return nil, translate("record click", err)
	}
	r.recorded.Add(1)
	return &event, nil
}

func (r *ClickRecorder) newEvent(linkID uuid.UUID, ip, userAgent *string, at time.Time) models.ClickEvent {
	if at.IsZero() {
		at = r.now()
	}
	return models.ClickEvent{
		ID:        uuid.New(),
		LinkID:    linkID,
		ClickedAt: at.UTC(),
		IPAddress: normalizeIP(ip),
		UserAgent: normalizeOptional(userAgent),
	}
}

func (r *ClickRecorder) drop(event models.ClickEvent, reason string) {
	r.dropped.Add(1)
	r.logger.Warn("click dropped", "link_id", event.LinkID, "reason", reason)
}

// normalizeIP treats empty and over-long addresses as absent.
func normalizeIP(ip *string) *string {
	if ip == nil || *ip == "" || len(*ip) > models.MaxIPAddressLength {
		return nil
	}
	v := *ip
	return &v
}

func normalizeOptional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
