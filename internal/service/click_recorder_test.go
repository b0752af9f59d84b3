package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkshortener/internal/config"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/repository"
	"github.com/user/linkshortener/internal/service"
	"github.com/user/linkshortener/internal/testutils"
)

func createLink(t *testing.T, e *env, code string) *models.Link {
	t.Helper()
	link, err := e.links.Create(context.Background(), service.CreateLinkInput{
		OriginalURL: "https://example.com/" + code,
		ShortCode:   code,
	})
	require.NoError(t, err)
	return link
}

func TestRecord_AbsentFieldsStayAbsent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	link := createLink(t, e, "anon")

	event, err := e.recorder.Record(ctx, link.ID, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, event.IPAddress)
	assert.Nil(t, event.UserAgent)

	recent, err := e.analytics.Recent(ctx, &link.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, event.ID, recent[0].ID)
	assert.Nil(t, recent[0].IPAddress)
	assert.Nil(t, recent[0].UserAgent)
}

func TestRecord_Normalization(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	link := createLink(t, e, "norm")

	tests := []struct {
		name   string
		ip, ua *string
		wantIP *string
		wantUA *string
	}{
		{"ipv4", strPtr("203.0.113.7"), strPtr("Mozilla/5.0"), strPtr("203.0.113.7"), strPtr("Mozilla/5.0")},
		{"ipv6", strPtr("2001:db8:85a3::8a2e:370:7334"), nil, strPtr("2001:db8:85a3::8a2e:370:7334"), nil},
		{"empty strings", strPtr(""), strPtr(""), nil, nil},
		{"over-long ip", strPtr(strings.Repeat("f", models.MaxIPAddressLength+1)), nil, nil, nil},
		{"max length ip", strPtr(strings.Repeat("f", models.MaxIPAddressLength)), nil, strPtr(strings.Repeat("f", models.MaxIPAddressLength)), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := e.recorder.Record(ctx, link.ID, tt.ip, tt.ua)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIP, event.IPAddress)
			assert.Equal(t, tt.wantUA, event.UserAgent)
		})
	}
}

func TestRecord_ServerAssignsTimestamp(t *testing.T) {
	e := newEnv(t)
	link := createLink(t, e, "clock")

	before := time.Now().UTC()
	event, err := e.recorder.Record(context.Background(), link.ID, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, time.UTC, event.ClickedAt.Location())
	assert.WithinDuration(t, before, event.ClickedAt, 5*time.Second)
}

func TestRecordAt_Backdates(t *testing.T) {
	e := newEnv(t)
	link := createLink(t, e, "past")
	at := time.Date(2023, 6, 1, 8, 30, 0, 0, time.UTC)

	event, err := e.recorder.RecordAt(context.Background(), link.ID, nil, nil, at)
	require.NoError(t, err)
	assert.True(t, at.Equal(event.ClickedAt))
}

func TestRecord_UnknownLink(t *testing.T) {
	e := newEnv(t)

	_, err := e.recorder.Record(context.Background(), uuid.New(), nil, nil)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, uint64(1), e.recorder.Stats().Failed)
}

func TestTrack_CountsExactlyN(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := createLink(t, e, "one")
	b := createLink(t, e, "two")

	// Interleave clicks on two links from several goroutines.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				assert.True(t, e.recorder.Track(a.ID, nil, nil))
				assert.True(t, e.recorder.Track(b.ID, strPtr("198.51.100.1"), nil))
			}
		}()
	}
	wg.Wait()
	e.drain(t)

	totalA, err := e.analytics.Total(ctx, &a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), totalA)

	all, err := e.analytics.Total(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(40), all)

	stats := e.recorder.Stats()
	assert.Equal(t, uint64(40), stats.Enqueued)
	assert.Equal(t, uint64(40), stats.Recorded)
	assert.Zero(t, stats.Dropped)
	assert.Zero(t, stats.Pending)
}

func TestTrack_AfterCloseDrops(t *testing.T) {
	e := newEnv(t)
	link := createLink(t, e, "late")
	e.drain(t)

	assert.False(t, e.recorder.Track(link.ID, nil, nil))
	assert.Equal(t, uint64(1), e.recorder.Stats().Dropped)
}

// blockingStore holds every insert until release is closed.
type blockingStore struct {
	repository.ClickRepository
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) InsertClick(ctx context.Context, event *models.ClickEvent) error {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.ClickRepository.InsertClick(ctx, event)
}

func TestTrack_FullQueueDropsWithoutBlocking(t *testing.T) {
	base := newEnv(t)
	link := createLink(t, base, "busy")

	store := &blockingStore{
		ClickRepository: base.store,
		started:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	recorder := service.NewClickRecorder(store, config.RecorderConfig{
		Workers:      1,
		QueueSize:    1,
		WriteTimeout: 5 * time.Second,
	}, testutils.Logger())

	// The single worker takes the first click and blocks on it.
	require.True(t, recorder.Track(link.ID, nil, nil))
	<-store.started

	assert.True(t, recorder.Track(link.ID, nil, nil), "fits in the queue")
	assert.False(t, recorder.Track(link.ID, nil, nil), "queue is full")

	close(store.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, recorder.Close(ctx))

	stats := recorder.Stats()
	assert.Equal(t, uint64(2), stats.Enqueued)
	assert.Equal(t, uint64(2), stats.Recorded)
	assert.Equal(t, uint64(1), stats.Dropped)

	total, err := base.analytics.Total(context.Background(), &link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestClose_RespectsDeadline(t *testing.T) {
	base := newEnv(t)
	link := createLink(t, base, "stuck")

	store := &blockingStore{
		ClickRepository: base.store,
		started:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	recorder := service.NewClickRecorder(store, config.RecorderConfig{
		Workers:      1,
		QueueSize:    4,
		WriteTimeout: 5 * time.Second,
	}, testutils.Logger())
	t.Cleanup(func() { close(store.release) })

	require.True(t, recorder.Track(link.ID, nil, nil))
	<-store.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, recorder.Close(ctx), context.DeadlineExceeded)
}
