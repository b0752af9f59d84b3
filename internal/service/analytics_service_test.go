package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/service"
)

var day0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// seedClicks records clicks at the given offsets from day0.
func seedClicks(t *testing.T, e *env, link *models.Link, offsets ...time.Duration) {
	t.Helper()
	for _, off := range offsets {
		_, err := e.recorder.RecordAt(context.Background(), link.ID, nil, nil, day0.Add(off))
		require.NoError(t, err)
	}
}

func TestAnalytics_CountBetween(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	link := createLink(t, e, "win")
	other := createLink(t, e, "other")

	seedClicks(t, e, link, time.Hour, 2*time.Hour, 25*time.Hour, 49*time.Hour)
	seedClicks(t, e, other, time.Hour)

	n, err := e.analytics.CountBetween(ctx, &link.ID, day0, day0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = e.analytics.CountBetween(ctx, nil, day0, day0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = e.analytics.CountBetween(ctx, &link.ID, day0.Add(24*time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = e.analytics.CountBetween(ctx, &link.ID, day0, day0)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestAnalytics_Series(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	link := createLink(t, e, "series")

	seedClicks(t, e, link, 10*time.Minute, 20*time.Minute, 3*time.Hour, 26*time.Hour)

	daily, err := e.analytics.Series(ctx, &link.ID, time.Time{}, time.Time{}, models.BucketDay)
	require.NoError(t, err)
	assert.Equal(t, []models.ClickBucket{
		{Start: day0, Count: 3},
		{Start: day0.AddDate(0, 0, 1), Count: 1},
	}, daily)

	hourly, err := e.analytics.Series(ctx, &link.ID, day0, day0.Add(24*time.Hour), models.BucketHour)
	require.NoError(t, err)
	require.Len(t, hourly, 2)
	assert.True(t, hourly[0].Start.Before(hourly[1].Start), "chronological order")
	assert.Equal(t, int64(2), hourly[0].Count)

	_, err = e.analytics.Series(ctx, &link.ID, time.Time{}, time.Time{}, models.Bucket("minute"))
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestAnalytics_Recent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	link := createLink(t, e, "recent")

	seedClicks(t, e, link, time.Minute, 2*time.Minute, 3*time.Minute)

	recent, err := e.analytics.Recent(ctx, &link.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, day0.Add(3*time.Minute).Equal(recent[0].ClickedAt))
	assert.True(t, day0.Add(2*time.Minute).Equal(recent[1].ClickedAt))

	all, err := e.analytics.Recent(ctx, &link.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = e.analytics.Recent(ctx, &link.ID, -1)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestAnalytics_Summary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	link := createLink(t, e, "sum")
	seedClicks(t, e, link, time.Hour, 30*time.Hour)

	resp, err := e.analytics.Summary(ctx, service.AnalyticsQuery{
		LinkID: &link.ID,
		From:   day0,
		To:     day0.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.TotalClicks)
	require.NotNil(t, resp.WindowClicks)
	assert.Equal(t, int64(1), *resp.WindowClicks)
	assert.Equal(t, models.BucketDay, resp.Bucket)
	assert.Len(t, resp.Series, 1)
	assert.Len(t, resp.Recent, 2)

	// Without a window there is no window count.
	resp, err = e.analytics.Summary(ctx, service.AnalyticsQuery{Bucket: models.BucketHour})
	require.NoError(t, err)
	assert.Nil(t, resp.WindowClicks)
	assert.Nil(t, resp.LinkID)
	assert.Len(t, resp.Series, 2)

	missing := uuid.New()
	_, err = e.analytics.Summary(ctx, service.AnalyticsQuery{LinkID: &missing})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAnalytics_DisabledLinkKeepsHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	link := createLink(t, e, "hist")
	seedClicks(t, e, link, time.Hour)

	_, err := e.links.Disable(ctx, link.ID)
	require.NoError(t, err)

	resp, err := e.analytics.Summary(ctx, service.AnalyticsQuery{LinkID: &link.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.TotalClicks)
}
