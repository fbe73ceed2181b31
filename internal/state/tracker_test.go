package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitesearch/crawler/internal/crawler"
	"github.com/sitesearch/crawler/internal/statestore/memory"
)

func TestTrackerNotFound(t *testing.T) {
	t.Parallel()

	store := memory.New()
	tracker := NewTracker(store, NewGate(store))

	_, err := tracker.GetStatus(context.Background(), "missing")
	require.ErrorIs(t, err, crawler.ErrStatusNotFound)
}

func TestTrackerRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	tracker := NewTracker(store, NewGate(store))

	want := crawler.CrawlStatus{Distance: 0, StartTime: 1_000}
	require.NoError(t, tracker.Init(ctx, "c1", want))

	got, err := tracker.GetStatus(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Last write wins, no merge.
	next := crawler.CrawlStatus{Distance: 2, StartTime: 1_000, StopReason: crawler.StopReasonMaxDistance}
	require.NoError(t, tracker.SetStatus(ctx, "c1", next))
	got, err = tracker.GetStatus(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, next, got)
}

func TestTrackerOverlaysLiveCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	gate := NewGate(store)
	tracker := NewTracker(store, gate)

	// The persisted record carries a stale zero count.
	require.NoError(t, tracker.Init(ctx, "c1", crawler.CrawlStatus{Distance: 0, StartTime: 500}))

	for _, url := range []string{"https://ex.com/a", "https://ex.com/b"} {
		ok, err := gate.TryVisit(ctx, "c1", url)
		require.NoError(t, err)
		require.True(t, ok)
	}

	got, err := tracker.GetStatus(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 2, got.NumPages)
}
