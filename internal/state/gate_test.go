package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitesearch/crawler/internal/statestore/memory"
)

func TestGateTryVisitOncePerPair(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate := NewGate(memory.New())

	ok, err := gate.TryVisit(ctx, "c1", "https://ex.com/a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = gate.TryVisit(ctx, "c1", "https://ex.com/a")
	require.NoError(t, err)
	require.False(t, ok)

	count, err := gate.VisitedCount(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestGateScopedByCrawlID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate := NewGate(memory.New())

	ok, err := gate.TryVisit(ctx, "c1", "https://ex.com/a")
	require.NoError(t, err)
	require.True(t, ok)

	// Same URL under a different crawl is a fresh pair.
	ok, err = gate.TryVisit(ctx, "c2", "https://ex.com/a")
	require.NoError(t, err)
	require.True(t, ok)

	count, err := gate.VisitedCount(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestGateConcurrentIdempotence(t *testing.T) {
	t.Parallel()

	const callers = 32
	ctx := context.Background()
	gate := NewGate(memory.New())

	var wins atomic.Int32
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := gate.TryVisit(ctx, "c1", "https://ex.com/hot")
			if err != nil {
				errs <- err
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), wins.Load())
	count, err := gate.VisitedCount(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestGateMarkSeedSkipsCounter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gate := NewGate(memory.New())

	require.NoError(t, gate.MarkSeed(ctx, "c1", "https://ex.com"))

	count, err := gate.VisitedCount(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	// A backlink to the seed loses the gate.
	ok, err := gate.TryVisit(ctx, "c1", "https://ex.com")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGateVisitedCountMissingKey(t *testing.T) {
	t.Parallel()

	gate := NewGate(memory.New())
	count, err := gate.VisitedCount(context.Background(), "never-started")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
