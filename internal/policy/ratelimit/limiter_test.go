package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitUnlimitedNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://example.com/page"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitThrottlesPerHost(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.example/a"))

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "https://slow.example/b"))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// A different host has its own bucket and is not delayed.
	start = time.Now()
	require.NoError(t, l.Wait(context.Background(), "https://fast.example/a"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.001, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://example.com/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://example.com/b")
	require.Error(t, err)
}
