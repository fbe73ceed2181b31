package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitesearch/crawler/internal/crawler"
)

func testQueue() *Queue {
	return &Queue{
		items:  make(chan crawler.WorkItem),
		logger: zap.NewNop(),
	}
}

func TestDeliverHandsOffToDequeueCaller(t *testing.T) {
	t.Parallel()

	q := testQueue()
	item := crawler.WorkItem{CrawlID: "crawl-1", URL: "https://ex.com"}

	delivered := make(chan bool, 1)
	go func() {
		delivered <- q.deliver(context.Background(), item)
	}()

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, item, got)

	select {
	case ok := <-delivered:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("deliver did not return after handoff")
	}
}

func TestDeliverWithoutDequeueCallerDoesNotAck(t *testing.T) {
	t.Parallel()

	q := testQueue()

	// No Dequeue caller: the handoff must block until the context ends
	// and then report failure so the message is nacked for redelivery,
	// not buffered past its ack.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.False(t, q.deliver(ctx, crawler.WorkItem{CrawlID: "crawl-1"}))
}

func TestDequeueCanceled(t *testing.T) {
	t.Parallel()

	q := testQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
