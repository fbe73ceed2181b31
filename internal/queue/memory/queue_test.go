package memory

import (
	"context"
	"testing"
	"time"

	"github.com/sitesearch/crawler/internal/crawler"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan crawler.WorkItem, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	item := crawler.WorkItem{CrawlID: "c1", URL: "https://ex.com"}
	if err := q.Enqueue(context.Background(), item); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.CrawlID != "c1" || got.URL != "https://ex.com" {
			t.Fatalf("expected c1 seed item, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return item")
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	ctx := context.Background()
	for _, url := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, crawler.WorkItem{URL: url}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", url, err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		item, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if item.URL != want {
			t.Fatalf("Dequeue() url = %q, want %q", item.URL, want)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("queue should be empty after draining")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qEnqueue := NewQueue(1)
	if err := qEnqueue.Enqueue(context.Background(), crawler.WorkItem{URL: "primed"}); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := qEnqueue.Enqueue(ctx, crawler.WorkItem{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueIsEmpty(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	if !q.IsEmpty() {
		t.Fatal("new queue should be empty")
	}
	if err := q.Enqueue(context.Background(), crawler.WorkItem{}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if q.IsEmpty() {
		t.Fatal("queue with one item should not be empty")
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	if _, err := q.Dequeue(context.Background()); err == nil || err.Error() != "queue closed" {
		t.Fatalf("expected queue closed error, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}
