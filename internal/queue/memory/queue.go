// Package memory provides the bounded in-process frontier queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sitesearch/crawler/internal/crawler"
)

// DefaultCapacity bounds outstanding items for the in-process frontier.
// Enqueue blocks, never drops, when full, which backpressures runaway
// fan-out.
const DefaultCapacity = 100_000

// Queue is a bounded in-memory FIFO with context-aware operations.
type Queue struct {
	ch      chan crawler.WorkItem
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity; zero or
// negative means DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		ch: make(chan crawler.WorkItem, capacity),
	}
}

// Enqueue pushes an item, blocking while the queue is full, or returns if
// the context ends.
func (q *Queue) Enqueue(ctx context.Context, item crawler.WorkItem) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (crawler.WorkItem, error) {
	select {
	case <-ctx.Done():
		return crawler.WorkItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return crawler.WorkItem{}, errors.New("queue closed")
		}
		return item, nil
	}
}

// IsEmpty reports whether no items are waiting.
func (q *Queue) IsEmpty() bool {
	return len(q.ch) == 0
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
