// Package dispatcher manages worker fan-out over the shared frontier.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/sitesearch/crawler/internal/crawler"
	"github.com/sitesearch/crawler/internal/worker"
)

// Dispatcher fans out queued work items to a pool of workers. It owns
// nothing per-crawl; items from all active crawls interleave on the one
// queue and every worker can serve any crawl.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue crawler.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item crawler.WorkItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
