// Package coordinator starts crawls and answers status queries.
package coordinator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sitesearch/crawler/internal/crawler"
	"github.com/sitesearch/crawler/internal/metrics"
	"github.com/sitesearch/crawler/internal/progress"
	queuemem "github.com/sitesearch/crawler/internal/queue/memory"
	"github.com/sitesearch/crawler/internal/state"
	"github.com/sitesearch/crawler/internal/worker"
)

// WorkerFactory builds a worker bound to a freshly created frontier
// queue. The in-process run mode calls it once per crawl.
type WorkerFactory func(q crawler.Queue) *worker.Worker

// Coordinator performs the crawl admission sequence (status record, seed
// gate mark, seed enqueue) and dispatches the crawl to whichever run
// mode it was built for.
type Coordinator struct {
	gate    *state.Gate
	tracker *state.Tracker
	clock   crawler.Clock
	emitter progress.Emitter
	logger  *zap.Logger

	// brokered mode: seeds go onto the shared queue that the worker
	// pool consumes.
	queue crawler.Queue

	// in-process mode: each crawl gets its own bounded queue and a
	// worker that drains it to completion.
	newWorker     WorkerFactory
	queueCapacity int
}

// NewBrokered builds a coordinator that hands seeds to a shared,
// broker-backed queue consumed by a worker pool.
func NewBrokered(gate *state.Gate, tracker *state.Tracker, clock crawler.Clock, queue crawler.Queue, emitter progress.Emitter, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		gate:    gate,
		tracker: tracker,
		clock:   clock,
		queue:   queue,
		emitter: emitter,
		logger:  logger,
	}
}

// NewInProcess builds a coordinator that runs each crawl to completion
// inside this process on its own frontier queue.
func NewInProcess(gate *state.Gate, tracker *state.Tracker, clock crawler.Clock, newWorker WorkerFactory, queueCapacity int, emitter progress.Emitter, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		gate:          gate,
		tracker:       tracker,
		clock:         clock,
		newWorker:     newWorker,
		queueCapacity: queueCapacity,
		emitter:       emitter,
		logger:        logger,
	}
}

// StartCrawl admits a crawl under the given ID. The request URL gets a
// https scheme when it carries none, and an empty base URL defaults to
// the seed URL. Returns once the seed is enqueued; the crawl itself runs
// asynchronously.
func (c *Coordinator) StartCrawl(ctx context.Context, crawlID string, req crawler.CrawlRequest) error {
	req = normalize(req)
	item := crawler.NewSeedItem(crawlID, req, c.clock.Now())

	if err := c.tracker.Init(ctx, crawlID, crawler.CrawlStatus{StartTime: item.StartTime}); err != nil {
		return fmt.Errorf("init crawl state: %w", err)
	}
	if err := c.gate.MarkSeed(ctx, crawlID, item.URL); err != nil {
		return fmt.Errorf("mark seed: %w", err)
	}

	if c.emitter != nil {
		c.emitter.Emit(progress.Event{
			CrawlID: crawlID,
			TS:      c.clock.Now(),
			Stage:   progress.StageCrawlStart,
			URL:     item.URL,
		})
	}

	c.logger.Info("starting crawl",
		zap.String("crawl_id", crawlID),
		zap.String("url", item.URL),
		zap.String("base_url", item.BaseURL),
		zap.Int("max_distance", item.MaxDistance),
		zap.Int("max_urls", item.MaxURLs),
	)

	if c.queue != nil {
		if err := c.queue.Enqueue(ctx, item); err != nil {
			return fmt.Errorf("enqueue seed: %w", err)
		}
		metrics.ObserveCrawlStarted()
		return nil
	}

	frontier := queuemem.NewQueue(c.queueCapacity)
	if err := frontier.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("enqueue seed: %w", err)
	}
	w := c.newWorker(frontier)
	go func() {
		// Detached from the request context: the crawl outlives the
		// HTTP call that started it.
		if err := w.Drain(context.Background()); err != nil {
			c.logger.Error("crawl ended with error",
				zap.String("crawl_id", crawlID),
				zap.Error(err),
			)
		}
	}()
	metrics.ObserveCrawlStarted()
	return nil
}

// GetStatus returns the crawl's current status record.
func (c *Coordinator) GetStatus(ctx context.Context, crawlID string) (crawler.CrawlStatus, error) {
	return c.tracker.GetStatus(ctx, crawlID)
}

func normalize(req crawler.CrawlRequest) crawler.CrawlRequest {
	if !strings.HasPrefix(req.URL, "http") {
		req.URL = "https://" + req.URL
	}
	if req.BaseURL == "" {
		req.BaseURL = req.URL
	}
	return req
}
