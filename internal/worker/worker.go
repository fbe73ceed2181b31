// Package worker implements the crawl control loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sitesearch/crawler/internal/crawler"
	"github.com/sitesearch/crawler/internal/metrics"
	"github.com/sitesearch/crawler/internal/progress"
	"github.com/sitesearch/crawler/internal/state"
)

// Config controls Worker behavior.
type Config struct {
	ArchiveContentType string
	ArchivePrefix      string
	NotifyTopic        string
}

// Worker consumes work items and executes the per-item crawl pipeline:
// evaluate the stop condition, persist status, fetch, archive, index,
// gate discovered links and enqueue the survivors one hop deeper.
type Worker struct {
	queue    crawler.Queue
	gate     *state.Gate
	tracker  *state.Tracker
	fetcher  crawler.Fetcher
	indexer  crawler.Indexer
	archive  crawler.ArchiveStore
	notifier crawler.Notifier
	limiter  crawler.FetchLimiter
	emitter  progress.Emitter
	hasher   crawler.Hasher
	clock    crawler.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. The archive store, notifier, limiter and
// emitter are optional; everything else is required.
func New(
	queue crawler.Queue,
	gate *state.Gate,
	tracker *state.Tracker,
	fetcher crawler.Fetcher,
	indexer crawler.Indexer,
	archive crawler.ArchiveStore,
	notifier crawler.Notifier,
	limiter crawler.FetchLimiter,
	emitter progress.Emitter,
	hasher crawler.Hasher,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ArchiveContentType == "" {
		cfg.ArchiveContentType = "text/html; charset=utf-8"
	}
	return &Worker{
		queue:    queue,
		gate:     gate,
		tracker:  tracker,
		fetcher:  fetcher,
		indexer:  indexer,
		archive:  archive,
		notifier: notifier,
		limiter:  limiter,
		emitter:  emitter,
		hasher:   hasher,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// dequeueRetryDelay paces the consumer loop when the queue itself is
// failing, so a persistent error does not become a hot logging loop.
const dequeueRetryDelay = time.Second

// Run blocks, consuming queue items until the context finishes. Per-item
// failures are logged and skipped so one bad item cannot kill the
// consumer; this is the broker-backed discipline where items for many
// crawls interleave on one queue.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueRetryDelay):
			}
			continue
		}
		if _, err := w.Process(ctx, item); err != nil {
			w.logger.Error("process item failed",
				zap.String("crawl_id", item.CrawlID),
				zap.String("url", item.URL),
				zap.Error(err),
			)
		}
	}
}

// Drain runs the in-process discipline: process items until the queue
// empties or a stop condition fires. The worker's queue must support
// emptiness checks. Unexpected failures end the drain and surface to the
// caller; the crawl is left in whatever status was last persisted.
func (w *Worker) Drain(ctx context.Context) error {
	q, ok := w.queue.(crawler.DrainableQueue)
	if !ok {
		return errors.New("queue does not support draining")
	}
	for !q.IsEmpty() {
		item, err := q.Dequeue(ctx)
		if err != nil {
			return fmt.Errorf("dequeue: %w", err)
		}
		reason, err := w.Process(ctx, item)
		if err != nil {
			return err
		}
		if reason != crawler.StopReasonNone {
			return nil
		}
	}
	return nil
}

// Process handles one work item and reports the stop reason that was
// persisted for it. The status write happens before any fetch attempt,
// so a poller always sees the distance currently being worked on.
func (w *Worker) Process(ctx context.Context, item crawler.WorkItem) (crawler.StopReason, error) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	w.logger.Info("crawling url",
		zap.String("crawl_id", item.CrawlID),
		zap.String("url", item.URL),
		zap.Int("distance", item.Distance),
	)

	count, err := w.gate.VisitedCount(ctx, item.CrawlID)
	if err != nil {
		return crawler.StopReasonNone, fmt.Errorf("read visited count: %w", err)
	}
	now := w.clock.Now()
	reason := crawler.EvaluateStop(item, count, now)

	status := crawler.CrawlStatus{
		Distance:   item.Distance,
		StartTime:  item.StartTime,
		NumPages:   count,
		StopReason: reason,
	}
	if err := w.tracker.SetStatus(ctx, item.CrawlID, status); err != nil {
		return reason, fmt.Errorf("persist status: %w", err)
	}

	if reason != crawler.StopReasonNone {
		return reason, w.finishCrawl(ctx, item, reason, count, now)
	}

	claimed, err := w.gate.ClaimFetch(ctx, item.CrawlID, item.URL)
	if err != nil {
		return crawler.StopReasonNone, fmt.Errorf("claim fetch: %w", err)
	}
	if !claimed {
		// Redelivered item; its fetch already happened elsewhere.
		w.logger.Debug("skipping redelivered item",
			zap.String("crawl_id", item.CrawlID),
			zap.String("url", item.URL),
		)
		metrics.ObservePage("redelivered")
		return crawler.StopReasonNone, nil
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, item.URL); err != nil {
			return crawler.StopReasonNone, fmt.Errorf("rate limit %s: %w", item.URL, err)
		}
	}

	fetchStart := w.clock.Now()
	page, err := w.fetcher.Fetch(ctx, item.URL)
	fetchDur := w.clock.Now().Sub(fetchStart)
	if err != nil {
		var httpErr *crawler.HTTPStatusError
		if errors.As(err, &httpErr) {
			// A bad HTTP status abandons this item only; the crawl
			// goes on and the URL is not retried.
			w.logger.Error("http error fetching url",
				zap.String("crawl_id", item.CrawlID),
				zap.Int("status", httpErr.Code),
				zap.String("url", httpErr.URL),
			)
			metrics.ObservePage("http_error")
			w.emit(progress.Event{
				CrawlID:     item.CrawlID,
				TS:          w.clock.Now(),
				Stage:       progress.StageFetchError,
				Site:        siteOf(item.URL),
				URL:         item.URL,
				Distance:    item.Distance,
				StatusClass: progress.ClassifyStatus(httpErr.Code),
				Dur:         fetchDur,
			})
			return crawler.StopReasonNone, nil
		}
		metrics.ObservePage("error")
		return crawler.StopReasonNone, fmt.Errorf("fetch %s: %w", item.URL, err)
	}

	w.emit(progress.Event{
		CrawlID:     item.CrawlID,
		TS:          w.clock.Now(),
		Stage:       progress.StageFetchDone,
		Site:        siteOf(item.URL),
		URL:         item.URL,
		Distance:    item.Distance,
		Bytes:       int64(len(page.Body)),
		StatusClass: progress.ClassifyStatus(page.StatusCode),
		Dur:         fetchDur,
	})

	if err := w.archivePage(ctx, item, page); err != nil {
		metrics.ObservePage("error")
		return crawler.StopReasonNone, err
	}

	doc := crawler.Document{
		CrawlID:  item.CrawlID,
		URL:      item.URL,
		BaseURL:  item.BaseURL,
		Distance: item.Distance,
		Text:     page.Text,
	}
	if err := w.indexer.Index(ctx, doc); err != nil {
		metrics.ObservePage("error")
		return crawler.StopReasonNone, fmt.Errorf("index %s: %w", item.URL, err)
	}

	if err := w.enqueueDiscovered(ctx, item, page); err != nil {
		metrics.ObservePage("error")
		return crawler.StopReasonNone, err
	}

	metrics.ObservePage("ok")
	return crawler.StopReasonNone, nil
}

// finishCrawl performs the once-per-crawl completion side effects. Every
// queued item observing the stop condition lands here; the gate ensures
// only the first one notifies downstream.
func (w *Worker) finishCrawl(ctx context.Context, item crawler.WorkItem, reason crawler.StopReason, count int, now time.Time) error {
	first, err := w.gate.MarkFinished(ctx, item.CrawlID)
	if err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	if !first {
		return nil
	}

	runtimeMillis := now.UnixMilli() - item.StartTime
	w.logger.Info("stop condition reached",
		zap.String("crawl_id", item.CrawlID),
		zap.String("reason", string(reason)),
		zap.Int("distance", item.Distance),
		zap.Int("visited_count", count),
		zap.Int64("runtime_ms", runtimeMillis),
	)
	metrics.ObserveStop(string(reason))
	w.emit(progress.Event{
		CrawlID:    item.CrawlID,
		TS:         now,
		Stage:      progress.StageCrawlStop,
		StopReason: string(reason),
		Dur:        time.Duration(runtimeMillis) * time.Millisecond,
	})

	if w.notifier != nil {
		notice := crawler.CrawlFinished{
			CrawlID:        item.CrawlID,
			BaseURL:        item.BaseURL,
			StopReason:     reason,
			NumPages:       count,
			DurationMillis: runtimeMillis,
		}
		if _, err := w.notifier.Publish(ctx, w.cfg.NotifyTopic, notice); err != nil {
			// Completion is already persisted; losing the notification
			// must not fail the item.
			w.logger.Error("publish crawl finished failed",
				zap.String("crawl_id", item.CrawlID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (w *Worker) enqueueDiscovered(ctx context.Context, item crawler.WorkItem, page crawler.Page) error {
	links := crawler.FilterInScope(page.Links, item.BaseURL)
	w.logger.Info("extracted links",
		zap.String("crawl_id", item.CrawlID),
		zap.Int("total", len(page.Links)),
		zap.Int("in_scope", len(links)),
		zap.Int("next_distance", item.Distance+1),
	)
	for _, link := range links {
		fresh, err := w.gate.TryVisit(ctx, item.CrawlID, link)
		if err != nil {
			return fmt.Errorf("dedup gate for %s: %w", link, err)
		}
		if !fresh {
			continue
		}
		if err := w.queue.Enqueue(ctx, item.Derive(link)); err != nil {
			return fmt.Errorf("enqueue %s: %w", link, err)
		}
		metrics.ObserveEnqueued()
	}
	return nil
}

func (w *Worker) archivePage(ctx context.Context, item crawler.WorkItem, page crawler.Page) error {
	if w.archive == nil {
		return nil
	}
	hash, err := w.hasher.Hash(page.Body)
	if err != nil {
		return fmt.Errorf("hash body: %w", err)
	}
	path := w.buildArchivePath(item.CrawlID, hash)
	uri, err := w.archive.PutObject(ctx, path, w.cfg.ArchiveContentType, page.Body)
	if err != nil {
		return fmt.Errorf("archive page: %w", err)
	}
	w.logger.Debug("page archived",
		zap.String("crawl_id", item.CrawlID),
		zap.String("url", item.URL),
		zap.String("uri", uri),
	)
	return nil
}

func (w *Worker) buildArchivePath(crawlID, hash string) string {
	if w.cfg.ArchivePrefix == "" {
		return fmt.Sprintf("%s/%s.html", crawlID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.html", w.cfg.ArchivePrefix, crawlID, hash)
}

func (w *Worker) emit(evt progress.Event) {
	if w.emitter == nil {
		return
	}
	w.emitter.Emit(evt)
}

func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
