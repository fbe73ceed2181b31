package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitesearch/crawler/internal/crawler"
	"github.com/sitesearch/crawler/internal/hash/sha256"
	indexmem "github.com/sitesearch/crawler/internal/indexer/memory"
	queuemem "github.com/sitesearch/crawler/internal/queue/memory"
	"github.com/sitesearch/crawler/internal/state"
	statemem "github.com/sitesearch/crawler/internal/statestore/memory"
	"github.com/sitesearch/crawler/internal/worker"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]crawler.Page
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (crawler.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page, ok := f.pages[url]
	if !ok {
		return crawler.Page{}, fmt.Errorf("no page registered for %s", url)
	}
	return page, nil
}

func TestStartCrawlInProcessRunsToCompletion(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store := statemem.New()
	gate := state.NewGate(store)
	tracker := state.NewTracker(store, gate)
	indexer := indexmem.New()
	fetcher := &fakeFetcher{pages: map[string]crawler.Page{
		"https://site.test/": {
			Links: []string{"https://site.test/a"},
			Text:  "home",
			Body:  []byte("<html>home</html>"),
		},
	}}
	clock := fixedClock{now: now}
	factory := func(q crawler.Queue) *worker.Worker {
		return worker.New(q, gate, tracker, fetcher, indexer, nil, nil, nil, nil, sha256.New(), clock, worker.Config{}, zap.NewNop())
	}
	coord := NewInProcess(gate, tracker, clock, factory, 64, nil, zap.NewNop())

	err := coord.StartCrawl(context.Background(), "crawl-1", crawler.CrawlRequest{
		URL:           "https://site.test/",
		MaxDistance:   10,
		MaxURLs:       1,
		MaxTimeMillis: 60_000,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := coord.GetStatus(context.Background(), "crawl-1")
		return err == nil && status.StopReason == crawler.StopReasonMaxURLs
	}, 2*time.Second, 10*time.Millisecond)

	status, err := coord.GetStatus(context.Background(), "crawl-1")
	require.NoError(t, err)
	require.Equal(t, 1, status.NumPages)
	require.Equal(t, now.UnixMilli(), status.StartTime)
	require.Len(t, indexer.Documents(), 1)
}

func TestStartCrawlBrokeredEnqueuesSeed(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store := statemem.New()
	gate := state.NewGate(store)
	tracker := state.NewTracker(store, gate)
	queue := queuemem.NewQueue(8)
	coord := NewBrokered(gate, tracker, fixedClock{now: now}, queue, nil, zap.NewNop())

	err := coord.StartCrawl(context.Background(), "crawl-1", crawler.CrawlRequest{
		URL:           "site.test/start",
		MaxDistance:   2,
		MaxURLs:       50,
		MaxTimeMillis: 30_000,
	})
	require.NoError(t, err)

	item, err := queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "crawl-1", item.CrawlID)
	require.Equal(t, "https://site.test/start", item.URL)
	require.Equal(t, "https://site.test/start", item.BaseURL)
	require.Equal(t, 0, item.Distance)
	require.Equal(t, now.UnixMilli()+30_000, item.MaxTimeMillis)

	// The status record exists before any worker touches the crawl.
	status, err := coord.GetStatus(context.Background(), "crawl-1")
	require.NoError(t, err)
	require.Equal(t, 0, status.NumPages)
	require.Equal(t, crawler.StopReasonNone, status.StopReason)

	// The seed is already marked visited, so a worker discovering a
	// link back to it will not enqueue it again.
	fresh, err := gate.TryVisit(context.Background(), "crawl-1", "https://site.test/start")
	require.NoError(t, err)
	require.False(t, fresh)
}

func TestGetStatusUnknownCrawl(t *testing.T) {
	store := statemem.New()
	gate := state.NewGate(store)
	tracker := state.NewTracker(store, gate)
	coord := NewBrokered(gate, tracker, fixedClock{}, queuemem.NewQueue(1), nil, zap.NewNop())

	_, err := coord.GetStatus(context.Background(), "nope")
	require.ErrorIs(t, err, crawler.ErrStatusNotFound)
}
