package state

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sitesearch/crawler/internal/crawler"
)

// Gate is the atomic check-and-mark operation deciding whether a
// discovered URL gets enqueued. Its single atomic primitive is what makes
// concurrent workers safe: two workers racing on the same URL cannot both
// win, and the visited counter reflects exactly the set of winners.
type Gate struct {
	store crawler.StateStore
}

// NewGate constructs a Gate over the shared state store.
func NewGate(store crawler.StateStore) *Gate {
	return &Gate{store: store}
}

// TryVisit marks (crawlID, url) visited. It returns true exactly once per
// distinct pair, across all workers, and increments the crawl's visited
// counter on that one winning call. There is no rollback: a URL that
// later fails to fetch stays marked for the rest of the crawl.
func (g *Gate) TryVisit(ctx context.Context, crawlID, url string) (bool, error) {
	ok, err := g.store.SetIfAbsent(ctx, visitKey(crawlID, url), "1")
	if err != nil {
		return false, fmt.Errorf("mark visited: %w", err)
	}
	if !ok {
		return false, nil
	}
	if _, err := g.store.Increment(ctx, countKey(crawlID), 1); err != nil {
		return false, fmt.Errorf("increment visited count: %w", err)
	}
	return true, nil
}

// MarkSeed records the seed URL as visited without touching the counter,
// so a page linking back to the seed cannot trigger a second fetch while
// the seed's own stop evaluation still sees a zero count.
func (g *Gate) MarkSeed(ctx context.Context, crawlID, url string) error {
	if _, err := g.store.SetIfAbsent(ctx, visitKey(crawlID, url), "1"); err != nil {
		return fmt.Errorf("mark seed visited: %w", err)
	}
	return nil
}

// ClaimFetch reserves the actual fetch of (crawlID, url) for the caller.
// The queue only promises at-least-once delivery; a redelivered item
// loses this claim and is discarded without a fetch. The counter is not
// touched.
func (g *Gate) ClaimFetch(ctx context.Context, crawlID, url string) (bool, error) {
	ok, err := g.store.SetIfAbsent(ctx, fetchKey(crawlID, url), "1")
	if err != nil {
		return false, fmt.Errorf("claim fetch: %w", err)
	}
	return ok, nil
}

// MarkFinished claims the crawl's terminal transition. Many queued items
// can observe the stop condition; only the first caller gets true, so
// completion side effects happen once per crawl.
func (g *Gate) MarkFinished(ctx context.Context, crawlID string) (bool, error) {
	ok, err := g.store.SetIfAbsent(ctx, doneKey(crawlID), "1")
	if err != nil {
		return false, fmt.Errorf("mark finished: %w", err)
	}
	return ok, nil
}

// VisitedCount reads the crawl's visited counter; a missing key reads as
// zero.
func (g *Gate) VisitedCount(ctx context.Context, crawlID string) (int, error) {
	raw, ok, err := g.store.Get(ctx, countKey(crawlID))
	if err != nil {
		return 0, fmt.Errorf("get visited count: %w", err)
	}
	if !ok {
		return 0, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse visited count %q: %w", raw, err)
	}
	return count, nil
}
