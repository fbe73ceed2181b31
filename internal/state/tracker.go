package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sitesearch/crawler/internal/crawler"
)

// Tracker persists and reads the per-crawl status record. Writes are
// last-write-wins; reads never trust the persisted page count and overlay
// it from the live visited counter instead.
type Tracker struct {
	store crawler.StateStore
	gate  *Gate
}

// NewTracker constructs a Tracker.
func NewTracker(store crawler.StateStore, gate *Gate) *Tracker {
	return &Tracker{store: store, gate: gate}
}

// Init writes the initial status record for a fresh crawl and zeroes its
// visited counter.
func (t *Tracker) Init(ctx context.Context, crawlID string, status crawler.CrawlStatus) error {
	if err := t.SetStatus(ctx, crawlID, status); err != nil {
		return err
	}
	if err := t.store.Set(ctx, countKey(crawlID), "0"); err != nil {
		return fmt.Errorf("init visited count: %w", err)
	}
	return nil
}

// SetStatus overwrites the crawl's status record.
func (t *Tracker) SetStatus(ctx context.Context, crawlID string, status crawler.CrawlStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := t.store.Set(ctx, statusKey(crawlID), string(data)); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// GetStatus reads the crawl's status. It returns
// crawler.ErrStatusNotFound when no record has ever been written for the
// ID.
func (t *Tracker) GetStatus(ctx context.Context, crawlID string) (crawler.CrawlStatus, error) {
	raw, ok, err := t.store.Get(ctx, statusKey(crawlID))
	if err != nil {
		return crawler.CrawlStatus{}, fmt.Errorf("get status: %w", err)
	}
	if !ok {
		return crawler.CrawlStatus{}, crawler.ErrStatusNotFound
	}
	var status crawler.CrawlStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return crawler.CrawlStatus{}, fmt.Errorf("unmarshal status: %w", err)
	}
	count, err := t.gate.VisitedCount(ctx, crawlID)
	if err != nil {
		return crawler.CrawlStatus{}, err
	}
	status.NumPages = count
	return status, nil
}
