package crawler

import (
	"context"
	"time"
)

// StateStore is the shared key-value store coordinating workers. All
// cross-worker safety reduces to SetIfAbsent plus Increment; both must be
// atomic single round-trips.
type StateStore interface {
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Queue carries work items between producers and crawl workers.
// Implementations need at-least-once delivery; the dedup gate converts
// that into at-most-once fetching.
type Queue interface {
	Enqueue(ctx context.Context, item WorkItem) error
	Dequeue(ctx context.Context) (WorkItem, error)
}

// DrainableQueue extends Queue with an emptiness check, which the
// in-process run-to-completion loop polls between items.
type DrainableQueue interface {
	Queue
	IsEmpty() bool
}

// Fetcher retrieves a page and extracts its links and visible text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Indexer persists a document for later query.
type Indexer interface {
	Index(ctx context.Context, doc Document) error
}

// ArchiveStore writes raw page artifacts and returns a URI.
type ArchiveStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Notifier publishes crawl lifecycle messages for downstream pipelines.
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// FetchLimiter throttles outbound fetches per host.
type FetchLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests for archive paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces opaque crawl IDs.
type IDGenerator interface {
	NewID() (string, error)
}
