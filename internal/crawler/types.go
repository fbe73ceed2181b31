// Package crawler defines core types shared across subsystems.
package crawler

import "time"

// StopReason names the terminal condition that ends a crawl. The empty
// value means the crawl may continue and is never persisted as terminal.
type StopReason string

// Stop reason values persisted in the crawl status record.
const (
	StopReasonNone        StopReason = ""
	StopReasonMaxDistance StopReason = "maxDistance"
	StopReasonMaxURLs     StopReason = "maxUrls"
	StopReasonTimeout     StopReason = "timeout"
)

// CrawlRequest captures the client's crawl parameters. MaxTimeMillis is a
// relative wall-clock budget; it becomes an absolute deadline when the
// crawl starts. Immutable once a crawl is running.
type CrawlRequest struct {
	URL           string `json:"url"`
	BaseURL       string `json:"base_url"`
	MaxDistance   int    `json:"max_distance"`
	MaxURLs       int    `json:"max_urls"`
	MaxTimeMillis int64  `json:"max_time_millis"`
}

// WorkItem is one queued unit of work: visit this URL at this distance
// under these limits. MaxTimeMillis and StartTime are absolute epoch
// millis fixed at crawl start and carried on every derived item.
type WorkItem struct {
	CrawlID       string `json:"crawl_id"`
	URL           string `json:"url"`
	BaseURL       string `json:"base_url"`
	Distance      int    `json:"distance"`
	MaxDistance   int    `json:"max_distance"`
	MaxURLs       int    `json:"max_urls"`
	MaxTimeMillis int64  `json:"max_time_millis"`
	StartTime     int64  `json:"start_time"`
}

// NewSeedItem builds the distance-zero item for a crawl, resolving the
// request's relative time budget against the crawl start.
func NewSeedItem(crawlID string, req CrawlRequest, start time.Time) WorkItem {
	return WorkItem{
		CrawlID:       crawlID,
		URL:           req.URL,
		BaseURL:       req.BaseURL,
		Distance:      0,
		MaxDistance:   req.MaxDistance,
		MaxURLs:       req.MaxURLs,
		MaxTimeMillis: start.UnixMilli() + req.MaxTimeMillis,
		StartTime:     start.UnixMilli(),
	}
}

// Derive returns a child item for a discovered URL, one hop deeper. All
// other fields are copied from the parent.
func (i WorkItem) Derive(url string) WorkItem {
	child := i
	child.URL = url
	child.Distance = i.Distance + 1
	return child
}

// CrawlStatus is the per-crawl record exposed to pollers. NumPages is
// never trusted from the persisted record; the tracker overlays it from
// the authoritative visited counter at read time.
type CrawlStatus struct {
	Distance   int        `json:"distance"`
	StartTime  int64      `json:"start_time"`
	NumPages   int        `json:"num_pages"`
	StopReason StopReason `json:"stop_reason,omitempty"`
}

// CrawlFinished is the completion notification published once per crawl
// when the first worker observes its stop condition.
type CrawlFinished struct {
	CrawlID        string     `json:"crawl_id"`
	BaseURL        string     `json:"base_url"`
	StopReason     StopReason `json:"stop_reason"`
	NumPages       int        `json:"num_pages"`
	DurationMillis int64      `json:"duration_millis"`
}

// Page is the result of fetching one URL: its outbound links in document
// order, the visible anchor text, and the raw body for archiving.
type Page struct {
	URL        string
	StatusCode int
	Links      []string
	Text       string
	Body       []byte
}

// Document is one entry handed to the search index write path.
type Document struct {
	CrawlID  string `json:"crawl_id"`
	URL      string `json:"url"`
	BaseURL  string `json:"base_url"`
	Distance int    `json:"distance"`
	Text     string `json:"text"`
}
