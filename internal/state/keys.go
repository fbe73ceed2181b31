// Package state implements crawl bookkeeping against the shared state
// store: the atomic dedup gate and the status tracker.
package state

import "fmt"

// Key scheme per crawl: a serialized status record, one visited counter,
// and one marker key per visited URL.
func statusKey(crawlID string) string {
	return crawlID + ".status"
}

func countKey(crawlID string) string {
	return crawlID + ".urls.count"
}

func visitKey(crawlID, url string) string {
	return fmt.Sprintf("%s.urls.%s", crawlID, url)
}

func fetchKey(crawlID, url string) string {
	return fmt.Sprintf("%s.fetched.%s", crawlID, url)
}

func doneKey(crawlID string) string {
	return crawlID + ".done"
}
