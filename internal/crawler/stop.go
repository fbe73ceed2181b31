package crawler

import "time"

// EvaluateStop maps an item and the crawl's current visited count to a
// stop reason, checking in fixed order: distance, then volume, then time.
// An item at distance == maxDistance is still fetched; only the next
// generation, at maxDistance+1, is refused, so leaves at the hop limit
// are indexed but their children are not discovered.
func EvaluateStop(item WorkItem, visitedCount int, now time.Time) StopReason {
	if item.Distance == item.MaxDistance+1 {
		return StopReasonMaxDistance
	}
	if visitedCount >= item.MaxURLs {
		return StopReasonMaxURLs
	}
	if now.UnixMilli() >= item.MaxTimeMillis {
		return StopReasonTimeout
	}
	return StopReasonNone
}
