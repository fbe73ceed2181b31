package crawler

import (
	"errors"
	"fmt"
)

// ErrStatusNotFound is returned when no status record has ever been
// written for a crawl ID.
var ErrStatusNotFound = errors.New("crawl status not found")

// HTTPStatusError reports a recognized HTTP failure status (e.g. 404)
// while fetching a page. Such failures abandon the item without failing
// the crawl.
type HTTPStatusError struct {
	Code int
	URL  string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http error fetching url: status=%d url=%s", e.Code, e.URL)
}
