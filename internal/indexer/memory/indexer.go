// Package memory stores indexed documents in-memory for development and
// tests.
package memory

import (
	"context"
	"sync"

	"github.com/sitesearch/crawler/internal/crawler"
)

// Indexer collects documents in memory for inspection.
type Indexer struct {
	mu   sync.RWMutex
	docs []crawler.Document
}

// New returns a memory Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index appends the document.
func (ix *Indexer) Index(_ context.Context, doc crawler.Document) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = append(ix.docs, doc)
	return nil
}

// Documents returns a copy of everything indexed so far.
func (ix *Indexer) Documents() []crawler.Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]crawler.Document, len(ix.docs))
	copy(out, ix.docs)
	return out
}
