// Package postgres provides the Postgres-backed search index write path.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitesearch/crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for document rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Indexer writes search documents into Postgres.
type Indexer struct {
	pool  execCloser
	clock crawler.Clock
	table string
}

// New creates a Postgres-backed Indexer using the provided config.
func New(ctx context.Context, cfg Config, clock crawler.Clock) (*Indexer, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "search_documents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Indexer{pool: pool, clock: clock, table: table}, nil
}

// NewWithPool constructs an Indexer from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, clock crawler.Clock, table string) (*Indexer, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "search_documents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Indexer{pool: pool, clock: clock, table: table}, nil
}

// Close releases the underlying pool resources.
func (ix *Indexer) Close() {
	if ix == nil || ix.pool == nil {
		return
	}
	ix.pool.Close()
}

// Index inserts one document row.
func (ix *Indexer) Index(ctx context.Context, doc crawler.Document) error {
	if ix == nil || ix.pool == nil {
		return fmt.Errorf("indexer is not configured")
	}
	if doc.CrawlID == "" {
		return fmt.Errorf("document crawl id is required")
	}
	if doc.URL == "" {
		return fmt.Errorf("document url is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	crawl_id,
	url,
	base_url,
	distance,
	page_text,
	indexed_at
) VALUES ($1, $2, $3, $4, $5, $6)`, ix.table)

	_, err := ix.pool.Exec(ctx, query,
		doc.CrawlID,
		doc.URL,
		doc.BaseURL,
		doc.Distance,
		doc.Text,
		ix.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}
