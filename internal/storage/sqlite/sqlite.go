package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	_ "modernc.org/sqlite"
)

var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

// created_at is stored as unix nanoseconds so ordering and range filters
// compare numerically.
const schema = `
CREATE TABLE IF NOT EXISTS serp_records (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	query TEXT NOT NULL,
	page INTEGER NOT NULL DEFAULT 0,
	provider TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL DEFAULT '',
	items TEXT,
	domain TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	rank TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS serp_records_query_idx ON serp_records (query, kind);
CREATE INDEX IF NOT EXISTS serp_records_created_idx ON serp_records (created_at);
`

// New opens the SQLite database at dsn (a file path or modernc DSN) and
// ensures the schema exists.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *storage.Record) error {
	var items any
	if len(rec.Items) > 0 {
		data, err := json.Marshal(rec.Items)
		if err != nil {
			return fmt.Errorf("sqlite: encode items: %w", err)
		}
		items = string(data)
	}

	query := `
	INSERT INTO serp_records (
		id, kind, query, page, provider, mode, items, domain, link, title, rank, state, error, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.Kind),
		rec.Query,
		rec.Page,
		rec.Provider,
		string(rec.Mode),
		items,
		rec.Domain,
		rec.Link,
		rec.Title,
		rec.Rank.String(),
		rec.State,
		rec.Error,
		rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert %s: %w", rec.ID, err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, kind, query, page, provider, mode, items, domain, link, title, rank, state, error, created_at FROM serp_records WHERE 1=1`
	args := []any{}

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UnixNano())
	}

	query += ` ORDER BY created_at DESC`

	// SQLite only accepts OFFSET after LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	results := []*storage.Record{}
	for rows.Next() {
		var (
			r         storage.Record
			kind      string
			mode      string
			items     sql.NullString
			rank      string
			createdNs int64
		)
		err := rows.Scan(
			&r.ID, &kind, &r.Query, &r.Page, &r.Provider, &mode, &items,
			&r.Domain, &r.Link, &r.Title, &rank, &r.State, &r.Error, &createdNs,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}

		r.Kind = storage.Kind(kind)
		r.Mode = serp.Mode(mode)
		r.CreatedAt = time.Unix(0, createdNs).UTC()
		if r.Rank, err = serp.ParseRank(rank); err != nil {
			return nil, fmt.Errorf("sqlite: record %s: %w", r.ID, err)
		}
		if items.Valid && items.String != "" {
			if err := json.Unmarshal([]byte(items.String), &r.Items); err != nil {
				return nil, fmt.Errorf("sqlite: record %s items: %w", r.ID, err)
			}
		}

		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
