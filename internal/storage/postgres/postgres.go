package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS serp_records (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	query TEXT NOT NULL,
	page INTEGER NOT NULL DEFAULT 0,
	provider TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL DEFAULT '',
	items JSONB,
	domain TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	rank TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS serp_records_query_idx ON serp_records (query, kind);
CREATE INDEX IF NOT EXISTS serp_records_created_idx ON serp_records (created_at);
`

// New connects to Postgres and ensures the schema exists.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *storage.Record) error {
	var items []byte
	if len(rec.Items) > 0 {
		var err error
		if items, err = json.Marshal(rec.Items); err != nil {
			return fmt.Errorf("postgres: encode items: %w", err)
		}
	}

	query := `
	INSERT INTO serp_records (
		id, kind, query, page, provider, mode, items, domain, link, title, rank, state, error, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := b.pool.Exec(ctx, query,
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
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert %s: %w", rec.ID, err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, kind, query, page, provider, mode, items, domain, link, title, rank, state, error, created_at FROM serp_records WHERE 1=1`
	args := pgx.NamedArgs{}

	if filter.Query != "" {
		query += ` AND query = @query`
		args["query"] = filter.Query
	}
	if filter.Kind != "" {
		query += ` AND kind = @kind`
		args["kind"] = string(filter.Kind)
	}
	if filter.Domain != "" {
		query += ` AND domain = @domain`
		args["domain"] = filter.Domain
	}
	if filter.Since != nil {
		query += ` AND created_at >= @since`
		args["since"] = *filter.Since
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT @limit`
		args["limit"] = filter.Limit
	}
	if filter.Offset > 0 {
		query += ` OFFSET @offset`
		args["offset"] = filter.Offset
	}

	rows, err := b.pool.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	results := []*storage.Record{}
	for rows.Next() {
		var (
			r     storage.Record
			kind  string
			mode  string
			items []byte
			rank  string
		)
		err := rows.Scan(
			&r.ID, &kind, &r.Query, &r.Page, &r.Provider, &mode, &items,
			&r.Domain, &r.Link, &r.Title, &rank, &r.State, &r.Error, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}

		r.Kind = storage.Kind(kind)
		r.Mode = serp.Mode(mode)
		if r.Rank, err = serp.ParseRank(rank); err != nil {
			return nil, fmt.Errorf("postgres: record %s: %w", r.ID, err)
		}
		if len(items) > 0 {
			if err := json.Unmarshal(items, &r.Items); err != nil {
				return nil, fmt.Errorf("postgres: record %s items: %w", r.ID, err)
			}
		}

		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
