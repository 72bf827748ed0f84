package serp

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"github.com/FranksOps/serprank/internal/metrics"
	"github.com/FranksOps/serprank/pkg/ratelimit"
)

const defaultPageSize = 10

// PaginatorConfig holds per-query request options and pacing.
type PaginatorConfig struct {
	Location string
	Language string
	// Limiter paces provider calls; nil disables pacing.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Paginator turns repeated provider calls for one query into a lazy sequence
// of pages.
type Paginator struct {
	provider Provider
	query    string
	cfg      PaginatorConfig
}

// NewPaginator prepares pagination of query against provider. No request is
// made until Pages is ranged over.
func NewPaginator(provider Provider, query string, cfg PaginatorConfig) *Paginator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Paginator{provider: provider, query: query, cfg: cfg}
}

// Pages yields result pages in order until the provider returns an empty
// page or reports no more pages. Breaking out of the range stops further
// provider calls.
//
// A provider failure on the first page, or one caused by ctx ending, is
// yielded as (nil, err). A later failure ends the sequence: search providers
// first yield a single-item error page, maps providers end silently since they
// commonly fail at the natural end of results.
func (p *Paginator) Pages(ctx context.Context) iter.Seq2[*ResultPage, error] {
	return func(yield func(*ResultPage, error) bool) {
		name, mode := p.provider.Name(), p.provider.Mode()
		hasMore := true

		for page := 0; hasMore; page++ {
			if err := p.cfg.Limiter.Wait(ctx); err != nil {
				yield(nil, err)
				return
			}

			res, err := p.provider.Search(ctx, p.query, SearchOptions{
				Page:     page,
				Location: p.cfg.Location,
				Language: p.cfg.Language,
			})
			if err != nil {
				switch {
				case page == 0 || ctx.Err() != nil:
					yield(nil, err)
				case mode == ModeMaps:
					p.cfg.Logger.Debug("maps pagination ended on provider error",
						"provider", name, "query", p.query, "page", page+1, "err", err)
				default:
					p.cfg.Logger.Warn("pagination ended on provider error",
						"provider", name, "query", p.query, "page", page+1, "err", err)
					yield(p.errorPage(page, err), nil)
				}
				return
			}

			if res == nil || len(res.Items) == 0 {
				return
			}
			metrics.PagesFetchedTotal.WithLabelValues(name, string(mode)).Inc()
			p.cfg.Logger.Debug("page fetched",
				"provider", name, "query", p.query, "page", res.Page, "items", len(res.Items), "has_more", res.HasMorePages)

			if !yield(res, nil) {
				return
			}
			hasMore = res.HasMorePages
		}
	}
}

// errorPage builds the terminal page that surfaces a mid-pagination failure.
func (p *Paginator) errorPage(page int, err error) *ResultPage {
	size := defaultPageSize
	if s, ok := p.provider.(interface{ PageSize() int }); ok && s.PageSize() > 0 {
		size = s.PageSize()
	}
	msg := err.Error()
	return &ResultPage{
		Items: []SearchItem{{
			Title:    "Error fetching results",
			Position: page*size + 1,
			Query:    p.query,
			Page:     page + 1,
			Error:    msg,
		}},
		Query:     p.query,
		Page:      page + 1,
		Provider:  p.provider.Name(),
		Mode:      p.provider.Mode(),
		Timestamp: time.Now().UTC(),
		Error:     msg,
	}
}
