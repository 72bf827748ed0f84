// Package pipeline runs a batch of queries through a provider, hunting for
// target domains in the ranked results and persisting one terminal outcome
// per query.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/serprank/internal/analyzer"
	"github.com/FranksOps/serprank/internal/metrics"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/FranksOps/serprank/pkg/ratelimit"
)

// Query states.
const (
	StateScanning  = "scanning"
	StateFound     = "found"
	StateExhausted = "exhausted"
	StateCompleted = "completed"
	StateErrored   = "errored"
)

// Checkpoint is notified after each query completes so an interrupted batch
// can resume.
type Checkpoint interface {
	// Resume returns the index of the first query still to run.
	Resume(ctx context.Context) (int, error)
	// Save records that every query before next has completed.
	Save(ctx context.Context, next int) error
	// Clear is called once the whole batch has completed.
	Clear(ctx context.Context) error
}

// Config wires a Pipeline.
type Config struct {
	Provider serp.Provider
	Backend  storage.Backend
	// Checkpoint is optional.
	Checkpoint Checkpoint
	Logger     *slog.Logger

	// Domains to hunt for. Empty means every page is persisted as-is.
	Domains []string
	// MaxResults is the per-query result budget; 0 means unlimited.
	MaxResults int
	Location   string
	Language   string
	// PageDelay is the minimum spacing between provider calls.
	PageDelay time.Duration
}

// QuerySummary is the outcome of hunting one domain within one query.
type QuerySummary struct {
	Keyword   string
	Domain    string
	Link      string
	Title     string
	Rank      serp.Rank
	Tier      analyzer.Tier
	State     string
	Error     string
	Timestamp time.Time
}

// Stats accumulates over every query a Pipeline has run.
type Stats struct {
	Queries         int
	Pages           int
	Results         int
	Found           int
	NotFound        int
	Failures        int
	StorageFailures int
}

// Pipeline processes queries strictly one at a time.
type Pipeline struct {
	cfg     Config
	targets []analyzer.Target
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	stats   Stats
}

// New validates cfg and returns a Pipeline. Domains are normalized and
// deduplicated; blank entries are dropped.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Provider == nil {
		return nil, &serp.ConfigError{Field: "provider", Msg: "not configured"}
	}
	if cfg.Backend == nil {
		return nil, &serp.ConfigError{Field: "output.backend", Msg: "not configured"}
	}
	if cfg.MaxResults < 0 {
		return nil, &serp.ConfigError{Field: "max_results", Msg: "must not be negative"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]bool)
	var targets []analyzer.Target
	for _, d := range cfg.Domains {
		t := analyzer.NewTarget(d)
		if t.Domain == "" || seen[t.Domain] {
			continue
		}
		seen[t.Domain] = true
		targets = append(targets, t)
	}

	return &Pipeline{
		cfg:     cfg,
		targets: targets,
		limiter: ratelimit.Every(cfg.PageDelay, 0),
		logger:  logger,
	}, nil
}

// Stats returns the counters accumulated so far.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Run processes queries in order, resuming from the checkpoint when one is
// configured. A failing query is recorded and the batch moves on; only ctx
// ending stops Run early, in which case the checkpoint still points at the
// interrupted query.
func (p *Pipeline) Run(ctx context.Context, queries []string) (Stats, error) {
	start := 0
	if p.cfg.Checkpoint != nil {
		next, err := p.cfg.Checkpoint.Resume(ctx)
		if err != nil {
			return p.stats, err
		}
		start = min(max(next, 0), len(queries))
		if start > 0 {
			p.logger.Info("resuming batch", "skipped", start, "remaining", len(queries)-start)
		}
	}

	for i := start; i < len(queries); i++ {
		q := strings.TrimSpace(queries[i])
		if q != "" {
			if _, err := p.RunQuery(ctx, q); err != nil && ctx.Err() != nil {
				return p.stats, ctx.Err()
			}
		}

		if p.cfg.Checkpoint != nil {
			if err := p.cfg.Checkpoint.Save(ctx, i+1); err != nil {
				p.logger.Warn("failed to save checkpoint", "next", i+1, "err", err)
			}
		}
	}

	if p.cfg.Checkpoint != nil {
		if err := p.cfg.Checkpoint.Clear(ctx); err != nil {
			p.logger.Warn("failed to clear checkpoint", "err", err)
		}
	}

	p.logger.Info("batch finished",
		"queries", p.stats.Queries,
		"pages", p.stats.Pages,
		"results", p.stats.Results,
		"found", p.stats.Found,
		"not_found", p.stats.NotFound,
		"failures", p.stats.Failures,
	)
	return p.stats, nil
}

// RunQuery paginates one query to its terminal state and persists the
// outcome. In domain mode it returns one summary per target; otherwise the
// summaries are empty and every page is persisted as it arrives.
//
// The returned error is the failure that ended the query, if any. It has
// already been recorded; callers only need it to tell ctx cancellation apart.
func (p *Pipeline) RunQuery(ctx context.Context, query string) ([]QuerySummary, error) {
	paginator := serp.NewPaginator(p.cfg.Provider, query, serp.PaginatorConfig{
		Location: p.cfg.Location,
		Language: p.cfg.Language,
		Limiter:  p.limiter,
		Logger:   p.logger,
	})

	var (
		state   = StateScanning
		total   int
		pages   int
		lastErr error
		matches = make([]*analyzer.MatchResult, len(p.targets))
		found   int
	)

	for page, err := range paginator.Pages(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			state, lastErr = StateErrored, err
			break
		}
		pages++

		if page.Error != "" {
			state, lastErr = StateErrored, errors.New(page.Error)
			if len(p.targets) == 0 {
				p.savePage(ctx, page)
			}
			break
		}
		total += len(page.Items)

		if len(p.targets) == 0 {
			p.savePage(ctx, page)
		} else {
			for i, t := range p.targets {
				if matches[i] != nil {
					continue
				}
				if m, ok := analyzer.FirstMatch(page.Items, t); ok {
					matches[i] = &m
					found++
					metrics.DomainMatchesTotal.WithLabelValues(m.Tier.String()).Inc()
					p.logger.Debug("domain matched",
						"query", query, "domain", t.Domain, "position", m.Position, "tier", m.Tier.String())
				}
			}
			if found == len(p.targets) {
				state = StateFound
				break
			}
		}

		if p.cfg.MaxResults > 0 && total >= p.cfg.MaxResults {
			state = StateExhausted
			break
		}
	}
	if state == StateScanning {
		state = StateCompleted
	}

	p.stats.Queries++
	p.stats.Pages += pages
	p.stats.Results += total
	if state == StateErrored {
		p.stats.Failures++
	}
	metrics.QueryOutcomesTotal.WithLabelValues(state).Inc()

	logArgs := []any{"query", query, "state", state, "pages", pages, "results", total}
	if lastErr != nil {
		p.logger.Error("query failed", append(logArgs, "err", lastErr)...)
	} else {
		p.logger.Info("query finished", logArgs...)
	}

	if len(p.targets) == 0 {
		if pages == 0 {
			if state == StateErrored {
				p.saveFailure(ctx, query, lastErr)
			} else {
				p.saveEmpty(ctx, query, state)
			}
		}
		return nil, lastErr
	}

	summaries := p.finalize(query, state, total, matches, lastErr)
	for _, s := range summaries {
		if s.Rank.Found() {
			p.stats.Found++
		} else {
			p.stats.NotFound++
		}
		p.saveSummary(ctx, s)
	}
	return summaries, lastErr
}

// finalize builds one summary per target. A target that was never matched
// ranks as beyond the budget when the scan exhausted the budget, failed, or
// saw no results at all; otherwise its rank is undetermined.
func (p *Pipeline) finalize(query, state string, total int, matches []*analyzer.MatchResult, runErr error) []QuerySummary {
	now := time.Now().UTC()
	out := make([]QuerySummary, 0, len(p.targets))

	for i, t := range p.targets {
		s := QuerySummary{
			Keyword:   query,
			Domain:    t.Domain,
			Timestamp: now,
		}
		if m := matches[i]; m != nil {
			s.Link = m.Link
			s.Title = m.Title
			s.Rank = serp.RankAt(m.Position)
			s.Tier = m.Tier
			s.State = StateFound
			out = append(out, s)
			continue
		}

		s.State = state
		switch {
		case state == StateErrored, state == StateExhausted:
			s.Rank = serp.RankBeyond(p.cfg.MaxResults)
		case total == 0:
			s.Rank = serp.RankBeyond(p.cfg.MaxResults)
		}
		if runErr != nil {
			s.Error = runErr.Error()
		}
		out = append(out, s)
	}
	return out
}

func (p *Pipeline) savePage(ctx context.Context, page *serp.ResultPage) {
	rec := storage.NewRecord(storage.KindPage, page.Query)
	rec.Page = page.Page
	rec.Provider = page.Provider
	rec.Mode = page.Mode
	rec.Items = page.Items
	rec.Error = page.Error
	if !page.Timestamp.IsZero() {
		rec.CreatedAt = page.Timestamp
	}
	p.save(ctx, rec)
}

// saveEmpty records a query that ended without yielding a single page, so
// it still leaves a row behind.
func (p *Pipeline) saveEmpty(ctx context.Context, query, state string) {
	rec := storage.NewRecord(storage.KindPage, query)
	rec.Page = 1
	rec.Provider = p.cfg.Provider.Name()
	rec.Mode = p.cfg.Provider.Mode()
	rec.Items = []serp.SearchItem{}
	rec.State = state
	p.save(ctx, rec)
}

func (p *Pipeline) saveSummary(ctx context.Context, s QuerySummary) {
	rec := storage.NewRecord(storage.KindDomain, s.Keyword)
	rec.Provider = p.cfg.Provider.Name()
	rec.Mode = p.cfg.Provider.Mode()
	rec.Domain = s.Domain
	rec.Link = s.Link
	rec.Title = s.Title
	rec.Rank = s.Rank
	rec.State = s.State
	rec.Error = s.Error
	rec.CreatedAt = s.Timestamp
	p.save(ctx, rec)
}

func (p *Pipeline) saveFailure(ctx context.Context, query string, err error) {
	rec := storage.NewRecord(storage.KindFailure, query)
	rec.Provider = p.cfg.Provider.Name()
	rec.Mode = p.cfg.Provider.Mode()
	rec.State = StateErrored
	if err != nil {
		rec.Error = err.Error()
	}
	p.save(ctx, rec)
}

func (p *Pipeline) save(ctx context.Context, rec *storage.Record) {
	if err := p.cfg.Backend.Save(ctx, rec); err != nil {
		p.stats.StorageFailures++
		metrics.StorageFailuresTotal.WithLabelValues(string(rec.Kind)).Inc()
		p.logger.Error("failed to save record", "kind", rec.Kind, "query", rec.Query, "err", err)
	}
}
