package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/FranksOps/serprank/internal/serp"
	"github.com/google/uuid"
)

// Kind distinguishes the records a run produces.
type Kind string

const (
	// KindPage is one result page persisted as-is (no domain hunting).
	KindPage Kind = "page"
	// KindDomain is the outcome of hunting one domain within one query.
	KindDomain Kind = "domain"
	// KindFailure is a query that produced no results because it failed.
	KindFailure Kind = "failure"
)

// Record is one persisted row.
type Record struct {
	ID       string            `json:"id"`
	Kind     Kind              `json:"kind"`
	Query    string            `json:"query"`
	Page     int               `json:"page,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Mode     serp.Mode         `json:"mode,omitempty"`
	Items    []serp.SearchItem `json:"items,omitempty"`

	// Domain records only, except State which empty-query page records
	// also carry.
	Domain string    `json:"domain,omitempty"`
	Link   string    `json:"link,omitempty"`
	Title  string    `json:"title,omitempty"`
	Rank   serp.Rank `json:"rank"`
	State  string    `json:"state,omitempty"`

	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalJSON writes domain records with explicit null link and title when
// the domain was not found, so every domain row has the same keys.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	if r.Kind != KindDomain {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		plain
		Link  *string `json:"link"`
		Title *string `json:"title"`
	}{
		plain: plain(r),
		Link:  nullable(r.Link),
		Title: nullable(r.Title),
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NewRecord returns a record with a fresh ID and the current UTC time.
func NewRecord(kind Kind, query string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Query:     query,
		CreatedAt: time.Now().UTC(),
	}
}

// Filter selects records. Zero fields match everything.
type Filter struct {
	Query  string
	Kind   Kind
	Domain string
	Since  *time.Time
	Limit  int
	Offset int
}

// Match reports whether r passes the non-paging parts of f.
func (f Filter) Match(r *Record) bool {
	if f.Query != "" && r.Query != f.Query {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Domain != "" && r.Domain != f.Domain {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page orders records newest first, given in insertion order, and applies
// f.Offset and f.Limit. File backends use it; SQL backends let the engine do it.
func (f Filter) Page(recs []*Record) []*Record {
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	if f.Offset > 0 {
		if f.Offset >= len(recs) {
			return []*Record{}
		}
		recs = recs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(recs) {
		recs = recs[:f.Limit]
	}
	return recs
}

// Backend stores and queries run records.
type Backend interface {
	Save(ctx context.Context, rec *Record) error
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}
