// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
)

// Fixtures returns a page record, a found domain record, a not-found domain
// record and a failure record, oldest first.
func Fixtures(now time.Time) []*storage.Record {
	page := &storage.Record{
		ID:       "rec-page",
		Kind:     storage.KindPage,
		Query:    "coffee",
		Page:     1,
		Provider: "serper",
		Mode:     serp.ModeSearch,
		Items: []serp.SearchItem{
			{Title: "Blue Bottle", Snippet: "Coffee, roasted", Link: "https://bluebottlecoffee.com/", Position: 1, Query: "coffee", Page: 1},
			{Title: "Err", Link: "", Position: 2, Query: "coffee", Page: 1, Error: "boom"},
		},
		CreatedAt: now.Add(-4 * time.Hour),
	}
	found := &storage.Record{
		ID:        "rec-found",
		Kind:      storage.KindDomain,
		Query:     "test",
		Provider:  "serper",
		Mode:      serp.ModeSearch,
		Domain:    "example.com",
		Link:      "https://sub.example.com/x",
		Title:     "Sub",
		Rank:      serp.RankAt(5),
		State:     "found",
		CreatedAt: now.Add(-3 * time.Hour),
	}
	missing := &storage.Record{
		ID:        "rec-missing",
		Kind:      storage.KindDomain,
		Query:     "test",
		Provider:  "serper",
		Mode:      serp.ModeSearch,
		Domain:    "other.org",
		Rank:      serp.RankBeyond(30),
		State:     "exhausted",
		CreatedAt: now.Add(-2 * time.Hour),
	}
	failure := &storage.Record{
		ID:        "rec-failure",
		Kind:      storage.KindFailure,
		Query:     "broken",
		Provider:  "serper",
		Mode:      serp.ModeSearch,
		State:     "errored",
		Error:     "serper: query \"broken\" page 0 failed after 3 attempt(s): boom",
		CreatedAt: now.Add(-1 * time.Hour),
	}
	return []*storage.Record{page, found, missing, failure}
}

// Exercise saves the fixtures into b and checks filtering, ordering, paging
// and field round trips.
func Exercise(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	recs := Fixtures(now)
	for _, r := range recs {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != len(recs) {
		t.Fatalf("expected %d records, got %d", len(recs), len(all))
	}
	if all[0].ID != "rec-failure" || all[len(all)-1].ID != "rec-page" {
		t.Errorf("expected newest first, got %s ... %s", all[0].ID, all[len(all)-1].ID)
	}

	byID := map[string]*storage.Record{}
	for _, r := range all {
		byID[r.ID] = r
	}

	page := byID["rec-page"]
	if page == nil || len(page.Items) != 2 || page.Items[0].Link != "https://bluebottlecoffee.com/" || page.Items[1].Error != "boom" {
		t.Errorf("page record items did not round trip: %+v", page)
	}
	if page != nil && (page.Page != 1 || page.Mode != serp.ModeSearch || !page.Rank.IsZero()) {
		t.Errorf("page record fields did not round trip: %+v", page)
	}

	found := byID["rec-found"]
	if found == nil || found.Rank != serp.RankAt(5) || found.Link != "https://sub.example.com/x" || found.State != "found" {
		t.Errorf("found record did not round trip: %+v", found)
	}
	missing := byID["rec-missing"]
	if missing == nil || missing.Rank != serp.RankBeyond(30) {
		t.Errorf("sentinel rank did not round trip: %+v", missing)
	}
	failure := byID["rec-failure"]
	if failure == nil || failure.Error == "" || failure.Kind != storage.KindFailure {
		t.Errorf("failure record did not round trip: %+v", failure)
	}
	if found != nil && !found.CreatedAt.Equal(now.Add(-3*time.Hour)) {
		t.Errorf("created_at did not round trip: got %v want %v", found.CreatedAt, now.Add(-3*time.Hour))
	}

	check := func(name string, f storage.Filter, wantIDs ...string) {
		t.Helper()
		got, err := b.Query(ctx, f)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(got) != len(wantIDs) {
			t.Fatalf("%s: expected %d records, got %d", name, len(wantIDs), len(got))
		}
		for i, id := range wantIDs {
			if got[i].ID != id {
				t.Errorf("%s: position %d expected %s, got %s", name, i, id, got[i].ID)
			}
		}
	}

	since := now.Add(-150 * time.Minute)
	check("query", storage.Filter{Query: "test"}, "rec-missing", "rec-found")
	check("kind", storage.Filter{Kind: storage.KindDomain}, "rec-missing", "rec-found")
	check("domain", storage.Filter{Domain: "example.com"}, "rec-found")
	check("since", storage.Filter{Since: &since}, "rec-failure", "rec-missing")
	check("limit", storage.Filter{Limit: 1}, "rec-failure")
	check("offset", storage.Filter{Offset: 1, Limit: 2}, "rec-missing", "rec-found")
	check("offset past end", storage.Filter{Offset: 10})
}
