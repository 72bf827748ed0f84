package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
)

func TestGenerateSummary(t *testing.T) {
	now := time.Now()

	records := []*storage.Record{
		{
			Kind:     storage.KindPage,
			Query:    "coffee",
			Provider: "serper",
			Items: []serp.SearchItem{
				{Link: "https://a.com", Position: 1},
				{Link: "https://b.com", Position: 2},
			},
			CreatedAt: now,
		},
		{
			Kind:      storage.KindPage,
			Query:     "coffee",
			Provider:  "serper",
			Items:     []serp.SearchItem{{Title: "Error fetching results", Position: 11, Error: "boom"}},
			Error:     "boom",
			CreatedAt: now.Add(1 * time.Second),
		},
		{
			Kind:      storage.KindDomain,
			Query:     "tea",
			Domain:    "zeta.com",
			Rank:      serp.RankBeyond(30),
			State:     "exhausted",
			CreatedAt: now.Add(1 * time.Second),
		},
		{
			Kind:      storage.KindDomain,
			Query:     "tea",
			Domain:    "alpha.com",
			Link:      "https://alpha.com/tea",
			Rank:      serp.RankAt(4),
			State:     "found",
			CreatedAt: now.Add(1 * time.Second),
		},
		{
			Kind:      storage.KindFailure,
			Query:     "broken",
			State:     "errored",
			Error:     "timeout",
			CreatedAt: now.Add(2 * time.Second),
		},
	}

	summary := GenerateSummary(records)

	if summary.TotalRecords != 5 {
		t.Errorf("expected 5 records, got %d", summary.TotalRecords)
	}
	if summary.Queries != 3 {
		t.Errorf("expected 3 queries, got %d", summary.Queries)
	}
	if summary.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", summary.Pages)
	}
	if summary.Results != 2 {
		t.Errorf("expected error items to be excluded from results, got %d", summary.Results)
	}
	if summary.Failures != 2 {
		t.Errorf("expected 2 failures, got %d", summary.Failures)
	}
	if summary.DomainsFound != 1 || summary.DomainsNotFound != 1 {
		t.Errorf("expected 1 found and 1 not found, got %d/%d", summary.DomainsFound, summary.DomainsNotFound)
	}
	if summary.States["errored"] != 1 || summary.States["found"] != 1 {
		t.Errorf("unexpected states: %v", summary.States)
	}
	if summary.Providers["serper"] != 2 {
		t.Errorf("expected 2 serper records, got %d", summary.Providers["serper"])
	}

	if len(summary.Ranks) != 2 {
		t.Fatalf("expected 2 rank rows, got %d", len(summary.Ranks))
	}
	if summary.Ranks[0].Domain != "alpha.com" || summary.Ranks[0].Rank != "4" {
		t.Errorf("expected rows sorted by domain, got %+v", summary.Ranks[0])
	}
	if summary.Ranks[1].Rank != ">30" {
		t.Errorf("expected >30, got %q", summary.Ranks[1].Rank)
	}

	if summary.Duration != 2*time.Second {
		t.Errorf("expected 2s duration, got %v", summary.Duration)
	}
}

func TestGenerateSummary_Empty(t *testing.T) {
	summary := GenerateSummary(nil)
	if summary.TotalRecords != 0 || summary.States == nil {
		t.Errorf("unexpected empty summary: %+v", summary)
	}
}

func TestWriteJSON(t *testing.T) {
	summary := Summary{
		Queries: 5,
	}
	var buf bytes.Buffer
	err := WriteJSON(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"Queries": 5`) {
		t.Errorf("expected JSON to contain Queries: 5")
	}
}

func TestWriteText(t *testing.T) {
	summary := Summary{
		Queries:  5,
		Failures: 1,
		States: map[string]int{
			"found":     4,
			"exhausted": 1,
		},
		Ranks: []RankRow{{Query: "coffee", Domain: "example.com", Rank: ">30", State: "exhausted"}},
	}
	var buf bytes.Buffer
	err := WriteText(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Queries:       5") {
		t.Errorf("expected text to contain Queries: 5")
	}
	if !strings.Contains(out, "found: 4") {
		t.Errorf("expected text to contain found: 4")
	}
	if !strings.Contains(out, ">30") {
		t.Errorf("expected text to contain the rank row")
	}
}

func TestWriteHTML(t *testing.T) {
	summary := Summary{
		Queries: 10,
		Ranks: []RankRow{
			{Query: "<script>", Domain: "example.com", Rank: "3", State: "found", Link: "https://example.com/"},
		},
	}
	var buf bytes.Buffer
	err := WriteHTML(&buf, summary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>SERP Rank Report</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, "example.com") {
		t.Errorf("expected HTML to contain the domain")
	}
	if strings.Contains(out, "<td><script>") {
		t.Errorf("expected query text to be escaped")
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "pdf", Summary{}); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := Write(&buf, "", Summary{}); err != nil {
		t.Errorf("empty format should default to text: %v", err)
	}
}
