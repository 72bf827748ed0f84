package analyzer

import (
	"fmt"
	"testing"

	"github.com/FranksOps/serprank/internal/serp"
)

// benchmarkBatch builds a page of realistic result links where the target, if
// present at all, sits at the end.
func benchmarkBatch(size int, withTarget bool) []serp.SearchItem {
	hosts := []string{
		"https://www.wikipedia.org/wiki/Heat_exchanger",
		"https://blog.hvac-supply.com/maintenance-checklist",
		"https://industrial-corrosion.net/coatings",
		"https://www.youtube.com/watch?v=abc123",
		"https://forum.marine-engineering.co.uk/thread/42",
	}
	batch := make([]serp.SearchItem, 0, size)
	for i := 0; i < size; i++ {
		batch = append(batch, serp.SearchItem{
			Title:    fmt.Sprintf("Result %d", i+1),
			Link:     hosts[i%len(hosts)],
			Position: i + 1,
		})
	}
	if withTarget && size > 0 {
		batch[size-1].Link = "https://shop.example.com/products"
	}
	return batch
}

func BenchmarkFirstMatch_Page(b *testing.B) {
	batch := benchmarkBatch(10, true)
	target := NewTarget("example.com")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		FirstMatch(batch, target)
	}
}

func BenchmarkFirstMatch_NoMatch(b *testing.B) {
	batch := benchmarkBatch(100, false)
	target := NewTarget("example.com")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		FirstMatch(batch, target)
	}
}

func BenchmarkNormalizeDomain(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NormalizeDomain("https://WWW.Blog.Example.com:443/path/to/page?utm_source=x")
	}
}

func TestBenchmarkBatch(t *testing.T) {
	batch := benchmarkBatch(10, true)
	m, ok := FirstMatch(batch, NewTarget("example.com"))
	if !ok || m.Position != 10 || m.Tier != TierSubdomain {
		t.Errorf("expected subdomain match at position 10, got %+v ok=%v", m, ok)
	}
	if _, ok := FirstMatch(benchmarkBatch(100, false), NewTarget("example.com")); ok {
		t.Error("expected no match in target-free batch")
	}
}
