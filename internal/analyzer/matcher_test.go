package analyzer

import (
	"testing"

	"github.com/FranksOps/serprank/internal/serp"
)

func TestNormalizeDomain(t *testing.T) {
	tests := map[string]string{
		"example.com":                         "example.com",
		"WWW.Example.com":                     "example.com",
		"https://www.example.com/path?q=1":    "example.com",
		"http://Blog.Example.com:8080/x":      "blog.example.com",
		"example.com/landing":                 "example.com",
		"www.www.example.com":                 "example.com",
		"example.com.":                        "example.com",
		"example.com..":                       "example.com",
		"www.example.com..":                   "example.com",
		"https://example.com../x":             "example.com",
		"  https://user:pw@shop.example.com/": "shop.example.com",
		"":                                    "",
	}
	for in, want := range tests {
		got := NormalizeDomain(in)
		if got != want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", in, got, want)
		}
		if again := NormalizeDomain(got); again != got {
			t.Errorf("NormalizeDomain not idempotent for %q: %q then %q", in, got, again)
		}
	}
}

func TestNormalizeDomain_CaseAndWWWInsensitive(t *testing.T) {
	a := NormalizeDomain("WWW.Example.com")
	b := NormalizeDomain("example.com")
	if a != b || a != "example.com" {
		t.Errorf("expected both to normalize to example.com, got %q and %q", a, b)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		host, target string
		want         Tier
	}{
		{"example.com", "example.com", TierExact},
		{"blog.example.com", "example.com", TierSubdomain},
		{"a.b.example.com", "example.com", TierSubdomain},
		{"my-example-shop.com", "example", TierPartial},
		{"com.example-cdn.net", "example.com", TierPartial},
		{"otherexample.net", "example.com", TierNone},
		{"notexample.com", "example.com", TierPartial},
		{"example.org", "example.com", TierNone},
		{"", "example.com", TierNone},
	}
	for _, tt := range tests {
		if got := Classify(tt.host, NewTarget(tt.target)); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.host, tt.target, got, tt.want)
		}
	}
}

func items(links ...string) []serp.SearchItem {
	out := make([]serp.SearchItem, len(links))
	for i, l := range links {
		out[i] = serp.SearchItem{Title: "t" + l, Link: l, Position: i + 1, Page: 1}
	}
	return out
}

func TestFirstMatch_EarliestWins(t *testing.T) {
	batch := items(
		"https://unrelated.org/",
		"https://my-example-shop.com/deal", // partial
		"https://example.com/",             // exact, later
	)
	m, ok := FirstMatch(batch, NewTarget("example"))
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Position != 2 || m.Tier != TierPartial {
		t.Errorf("expected earliest (partial) match at position 2, got %+v", m)
	}
}

func TestFirstMatch_SubdomainBeforeExact(t *testing.T) {
	batch := items("https://sub.example.com/x", "https://example.com/")
	m, ok := FirstMatch(batch, NewTarget("https://www.example.com"))
	if !ok || m.Link != "https://sub.example.com/x" || m.Tier != TierSubdomain {
		t.Errorf("expected subdomain match on first item, got %+v ok=%v", m, ok)
	}
}

func TestFirstMatch_SkipsErrorsAndEmptyLinks(t *testing.T) {
	batch := []serp.SearchItem{
		{Title: "err", Link: "https://example.com", Position: 1, Error: "boom"},
		{Title: "place", Link: "", Position: 2},
		{Title: "hit", Link: "https://www.example.com/a", Position: 3},
	}
	m, ok := FirstMatch(batch, NewTarget("example.com"))
	if !ok || m.Position != 3 || m.Title != "hit" || m.Tier != TierExact {
		t.Errorf("expected match at position 3, got %+v ok=%v", m, ok)
	}
}

func TestFirstMatch_NoMatch(t *testing.T) {
	if _, ok := FirstMatch(items("https://otherexample.net/"), NewTarget("example.com")); ok {
		t.Error("otherexample.net must not match example.com")
	}
	if _, ok := FirstMatch(items("https://example.com/"), NewTarget("")); ok {
		t.Error("empty target must never match")
	}
	if _, ok := FirstMatch(nil, NewTarget("example.com")); ok {
		t.Error("empty batch must not match")
	}
}

func TestTierString(t *testing.T) {
	for tier, want := range map[Tier]string{TierNone: "none", TierExact: "exact", TierSubdomain: "subdomain", TierPartial: "partial"} {
		if tier.String() != want {
			t.Errorf("Tier(%d).String() = %q, want %q", tier, tier.String(), want)
		}
	}
}
