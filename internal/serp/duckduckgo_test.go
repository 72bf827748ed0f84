package serp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/FranksOps/serprank/internal/bypass"
	"github.com/FranksOps/serprank/internal/fingerprint"
)

func ddgPage(n int, next bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="links" class="results">`)
	b.WriteString(`<div class="result result--ad"><a class="result__a" href="https://ads.example/">Ad</a></div>`)
	for i := 1; i <= n; i++ {
		target := url.QueryEscape(fmt.Sprintf("https://www.site%d.com/path?x=1", i))
		fmt.Fprintf(&b, `<div class="result results_links web-result"><div class="links_main result__body">
<h2 class="result__title"><a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=%s&amp;rut=abc">Site %d</a></h2>
<a class="result__snippet" href="#">Snippet %d</a></div></div>`, target, i, i)
	}
	b.WriteString(`</div>`)
	if next {
		b.WriteString(`<div class="nav-link"><form action="/html/" method="post"><input type="submit" class="btn" value="Next" /><input type="hidden" name="s" value="10" /></form></div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func newTestHTMLProvider(t *testing.T, base string) *HTMLProvider {
	t.Helper()
	p, err := NewHTMLProvider(Config{BaseURL: base, Fingerprint: fingerprint.ProfileGo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestHTMLProvider_Search(t *testing.T) {
	var gotQuery url.Values
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/html/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(ddgPage(3, true)))
	}))
	defer ts.Close()

	p := newTestHTMLProvider(t, ts.URL)
	page, err := p.Search(context.Background(), "golang", SearchOptions{Page: 1, Location: "United Kingdom", Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery.Get("q") != "golang" || gotQuery.Get("s") != "10" || gotQuery.Get("kl") != "gb-en" {
		t.Errorf("unexpected query params: %v", gotQuery)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Errorf("expected a browser User-Agent, got %q", gotUA)
	}
	if !page.HasMorePages {
		t.Error("expected next form to signal more pages")
	}
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 organic items (ad skipped), got %d", len(page.Items))
	}
	it := page.Items[0]
	if it.Link != "https://www.site1.com/path?x=1" {
		t.Errorf("expected redirect to be unwrapped, got %q", it.Link)
	}
	if it.Title != "Site 1" || it.Snippet != "Snippet 1" || it.Position != 11 || it.Page != 2 {
		t.Errorf("unexpected item: %+v", it)
	}
}

func TestHTMLProvider_TrimsToPageSize(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ddgPage(25, false)))
	}))
	defer ts.Close()

	page, err := newTestHTMLProvider(t, ts.URL).Search(context.Background(), "q", SearchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 10 {
		t.Errorf("expected 10 items, got %d", len(page.Items))
	}
	if !page.HasMorePages {
		t.Error("overflowing results should signal more pages")
	}
	if page.Items[9].Position != 10 {
		t.Errorf("expected last position 10, got %d", page.Items[9].Position)
	}
}

func TestHTMLProvider_LastPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ddgPage(4, false)))
	}))
	defer ts.Close()

	page, err := newTestHTMLProvider(t, ts.URL).Search(context.Background(), "q", SearchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasMorePages {
		t.Error("expected no more pages without a next form")
	}
}

func TestHTMLProvider_Challenge(t *testing.T) {
	stubSleep(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`<div class="anomaly-modal__title">Unfortunately, bots use DuckDuckGo too.</div>`))
	}))
	defer ts.Close()

	_, err := newTestHTMLProvider(t, ts.URL).Search(context.Background(), "q", SearchOptions{})
	var be *bypass.BlockedError
	if !errors.As(err, &be) || be.Source != "DuckDuckGo" {
		t.Fatalf("expected DuckDuckGo blocked error, got %v", err)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Attempts != 3 {
		t.Errorf("expected provider error after 3 attempts, got %v", err)
	}
}

func TestResolveRedirect(t *testing.T) {
	tests := map[string]string{
		"//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&rut=x": "https://go.dev/doc/",
		"https://example.com/a":                                       "https://example.com/a",
		"javascript:void(0)":                                          "",
	}
	for in, want := range tests {
		if got := resolveRedirect(in); got != want {
			t.Errorf("resolveRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}
