package serp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/serprank/internal/bypass"
	"github.com/FranksOps/serprank/internal/fingerprint"
	"github.com/FranksOps/serprank/pkg/useragent"
	"github.com/PuerkitoBio/goquery"
)

// DefaultDuckDuckGoURL is the host serving the JavaScript-free results page.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com"

const htmlPageSize = 10

// HTMLProvider scrapes DuckDuckGo's HTML results page. It needs no API key but
// is browser-facing, so requests carry a browser TLS fingerprint and a rotating
// User-Agent, and challenge pages are reported as errors.
type HTMLProvider struct {
	baseURL string
	http    *transport
}

// NewHTMLProvider builds a DuckDuckGo HTML provider.
func NewHTMLProvider(cfg Config) (*HTMLProvider, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultDuckDuckGoURL
	}
	t, err := newTransport("duckduckgo", ModeSearch, cfg, fingerprint.ProfileChrome, http.Header{
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"en-US,en;q=0.5"},
	}, bypass.HTMLDetectors())
	if err != nil {
		return nil, err
	}
	if t.ua == nil {
		t.ua = useragent.NewPool(nil)
	}
	return &HTMLProvider{baseURL: base, http: t}, nil
}

func (p *HTMLProvider) Name() string  { return "duckduckgo" }
func (p *HTMLProvider) Mode() Mode    { return ModeSearch }
func (p *HTMLProvider) PageSize() int { return htmlPageSize }

func (p *HTMLProvider) endpoint(query string, opts SearchOptions) string {
	v := url.Values{}
	v.Set("q", query)
	if opts.Page > 0 {
		v.Set("s", strconv.Itoa(opts.Page*htmlPageSize))
		v.Set("dc", strconv.Itoa(opts.Page*htmlPageSize+1))
	}
	if code := CountryCode(opts.Location); len(code) == 2 {
		lang := strings.ToLower(strings.TrimSpace(opts.Language))
		if lang == "" {
			lang = "en"
		}
		v.Set("kl", strings.ToLower(code)+"-"+lang)
	}
	return p.baseURL + "/html/?" + v.Encode()
}

// Search fetches one results page. The endpoint may return more than a page
// worth of results; only the first htmlPageSize are kept so positions line up
// with the offset of the next request.
func (p *HTMLProvider) Search(ctx context.Context, query string, opts SearchOptions) (*ResultPage, error) {
	var (
		items   []SearchItem
		hasNext bool
	)
	err := p.http.withRetry(ctx, query, opts.Page, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(query, opts), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		res, err := p.http.do(ctx, req)
		if err != nil {
			return err
		}
		items, hasNext, err = parseHTMLResults(res.Body, query, opts.Page)
		return err
	})
	if err != nil {
		return nil, err
	}

	more := hasNext || len(items) > htmlPageSize
	if len(items) > htmlPageSize {
		items = items[:htmlPageSize]
	}
	return &ResultPage{
		Items:        items,
		Query:        query,
		Page:         opts.Page + 1,
		TotalResults: len(items),
		HasMorePages: more,
		Provider:     p.Name(),
		Mode:         ModeSearch,
		Timestamp:    time.Now().UTC(),
	}, nil
}

func parseHTMLResults(body []byte, query string, page int) ([]SearchItem, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("parse html: %w", err)
	}

	var items []SearchItem
	doc.Find("div.result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		a := s.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		link := resolveRedirect(href)
		if link == "" {
			return
		}
		items = append(items, SearchItem{
			Title:    strings.TrimSpace(a.Text()),
			Snippet:  strings.TrimSpace(s.Find(".result__snippet").First().Text()),
			Link:     link,
			Position: page*htmlPageSize + len(items) + 1,
			Query:    query,
			Page:     page + 1,
		})
	})

	hasNext := doc.Find(`div.nav-link form input[type="submit"][value="Next"]`).Length() > 0
	return items, hasNext, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= click tracking links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
