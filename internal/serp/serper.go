package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/serprank/internal/bypass"
	"github.com/FranksOps/serprank/internal/fingerprint"
)

const (
	// DefaultSerperURL is the public Serper endpoint.
	DefaultSerperURL = "https://google.serper.dev"

	searchPageSize = 10
	mapsPageSize   = 20
)

type serperRequest struct {
	Q    string `json:"q"`
	Page int    `json:"page"`
	GL   string `json:"gl,omitempty"`
	HL   string `json:"hl,omitempty"`
	Num  int    `json:"num,omitempty"`
}

// flexInt decodes counts that arrive either as JSON numbers or as strings
// such as "1,230,000".
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("decode count %s: %w", data, err)
	}
	*n = flexInt(v)
	return nil
}

type serperSearchResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Snippet  string `json:"snippet"`
		Link     string `json:"link"`
		Position int    `json:"position"`
	} `json:"organic"`
	SearchInformation *struct {
		TotalResults flexInt `json:"totalResults"`
	} `json:"searchInformation"`
}

type serperPlace struct {
	Title        string         `json:"title"`
	Address      string         `json:"address"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	Rating       float64        `json:"rating"`
	RatingCount  flexInt        `json:"ratingCount"`
	Type         string         `json:"type"`
	Types        []string       `json:"types"`
	Website      string         `json:"website"`
	PhoneNumber  string         `json:"phoneNumber"`
	OpeningHours map[string]any `json:"openingHours"`
	ThumbnailURL string         `json:"thumbnailUrl"`
	CID          string         `json:"cid"`
	FID          string         `json:"fid"`
	PlaceID      string         `json:"placeId"`
}

type serperMapsResponse struct {
	Places []serperPlace `json:"places"`
}

// serperAPI is the JSON-over-POST client both Serper providers share.
type serperAPI struct {
	baseURL string
	apiKey  string
	http    *transport
}

func newSerperAPI(mode Mode, cfg Config) (*serperAPI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigError{Field: "provider.api_key", Msg: "serper requires an API key"}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultSerperURL
	}
	t, err := newTransport("serper", mode, cfg, fingerprint.ProfileGo, http.Header{
		"Accept":       {"application/json"},
		"Content-Type": {"application/json"},
	}, bypass.VendorDetectors())
	if err != nil {
		return nil, err
	}
	return &serperAPI{baseURL: base, apiKey: cfg.APIKey, http: t}, nil
}

func (a *serperAPI) request(query string, opts SearchOptions, num int) serperRequest {
	return serperRequest{
		Q:    query,
		Page: opts.Page + 1,
		GL:   CountryCode(opts.Location),
		HL:   strings.ToLower(strings.TrimSpace(opts.Language)),
		Num:  num,
	}
}

// postJSON sends body to path under the retry policy and decodes the response
// into a fresh T on every attempt.
func postJSON[T any](ctx context.Context, a *serperAPI, path string, body serperRequest) (T, error) {
	var out T
	payload, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("serper: encode request: %w", err)
	}

	err = a.http.withRetry(ctx, body.Q, body.Page-1, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("X-API-KEY", a.apiKey)

		res, err := a.http.do(ctx, req)
		if err != nil {
			return err
		}
		var decoded T
		if err := json.Unmarshal(res.Body, &decoded); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
		out = decoded
		return nil
	})
	return out, err
}

// SearchProvider returns organic web results from Serper's /search endpoint.
type SearchProvider struct {
	api *serperAPI
}

// NewSearchProvider builds a Serper web search provider.
func NewSearchProvider(cfg Config) (*SearchProvider, error) {
	api, err := newSerperAPI(ModeSearch, cfg)
	if err != nil {
		return nil, err
	}
	return &SearchProvider{api: api}, nil
}

func (p *SearchProvider) Name() string  { return "serper" }
func (p *SearchProvider) Mode() Mode    { return ModeSearch }
func (p *SearchProvider) PageSize() int { return searchPageSize }

// Search fetches one page of organic results. A full page signals more pages.
func (p *SearchProvider) Search(ctx context.Context, query string, opts SearchOptions) (*ResultPage, error) {
	resp, err := postJSON[serperSearchResponse](ctx, p.api, "/search", p.api.request(query, opts, searchPageSize))
	if err != nil {
		return nil, err
	}

	page := &ResultPage{
		Items:        make([]SearchItem, 0, len(resp.Organic)),
		Query:        query,
		Page:         opts.Page + 1,
		HasMorePages: len(resp.Organic) == searchPageSize,
		Provider:     p.Name(),
		Mode:         ModeSearch,
		Timestamp:    time.Now().UTC(),
	}
	if resp.SearchInformation != nil {
		page.TotalResults = int(resp.SearchInformation.TotalResults)
	}
	for i, o := range resp.Organic {
		page.Items = append(page.Items, SearchItem{
			Title:    o.Title,
			Snippet:  o.Snippet,
			Link:     o.Link,
			Position: opts.Page*searchPageSize + i + 1,
			Query:    query,
			Page:     opts.Page + 1,
		})
	}
	return page, nil
}

// MapsProvider returns local business results from Serper's /maps endpoint.
// The endpoint has no total count, so any non-empty page implies another.
type MapsProvider struct {
	api *serperAPI
}

// NewMapsProvider builds a Serper maps provider.
func NewMapsProvider(cfg Config) (*MapsProvider, error) {
	api, err := newSerperAPI(ModeMaps, cfg)
	if err != nil {
		return nil, err
	}
	return &MapsProvider{api: api}, nil
}

func (p *MapsProvider) Name() string  { return "serper" }
func (p *MapsProvider) Mode() Mode    { return ModeMaps }
func (p *MapsProvider) PageSize() int { return mapsPageSize }

// Search fetches one page of places. Link carries the place website and
// Snippet its address.
func (p *MapsProvider) Search(ctx context.Context, query string, opts SearchOptions) (*ResultPage, error) {
	resp, err := postJSON[serperMapsResponse](ctx, p.api, "/maps", p.api.request(query, opts, 0))
	if err != nil {
		return nil, err
	}

	page := &ResultPage{
		Items:        make([]SearchItem, 0, len(resp.Places)),
		Query:        query,
		Page:         opts.Page + 1,
		TotalResults: len(resp.Places),
		HasMorePages: len(resp.Places) > 0,
		Provider:     p.Name(),
		Mode:         ModeMaps,
		Timestamp:    time.Now().UTC(),
	}
	for i, pl := range resp.Places {
		page.Items = append(page.Items, SearchItem{
			Title:    pl.Title,
			Snippet:  pl.Address,
			Link:     pl.Website,
			Position: opts.Page*mapsPageSize + i + 1,
			Query:    query,
			Page:     opts.Page + 1,
			Place: &Place{
				Address:      pl.Address,
				Latitude:     pl.Latitude,
				Longitude:    pl.Longitude,
				Rating:       pl.Rating,
				RatingCount:  int(pl.RatingCount),
				Type:         pl.Type,
				Types:        pl.Types,
				Website:      pl.Website,
				PhoneNumber:  pl.PhoneNumber,
				OpeningHours: pl.OpeningHours,
				ThumbnailURL: pl.ThumbnailURL,
				CID:          pl.CID,
				FID:          pl.FID,
				PlaceID:      pl.PlaceID,
			},
		})
	}
	return page, nil
}
