package bypass

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
)

// Response is the part of an HTTP response the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector examines a response and reports whether a bot protection layer
// blocked or challenged the request, naming the source.
type Detector func(res *Response) (detected bool, source string)

// BlockedError is returned by providers whose request was answered with a
// challenge page instead of results.
type BlockedError struct {
	Source     string
	StatusCode int
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("bypass: request blocked by %s (status %d)", e.Source, e.StatusCode)
}

// VendorDetectors returns the anti-bot vendor detectors. Each only fires on
// an error status, so they are safe for JSON APIs whose 2xx bodies carry
// arbitrary third-party text.
func VendorDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
		detectGoogleSorry,
	}
}

// HTMLDetectors returns the vendor detectors followed by the checks for
// search engine challenge pages, which can arrive with a 2xx status. Use it
// only for providers that scrape result HTML.
func HTMLDetectors() []Detector {
	return append(VendorDetectors(), detectDuckDuckGo)
}

// Analyze runs res through detectors in order and returns a *BlockedError for
// the first one that fires, or nil.
func Analyze(res *Response, detectors []Detector) error {
	if res == nil {
		return nil
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return &BlockedError{Source: source, StatusCode: res.StatusCode}
		}
	}
	return nil
}

func header(res *Response, key string) string {
	if res.Header == nil {
		return ""
	}
	if v := res.Header.Get(key); v != "" {
		return v
	}
	for k, vals := range res.Header {
		if strings.EqualFold(k, key) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

func detectCloudflare(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(res, "Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(res.Body, []byte("cloudflare-nginx")) ||
		bytes.Contains(res.Body, []byte("cf-turnstile")) ||
		bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(res, "Server")), "akamai") {
		return true, "Akamai"
	}
	// generic "Reference #" block page
	if bytes.Contains(res.Body, []byte("Reference #")) && bytes.Contains(res.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(res, "Server")), "datadome") ||
		header(res, "X-DataDome") != "" || header(res, "X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(res.Body, []byte("geo.captcha-delivery.com")) || bytes.Contains(res.Body, []byte("datadome")) {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if header(res, "X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bytes.Contains(res.Body, []byte("client.perimeterx.net")) ||
		bytes.Contains(res.Body, []byte("px-captcha")) ||
		bytes.Contains(res.Body, []byte("_pxBlock")) {
		return true, "PerimeterX"
	}
	return false, ""
}

// detectDuckDuckGo catches the anomaly page the HTML endpoint serves, often
// with a 202 status, instead of results.
func detectDuckDuckGo(res *Response) (bool, string) {
	if bytes.Contains(res.Body, []byte("anomaly-modal")) ||
		bytes.Contains(res.Body, []byte("Unfortunately, bots use DuckDuckGo too")) {
		return true, "DuckDuckGo"
	}
	return false, ""
}

func detectGoogleSorry(res *Response) (bool, string) {
	if res.StatusCode != http.StatusTooManyRequests && res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if bytes.Contains(res.Body, []byte("/sorry/index")) ||
		bytes.Contains(res.Body, []byte("Our systems have detected unusual traffic")) {
		return true, "Google"
	}
	return false, ""
}
