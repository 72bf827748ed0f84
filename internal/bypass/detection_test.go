package bypass

import (
	"errors"
	"net/http"
	"testing"
)

func TestDetectCloudflare(t *testing.T) {
	res := &Response{StatusCode: 200, Header: http.Header{"Server": {"nginx"}}, Body: []byte("OK")}
	if detected, _ := detectCloudflare(res); detected {
		t.Errorf("expected not detected")
	}

	res = &Response{StatusCode: 403, Header: http.Header{"Server": {"cloudflare"}}, Body: []byte("Access Denied")}
	if detected, src := detectCloudflare(res); !detected || src != "Cloudflare" {
		t.Errorf("expected Cloudflare detection by header")
	}

	res = &Response{StatusCode: 503, Body: []byte("<html>... cf-turnstile ...</html>")}
	if detected, src := detectCloudflare(res); !detected || src != "Cloudflare" {
		t.Errorf("expected Cloudflare detection by body")
	}
}

func TestDetectAkamai(t *testing.T) {
	res := &Response{StatusCode: 403, Header: http.Header{"Server": {"AkamaiGHost"}}}
	if detected, src := detectAkamai(res); !detected || src != "Akamai" {
		t.Errorf("expected Akamai detection by header")
	}

	res = &Response{StatusCode: 403, Body: []byte("Access Denied... Reference #123.456")}
	if detected, src := detectAkamai(res); !detected || src != "Akamai" {
		t.Errorf("expected Akamai detection by body")
	}
}

func TestDetectDataDome(t *testing.T) {
	res := &Response{StatusCode: 403, Header: http.Header{"X-Datadome": {"1"}}}
	if detected, src := detectDataDome(res); !detected || src != "DataDome" {
		t.Errorf("expected DataDome detection by header")
	}

	res = &Response{StatusCode: 403, Body: []byte("script src='https://geo.captcha-delivery.com/...'")}
	if detected, src := detectDataDome(res); !detected || src != "DataDome" {
		t.Errorf("expected DataDome detection by body")
	}
}

func TestDetectPerimeterX(t *testing.T) {
	res := &Response{StatusCode: 403, Header: http.Header{"X-Px-Captcha": {"required"}}}
	if detected, src := detectPerimeterX(res); !detected || src != "PerimeterX" {
		t.Errorf("expected PerimeterX detection by header")
	}

	res = &Response{StatusCode: 403, Body: []byte("window._pxBlock = true;")}
	if detected, src := detectPerimeterX(res); !detected || src != "PerimeterX" {
		t.Errorf("expected PerimeterX detection by body")
	}
}

func TestDetectDuckDuckGo(t *testing.T) {
	res := &Response{StatusCode: 202, Body: []byte(`<div class="anomaly-modal__title">`)}
	if detected, src := detectDuckDuckGo(res); !detected || src != "DuckDuckGo" {
		t.Errorf("expected DuckDuckGo anomaly detection")
	}

	res = &Response{StatusCode: 200, Body: []byte(`<div class="result results_links">`)}
	if detected, _ := detectDuckDuckGo(res); detected {
		t.Errorf("expected results page not to be flagged")
	}
}

func TestDetectGoogleSorry(t *testing.T) {
	res := &Response{StatusCode: 429, Body: []byte("Our systems have detected unusual traffic from your computer network.")}
	if detected, src := detectGoogleSorry(res); !detected || src != "Google" {
		t.Errorf("expected Google sorry page detection")
	}
}

func TestAnalyze(t *testing.T) {
	detectors := HTMLDetectors()

	err := Analyze(&Response{StatusCode: 403, Header: http.Header{"X-Datadome": {"1"}}}, detectors)
	var be *BlockedError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if be.Source != "DataDome" || be.StatusCode != 403 {
		t.Errorf("unexpected blocked error: %+v", be)
	}

	if err := Analyze(&Response{StatusCode: 200, Body: []byte("hello")}, detectors); err != nil {
		t.Errorf("expected clean response, got %v", err)
	}
	if err := Analyze(nil, detectors); err != nil {
		t.Errorf("expected nil response to pass, got %v", err)
	}
}

func TestVendorDetectors_IgnoreChallengeTextInSuccessBody(t *testing.T) {
	res := &Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(`{"organic":[{"snippet":"Unfortunately, bots use DuckDuckGo too. anomaly-modal px-captcha"}]}`),
	}
	if err := Analyze(res, VendorDetectors()); err != nil {
		t.Errorf("expected vendor detectors to pass a 200 response, got %v", err)
	}
	if err := Analyze(res, HTMLDetectors()); err == nil {
		t.Error("expected HTML detectors to flag the DuckDuckGo challenge text")
	}
}
