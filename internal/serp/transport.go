package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/serprank/internal/bypass"
	"github.com/FranksOps/serprank/internal/fingerprint"
	"github.com/FranksOps/serprank/internal/metrics"
	"github.com/FranksOps/serprank/pkg/httpclient"
	"github.com/FranksOps/serprank/pkg/proxy"
	"github.com/FranksOps/serprank/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// transport is the HTTP plumbing shared by providers: one client per provider
// so connections are pooled, per-request proxy rotation through the request
// context, User-Agent rotation, bot challenge detection and the retry policy.
type transport struct {
	name   string
	mode   Mode
	client *httpclient.Client
	proxy  *proxy.Pool
	ua     *useragent.Pool
	retry  RetryPolicy
	detect []bypass.Detector
	logger *slog.Logger
}

func newTransport(name string, mode Mode, cfg Config, defaultProfile fingerprint.Profile, headers http.Header, detectors []bypass.Detector) (*transport, error) {
	profile := cfg.Fingerprint
	if profile == "" {
		profile = defaultProfile
	}

	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	rt, err := fingerprint.Transport(profile, proxyFunc)
	if err != nil {
		return nil, &ConfigError{Field: "provider.fingerprint", Msg: err.Error()}
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 5,
		UseCookieJar: true,
		Transport:    rt,
		Headers:      headers,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: create client: %w", name, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &transport{
		name:   name,
		mode:   mode,
		client: client,
		proxy:  cfg.ProxyPool,
		ua:     cfg.UAPool,
		retry:  cfg.Retry,
		detect: detectors,
		logger: logger,
	}, nil
}

// do sends req once. Responses flagged by the bot detectors come back as a
// *bypass.BlockedError, other non-2xx responses as a *httpclient.StatusError.
func (t *transport) do(ctx context.Context, req *http.Request) (*bypass.Response, error) {
	var activeProxy *url.URL
	if t.proxy != nil {
		if activeProxy = t.proxy.Next(); activeProxy != nil {
			ctx = context.WithValue(ctx, proxyKey, activeProxy)
		}
	}
	if t.ua != nil {
		req.Header.Set("User-Agent", t.ua.Next())
	}

	start := time.Now()
	resp, err := t.client.Do(ctx, req)
	if err != nil {
		metrics.RecordProviderCall(t.name, string(t.mode), "error", time.Since(start))
		if activeProxy != nil {
			_ = t.proxy.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		return nil, err
	}
	body, err := httpclient.ReadBody(resp, 0)
	metrics.RecordProviderCall(t.name, string(t.mode), strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, err
	}
	if activeProxy != nil {
		_ = t.proxy.MarkSuccess(activeProxy)
	}

	res := &bypass.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if err := bypass.Analyze(res, t.detect); err != nil {
		var be *bypass.BlockedError
		if errors.As(err, &be) {
			metrics.BlockedResponsesTotal.WithLabelValues(t.name, be.Source).Inc()
		}
		return nil, err
	}
	if err := httpclient.CheckStatus(resp, body); err != nil {
		return nil, err
	}
	return res, nil
}

// withRetry runs fn under the retry policy and converts exhaustion into a
// *ProviderError. page is the 0-based page index.
func (t *transport) withRetry(ctx context.Context, query string, page int, fn func() error) error {
	attempts, err := t.retry.Do(ctx, func(int) error { return fn() }, func(attempt int, err error) {
		metrics.ProviderRetriesTotal.WithLabelValues(t.name).Inc()
		t.logger.Warn("provider attempt failed, retrying",
			"provider", t.name, "query", query, "page", page, "attempt", attempt, "err", err)
	})
	if err != nil {
		return &ProviderError{Provider: t.name, Query: query, Page: page, Attempts: attempts, Err: err}
	}
	return nil
}
