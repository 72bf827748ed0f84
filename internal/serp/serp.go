package serp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/serprank/internal/fingerprint"
	"github.com/FranksOps/serprank/pkg/proxy"
	"github.com/FranksOps/serprank/pkg/useragent"
)

// SearchOptions parameterize a single page request. Page is 0-based; each
// provider translates it to its native convention.
type SearchOptions struct {
	Page     int
	Location string
	Language string
}

// Provider abstracts a search backend that returns one normalized page per call.
// Implementations own their request shape, paging convention and retry policy.
type Provider interface {
	Name() string
	Mode() Mode
	Search(ctx context.Context, query string, opts SearchOptions) (*ResultPage, error)
}

// Config holds the settings shared by all providers.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout bounds a single HTTP attempt (0 = 30s)
	Timeout time.Duration
	Retry   RetryPolicy
	// Fingerprint selects the TLS profile; empty picks a per-provider default
	Fingerprint fingerprint.Profile
	ProxyPool   *proxy.Pool
	UAPool      *useragent.Pool
	Logger      *slog.Logger
}

// New builds the provider registered for the (name, mode) pair.
func New(name string, mode Mode, cfg Config) (Provider, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if mode == "" {
		mode = ModeSearch
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "serper":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, &ConfigError{Field: "provider.api_key", Msg: "serper requires an API key"}
		}
		switch mode {
		case ModeSearch:
			return NewSearchProvider(cfg)
		case ModeMaps:
			return NewMapsProvider(cfg)
		}
	case "duckduckgo", "ddg":
		if mode == ModeSearch {
			return NewHTMLProvider(cfg)
		}
	default:
		return nil, &ConfigError{Field: "provider.name", Msg: fmt.Sprintf("unknown provider %q", name)}
	}
	return nil, &ConfigError{Field: "provider.mode", Msg: fmt.Sprintf("provider %q does not support mode %q", name, mode)}
}
