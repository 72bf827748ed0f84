package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FranksOps/serprank/internal/checkpoint"
	"github.com/FranksOps/serprank/internal/config"
	"github.com/FranksOps/serprank/internal/fingerprint"
	"github.com/FranksOps/serprank/internal/metrics"
	"github.com/FranksOps/serprank/internal/pipeline"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/pkg/proxy"
	"github.com/FranksOps/serprank/pkg/useragent"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run [query...]",
		Short: "Run a batch of queries",
		Example: `  serprank run -d example.com "best coffee" "espresso machine"
  serprank run --queries-file queries.txt --domains example.com,other.net --max-results 50
  serprank run --mode maps --output csv --output-path places.csv "cafes in berlin"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			cfg.Queries = append(cfg.Queries, args...)
			if err := cfg.LoadQueries(); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := newLogger(cfg.Log, cmd.ErrOrStderr())
			return runBatch(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringArrayP("query", "q", nil, "query to run (repeatable)")
	f.String("queries-file", "", "file with one query per line")
	f.StringP("domain", "d", "", "domain to hunt for")
	f.StringSlice("domains", nil, "additional domains to hunt for")
	f.Int("max-results", d.MaxResults, "result budget per query (0 = unlimited)")
	f.String("location", "", "country name or 2-letter code")
	f.String("language", d.Language, "interface language code")
	f.Duration("page-delay", d.PageDelay, "minimum delay between provider calls")
	f.String("provider", d.Provider.Name, "search provider: serper or duckduckgo")
	f.String("mode", d.Provider.Mode, "result mode: search or maps")
	f.String("base-url", "", "override the provider endpoint")
	f.Duration("timeout", d.Provider.Timeout, "timeout for a single provider request")
	f.Duration("retry-base-delay", d.Provider.RetryBaseDelay, "base delay of the linear retry backoff")
	f.String("fingerprint", "", "TLS fingerprint: chrome, firefox, safari, go or random")
	f.String("proxies", "", "file with one proxy URL per line")
	f.String("checkpoint", "", "checkpoint database for resumable batches")
	f.Int("metrics-port", 0, "serve prometheus metrics on this port (0 = disabled)")
	bindFlags(a.v, f, map[string]string{
		"queries":                   "query",
		"queries_file":              "queries-file",
		"domain":                    "domain",
		"domains":                   "domains",
		"max_results":               "max-results",
		"location":                  "location",
		"language":                  "language",
		"page_delay":                "page-delay",
		"provider.name":             "provider",
		"provider.mode":             "mode",
		"provider.base_url":         "base-url",
		"provider.timeout":          "timeout",
		"provider.retry_base_delay": "retry-base-delay",
		"provider.fingerprint":      "fingerprint",
		"provider.proxies_file":     "proxies",
		"checkpoint.path":           "checkpoint",
		"metrics_port":              "metrics-port",
	})

	return cmd
}

func newProvider(cfg *config.Config, logger *slog.Logger) (serp.Provider, error) {
	var proxies *proxy.Pool
	if cfg.Provider.ProxiesFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(cfg.Provider.ProxiesFile); err != nil {
			return nil, err
		}
		logger.Info("loaded proxies", "count", proxies.Len())
	}

	var uas *useragent.Pool
	if len(cfg.Provider.UserAgents) > 0 {
		uas = useragent.NewPool(cfg.Provider.UserAgents)
	}

	return serp.New(cfg.Provider.Name, serp.Mode(cfg.Provider.Mode), serp.Config{
		APIKey:      cfg.Provider.APIKey,
		BaseURL:     cfg.Provider.BaseURL,
		Timeout:     cfg.Provider.Timeout,
		Retry:       serp.RetryPolicy{BaseDelay: cfg.Provider.RetryBaseDelay},
		Fingerprint: fingerprint.Profile(cfg.Provider.Fingerprint),
		ProxyPool:   proxies,
		UAPool:      uas,
		Logger:      logger,
	})
}

// runBatch wires the provider, backend and checkpoint into a pipeline and
// runs it alongside the metrics server.
func runBatch(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, cfg.Output)
	if err != nil {
		return err
	}
	defer backend.Close()

	var cp pipeline.Checkpoint
	if cfg.Checkpoint.Path != "" {
		key := cfg.Checkpoint.Key
		if key == "" {
			key = checkpoint.Key(cfg.Queries, cfg.Targets())
		}
		store, err := checkpoint.Open(cfg.Checkpoint.Path, key)
		if err != nil {
			return err
		}
		defer store.Close()
		cp = store
	}

	p, err := pipeline.New(pipeline.Config{
		Provider:   provider,
		Backend:    backend,
		Checkpoint: cp,
		Logger:     logger,
		Domains:    cfg.Targets(),
		MaxResults: cfg.MaxResults,
		Location:   cfg.Location,
		Language:   cfg.Language,
		PageDelay:  cfg.PageDelay,
	})
	if err != nil {
		return err
	}

	var srv *metrics.Server
	if cfg.MetricsPort > 0 {
		srv, err = metrics.Start(fmt.Sprintf(":%d", cfg.MetricsPort), logger)
		if err != nil {
			return err
		}
	}

	logger.Info("starting batch",
		"provider", provider.Name(),
		"mode", provider.Mode(),
		"queries", len(cfg.Queries),
		"domains", len(cfg.Targets()),
		"max_results", cfg.MaxResults,
		"backend", cfg.Output.Backend,
	)

	var stats pipeline.Stats
	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(done)
		var err error
		stats, err = p.Run(gctx, cfg.Queries)
		return err
	})
	g.Go(func() error {
		<-done
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("batch interrupted after %d queries; rerun to resume: %w", stats.Queries, err)
		}
		return err
	}

	fmt.Fprintf(out, "queries: %d  pages: %d  results: %d  found: %d  not found: %d  failures: %d\n",
		stats.Queries, stats.Pages, stats.Results, stats.Found, stats.NotFound, stats.Failures)
	if stats.StorageFailures > 0 {
		fmt.Fprintf(out, "warning: %d records could not be saved\n", stats.StorageFailures)
	}
	return nil
}
