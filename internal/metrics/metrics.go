package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_provider_requests_total",
			Help: "Total number of provider HTTP attempts",
		},
		[]string{"provider", "mode", "status"},
	)

	ProviderRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_provider_retries_total",
			Help: "Total number of provider attempts that were retried",
		},
		[]string{"provider"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serprank_provider_duration_seconds",
			Help:    "Duration of provider HTTP attempts in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	PagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_pages_fetched_total",
			Help: "Total number of result pages yielded by the paginator",
		},
		[]string{"provider", "mode"},
	)

	QueryOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_query_outcomes_total",
			Help: "Terminal outcomes of processed queries",
		},
		[]string{"state"},
	)

	DomainMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_domain_matches_total",
			Help: "Domain matches by match tier",
		},
		[]string{"tier"},
	)

	BlockedResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_blocked_responses_total",
			Help: "Responses classified as bot challenges",
		},
		[]string{"provider", "source"},
	)

	StorageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_storage_failures_total",
			Help: "Records that could not be persisted",
		},
		[]string{"kind"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_proxy_failures_total",
			Help: "Total number of proxy failures during provider calls",
		},
		[]string{"proxy_url"},
	)
)

// RecordProviderCall records one provider HTTP attempt. status is the HTTP
// status code, or "error" when no response was received.
func RecordProviderCall(provider, mode, status string, d time.Duration) {
	ProviderRequestsTotal.WithLabelValues(provider, mode, status).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// Server exposes /metrics over HTTP.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Start listens on addr (e.g. ":9090", or ":0" for an ephemeral port) and
// serves /metrics in the background.
func Start(addr string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	logger.Info("metrics server listening", "addr", ln.Addr().String())

	return &Server{srv: srv, ln: ln}, nil
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
