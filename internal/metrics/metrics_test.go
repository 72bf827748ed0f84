package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv, err := Start("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("failed to start metrics server: %v", err)
	}
	defer srv.Stop(context.Background())

	RecordProviderCall("serper", "search", "200", 250*time.Millisecond)
	PagesFetchedTotal.WithLabelValues("serper", "search").Inc()
	QueryOutcomesTotal.WithLabelValues("found").Inc()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	for _, want := range []string{
		`serprank_provider_requests_total{mode="search",provider="serper",status="200"}`,
		`serprank_provider_duration_seconds_bucket`,
		`serprank_pages_fetched_total{mode="search",provider="serper"}`,
		`serprank_query_outcomes_total{state="found"}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestStopNilServer(t *testing.T) {
	var s *Server
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("expected nil error stopping nil server, got %v", err)
	}
}
