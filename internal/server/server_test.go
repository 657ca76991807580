package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/me/schedpol/internal/logging"
	"github.com/me/schedpol/internal/metrics"
	"github.com/me/schedpol/internal/stats"
	"github.com/me/schedpol/pkg/model"
)

func newTestServer(t *testing.T) (*Server, *stats.Aggregator) {
	t.Helper()
	agg := stats.NewAggregator()
	collector := metrics.NewCollector("mlfq")
	return New("mlfq", "run-1", agg, collector, logging.Discard()), agg
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want %q", resp.Status, "healthy")
	}
	if resp.Policy != "mlfq" {
		t.Errorf("policy = %q, want %q", resp.Policy, "mlfq")
	}
	if resp.Run != "run-1" {
		t.Errorf("run = %q, want %q", resp.Run, "run-1")
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, agg := newTestServer(t)

	agg.Get(1000).AddCPUTime(5_000_000)
	agg.Get(1000).ContextSwitchIn()
	agg.Get(1001).AddWait(2_000_000)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp statsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Processes) != 2 {
		t.Fatalf("processes = %d, want 2", len(resp.Processes))
	}
	if resp.Processes[0].TGID != model.TGID(1000) {
		t.Errorf("first tgid = %d, want 1000", resp.Processes[0].TGID)
	}
	if resp.Processes[0].Stats.CPUTimeNS != 5_000_000 {
		t.Errorf("cpu time = %d, want 5000000", resp.Processes[0].Stats.CPUTimeNS)
	}
	if resp.Processes[1].Stats.WaitEvents != 1 {
		t.Errorf("wait events = %d, want 1", resp.Processes[1].Stats.WaitEvents)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "schedpol_") {
		t.Errorf("metrics body missing schedpol_ families:\n%s", rec.Body.String())
	}
}
