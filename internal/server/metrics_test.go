package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prepwise/coach-go/internal/session"
)

// newMetricsTestServer builds a Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer.
func newMetricsTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	st := session.NewStore(slog.Default())
	reg := prometheus.NewRegistry()
	s := &Server{
		store: st,
		cfg: &Config{
			MetricsRegistry: reg,
			MetricsGatherer: reg,
		},
		log:     slog.Default(),
		metrics: newServerMetrics(reg, func() float64 { return float64(st.Len()) }),
	}
	return s, reg
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	_, reg := newMetricsTestServer(t)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_SessionsCreatedCounter(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	s.metrics.sessionsCreatedTotal.Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "coach_sessions_created_total" {
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
				t.Errorf("want counter=1, got %v", got)
			}
			found = true
		}
	}
	if !found {
		t.Error("coach_sessions_created_total not found in gathered metrics")
	}
}

// Test_Metrics_ActiveSessionsGauge verifies the gauge tracks the registry size.
func Test_Metrics_ActiveSessionsGauge(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	if _, err := s.store.Create("s1", "Ada", testJD, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.store.Create("s2", "Grace", testJD, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "coach_sessions_active" {
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 2 {
				t.Errorf("want active=2, got %v", v)
			}
			return
		}
	}
	t.Error("coach_sessions_active not found in gathered metrics")
}

// Test_Metrics_PipelineOutcomePartition verifies duration observations land
// under their outcome label.
func Test_Metrics_PipelineOutcomePartition(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	s.metrics.pipelineDurationSeconds.WithLabelValues("ok").Observe(1.5)
	s.metrics.pipelineDurationSeconds.WithLabelValues("error").Observe(0.2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "coach_pipeline_duration_seconds" {
			if got := len(mf.GetMetric()); got != 2 {
				t.Errorf("want 2 outcome series, got %d", got)
			}
			return
		}
	}
	t.Error("coach_pipeline_duration_seconds not found in gathered metrics")
}
