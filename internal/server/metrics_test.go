package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vecstore"
)

// newMetricsTestServer builds a Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer.
func newMetricsTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := &Server{
		store: &fakeStore{},
		cfg: &Config{
			MetricsRegistry: reg,
			MetricsGatherer: reg,
		},
		metrics: newServerMetrics(reg),
	}
	return s, reg
}

// counterValue returns the value of a counter with the given label pair, or -1
// when absent.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
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

func Test_Metrics_SearchCounterIncremented(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"collection":"docs","query":"q"}`))
	s.handleSearch(httptest.NewRecorder(), req)

	if got := counterValue(t, reg, "weavectl_search_requests_total", "outcome", "ok"); got != 1 {
		t.Errorf("weavectl_search_requests_total{outcome=\"ok\"} = %v, want 1", got)
	}
}

func Test_Metrics_IngestDocumentsCounted(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)
	s.store.(*fakeStore).report = &vecstore.IngestionReport{
		Collection: "docs", Attempted: 4, Processed: 4, InsertedDelta: 4,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ingest",
		strings.NewReader(`{"collection":"docs","documents":[{"content":"a"}]}`))
	s.handleIngest(httptest.NewRecorder(), req)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "weavectl_ingest_documents_total" {
			v := mf.GetMetric()[0].GetCounter().GetValue()
			if v != 4 {
				t.Errorf("weavectl_ingest_documents_total = %v, want 4", v)
			}
			return
		}
	}
	t.Error("weavectl_ingest_documents_total not found in gathered metrics")
}

func Test_Metrics_HTTPMiddlewareLabelsPattern(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	handler := s.httpMetrics(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := counterValue(t, reg, "weavectl_http_requests_total", "handler", "GET /api/health"); got != 1 {
		t.Errorf("weavectl_http_requests_total{handler=\"GET /api/health\"} = %v, want 1", got)
	}
}

func Test_Metrics_HTTPMiddlewareUnmatchedRoute(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	handler := s.httpMetrics(mux)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := counterValue(t, reg, "weavectl_http_requests_total", "handler", "unmatched"); got != 1 {
		t.Errorf("weavectl_http_requests_total{handler=\"unmatched\"} = %v, want 1", got)
	}
}
