package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/ledger"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vecstore"
)

// ---------------------------------------------------------------------------
// Fake store for handler tests
// ---------------------------------------------------------------------------

// fakeStore implements the Store interface for tests. Each field configures
// the corresponding method's return values.
type fakeStore struct {
	// results is returned by Search and HybridSearch.
	results []vecstore.SearchResult
	// searchErr is returned by Search and HybridSearch.
	searchErr error
	// lastAlpha records the blend passed to HybridSearch.
	lastAlpha float32
	// hybridCalled reports whether HybridSearch was used.
	hybridCalled bool

	// report is returned by Insert.
	report *vecstore.IngestionReport
	// insertErr is returned by Insert.
	insertErr error

	// collections is returned by ListCollections.
	collections []string
	// ensureOK and ensureErr configure EnsureCollection.
	ensureOK  bool
	ensureErr error
	// deleted and deleteErr configure DeleteCollection.
	deleted   bool
	deleteErr error
}

func (f *fakeStore) EnsureCollection(_ context.Context, _ string) (bool, error) {
	return f.ensureOK, f.ensureErr
}

func (f *fakeStore) DeleteCollection(_ context.Context, _ string) (bool, error) {
	return f.deleted, f.deleteErr
}

func (f *fakeStore) ListCollections(_ context.Context) []string {
	return f.collections
}

func (f *fakeStore) Insert(_ context.Context, _ string, _ []vecstore.Document) (*vecstore.IngestionReport, error) {
	return f.report, f.insertErr
}

func (f *fakeStore) Search(_ context.Context, _, _ string, _ vecstore.SearchOptions) ([]vecstore.SearchResult, error) {
	return f.results, f.searchErr
}

func (f *fakeStore) HybridSearch(_ context.Context, _, _ string, alpha float32, _ vecstore.SearchOptions) ([]vecstore.SearchResult, error) {
	f.hybridCalled = true
	f.lastAlpha = alpha
	return f.results, f.searchErr
}

// fakeLedger implements the Ledger interface in memory.
type fakeLedger struct {
	// entries accumulates recorded runs, oldest-first.
	entries []ledger.Entry
	// err is returned by both methods when set.
	err error
}

func (f *fakeLedger) Record(_ context.Context, e ledger.Entry) error {
	if f.err != nil {
		return f.err
	}
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeLedger) Recent(_ context.Context, n int) ([]ledger.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ledger.Entry, 0, n)
	for i := len(f.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

// newTestServer builds a *Server with a fake store, an in-memory ledger, and
// an isolated metrics registry.
func newTestServer() *Server {
	return newFakeServer(&fakeStore{}, &fakeLedger{})
}

func newFakeServer(store *fakeStore, l Ledger) *Server {
	return &Server{
		store:   store,
		ledger:  l,
		cfg:     &Config{Port: 8080},
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

// ---------------------------------------------------------------------------
// POST /api/search
// ---------------------------------------------------------------------------

func TestHandleSearch_MissingCollection(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"query":"minutes"}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleSearch_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`not-json`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleSearch_ReturnsResults(t *testing.T) {
	t.Parallel()

	store := &fakeStore{results: []vecstore.SearchResult{
		{ID: "1", Content: "quarterly minutes", Source: "q1.md", Score: 0.9},
	}}
	s := newFakeServer(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"collection":"Board Minutes 2024","query":"minutes"}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Collection != "Board Minutes 2024" {
		t.Errorf("collection = %q, want the caller's name echoed", resp.Collection)
	}
	if len(resp.Results) != 1 || resp.Results[0].Content != "quarterly minutes" {
		t.Errorf("results = %+v, want the fake's single hit", resp.Results)
	}
}

func TestHandleSearch_EmptyResultsIsOK(t *testing.T) {
	t.Parallel()

	store := &fakeStore{results: []vecstore.SearchResult{}}
	s := newFakeServer(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"collection":"docs","query":"nothing matches"}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for an empty result, got %d", w.Code)
	}
	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("results = %v, want empty non-nil list", resp.Results)
	}
}

func TestHandleSearch_ExplicitAlphaUsesHybrid(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	s := newFakeServer(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"collection":"docs","query":"q","alpha":0.25}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if !store.hybridCalled {
		t.Fatal("expected HybridSearch for an explicit alpha")
	}
	if store.lastAlpha != 0.25 {
		t.Errorf("alpha = %v, want 0.25", store.lastAlpha)
	}
}

func TestHandleSearch_ModeSelectsBlend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode      string
		wantAlpha float32
	}{
		{"keyword", 0},
		{"vector", 1},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			t.Parallel()

			store := &fakeStore{}
			s := newFakeServer(store, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/search",
				strings.NewReader(`{"collection":"docs","query":"q","mode":"`+tt.mode+`"}`))
			w := httptest.NewRecorder()

			s.handleSearch(w, req)

			if !store.hybridCalled {
				t.Fatalf("mode %q: expected a pinned hybrid blend", tt.mode)
			}
			if store.lastAlpha != tt.wantAlpha {
				t.Errorf("mode %q: alpha = %v, want %v", tt.mode, store.lastAlpha, tt.wantAlpha)
			}
		})
	}
}

func TestHandleSearch_UnknownModeRejected(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"collection":"docs","query":"q","mode":"psychic"}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleSearch_StoreError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{searchErr: errors.New("store unreachable")}
	s := newFakeServer(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"collection":"docs","query":"q"}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/ingest
// ---------------------------------------------------------------------------

func TestHandleIngest_MissingDocuments(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest",
		strings.NewReader(`{"collection":"docs"}`))
	w := httptest.NewRecorder()

	s.handleIngest(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleIngest_ReturnsReport(t *testing.T) {
	t.Parallel()

	store := &fakeStore{report: &vecstore.IngestionReport{
		Collection:    "docs",
		Attempted:     3,
		Processed:     2,
		PreCount:      10,
		PostCount:     12,
		InsertedDelta: 2,
		Warnings:      []string{"object rejected: invalid date"},
	}}
	l := &fakeLedger{}
	s := newFakeServer(store, l)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest",
		strings.NewReader(`{"collection":"docs","documents":[{"content":"a"},{"content":"b"},{"content":"c"}]}`))
	w := httptest.NewRecorder()

	s.handleIngest(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for partial success, got %d — body: %s", w.Code, w.Body.String())
	}

	var report vecstore.IngestionReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Processed != 2 || len(report.Warnings) != 1 {
		t.Errorf("report = %+v, want the fake's partial report echoed", report)
	}

	if len(l.entries) != 1 || l.entries[0].Delta != 2 {
		t.Errorf("ledger entries = %+v, want one recorded run with delta 2", l.entries)
	}
	if e := l.entries[0]; e.PreCount != 10 || e.PostCount != 12 {
		t.Errorf("ledger counts = %d->%d, want 10->12", e.PreCount, e.PostCount)
	}
}

func TestHandleIngest_TotalFailureIs502WithReport(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		report:    &vecstore.IngestionReport{Collection: "docs", Attempted: 1, PreCount: -1, PostCount: -1, Error: "collection docs unusable"},
		insertErr: errors.New("no surface reachable"),
	}
	l := &fakeLedger{}
	s := newFakeServer(store, l)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest",
		strings.NewReader(`{"collection":"docs","documents":[{"content":"a"}]}`))
	w := httptest.NewRecorder()

	s.handleIngest(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var report vecstore.IngestionReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Error == "" {
		t.Error("expected the partial report with its error in the 502 body")
	}
	if len(l.entries) != 1 || l.entries[0].Error != "collection docs unusable" {
		t.Errorf("ledger entries = %+v, want the failed run recorded with its error", l.entries)
	}
}

func TestHandleIngest_LedgerFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()

	store := &fakeStore{report: &vecstore.IngestionReport{Collection: "docs", Attempted: 1, Processed: 1, InsertedDelta: 1}}
	s := newFakeServer(store, &fakeLedger{err: errors.New("disk full")})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest",
		strings.NewReader(`{"collection":"docs","documents":[{"content":"a"}]}`))
	w := httptest.NewRecorder()

	s.handleIngest(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 despite ledger failure, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// /api/collections
// ---------------------------------------------------------------------------

func TestHandleCollectionsList(t *testing.T) {
	t.Parallel()

	store := &fakeStore{collections: []string{"BoardMinutes2024", "Docs"}}
	s := newFakeServer(store, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	w := httptest.NewRecorder()

	s.handleCollectionsList(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp collectionsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Collections) != 2 {
		t.Errorf("collections = %v, want 2 names", resp.Collections)
	}
}

func TestHandleCollectionCreate_Success(t *testing.T) {
	t.Parallel()

	store := &fakeStore{ensureOK: true}
	s := newFakeServer(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/collections",
		strings.NewReader(`{"name":"Board Minutes 2024"}`))
	w := httptest.NewRecorder()

	s.handleCollectionCreate(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestHandleCollectionCreate_Failure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{ensureErr: errors.New("every create path failed")}
	s := newFakeServer(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/collections",
		strings.NewReader(`{"name":"docs"}`))
	w := httptest.NewRecorder()

	s.handleCollectionCreate(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestHandleCollectionDelete_NotFound(t *testing.T) {
	t.Parallel()

	store := &fakeStore{deleted: false}
	s := newFakeServer(store, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/collections/ghost", nil)
	req.SetPathValue("name", "ghost")
	w := httptest.NewRecorder()

	s.handleCollectionDelete(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleCollectionDelete_Success(t *testing.T) {
	t.Parallel()

	store := &fakeStore{deleted: true}
	s := newFakeServer(store, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/collections/docs", nil)
	req.SetPathValue("name", "docs")
	w := httptest.NewRecorder()

	s.handleCollectionDelete(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/reports
// ---------------------------------------------------------------------------

func TestHandleReports_ReturnsRecent(t *testing.T) {
	t.Parallel()

	l := &fakeLedger{}
	_ = l.Record(context.Background(), ledger.Entry{Collection: "docs", Attempted: 2, Processed: 2, Delta: 2})
	s := newFakeServer(&fakeStore{}, l)

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	w := httptest.NewRecorder()

	s.handleReports(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp reportsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Reports) != 1 || resp.Reports[0].Collection != "docs" {
		t.Errorf("reports = %+v, want the one recorded run", resp.Reports)
	}
}

func TestHandleReports_DisabledWithoutLedger(t *testing.T) {
	t.Parallel()

	s := newFakeServer(&fakeStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	w := httptest.NewRecorder()

	s.handleReports(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 when history is disabled, got %d", w.Code)
	}
}

func TestHandleReports_InvalidLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/reports?limit=-3", nil)
	w := httptest.NewRecorder()

	s.handleReports(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
