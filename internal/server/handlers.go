// Package server — handlers.go contains the JSON API handlers for search,
// ingestion, collection management, and ingestion report history.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/ledger"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vecstore"
)

// maxReportsPage caps GET /api/reports result counts.
const maxReportsPage = 200

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON-formatted error response with the given status code.
func writeJSONError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func ptr[T any](v T) *T { return &v }

// handleSearch handles POST /api/search. An empty result list is a valid
// answer, never an error; only malformed requests fail.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Collection == "" {
		writeJSONError(w, "collection is required", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}

	opts := vecstore.SearchOptions{Limit: req.Limit, Filters: req.Filters}

	// Mode pins the blend; vector and keyword are the two hybrid extremes,
	// semantic leaves tier selection to the store.
	alpha := req.Alpha
	switch req.Mode {
	case "", "hybrid", "semantic":
	case "vector":
		alpha = ptr(float32(1))
	case "keyword":
		alpha = ptr(float32(0))
	default:
		writeJSONError(w, "unknown search mode "+strconv.Quote(req.Mode), http.StatusBadRequest)
		return
	}

	var results []vecstore.SearchResult
	var err error
	if alpha != nil {
		results, err = s.store.HybridSearch(r.Context(), req.Collection, req.Query, *alpha, opts)
	} else {
		results, err = s.store.Search(r.Context(), req.Collection, req.Query, opts)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.searchRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.searchDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("search failed",
			slog.String("collection", req.Collection),
			slog.Any("error", err),
		)
		writeJSONError(w, "search failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Collection: req.Collection, Results: results})
}

// handleIngest handles POST /api/ingest. The full ingestion report is
// returned even on partial failure; only total unreachability maps to an
// error status, and the partial report ships in that body too.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Collection == "" {
		writeJSONError(w, "collection is required", http.StatusBadRequest)
		return
	}
	if len(req.Documents) == 0 {
		writeJSONError(w, "documents are required", http.StatusBadRequest)
		return
	}

	report, err := s.store.Insert(r.Context(), req.Collection, req.Documents)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if len(report.Warnings) > 0 {
		outcome = "partial"
	}
	s.metrics.ingestRequestsTotal.WithLabelValues(outcome).Inc()
	if report != nil {
		s.metrics.ingestDocumentsTotal.Add(float64(report.Processed))
		s.recordReport(r, report)
	}

	if err != nil {
		log.Error("ingestion failed",
			slog.String("collection", req.Collection),
			slog.Any("error", err),
		)
		writeJSON(w, http.StatusBadGateway, report)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// recordReport persists the ingestion outcome when a ledger is configured.
// Ledger failures never fail the request.
func (s *Server) recordReport(r *http.Request, report *vecstore.IngestionReport) {
	if s.ledger == nil {
		return
	}
	err := s.ledger.Record(r.Context(), ledger.Entry{
		Collection: report.Collection,
		Attempted:  report.Attempted,
		Processed:  report.Processed,
		PreCount:   report.PreCount,
		PostCount:  report.PostCount,
		Delta:      report.InsertedDelta,
		Duration:   report.Duration,
		Warnings:   report.Warnings,
		Error:      report.Error,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("report ledger write failed", slog.Any("error", err))
	}
}

// handleCollectionsList handles GET /api/collections.
func (s *Server) handleCollectionsList(w http.ResponseWriter, r *http.Request) {
	names := s.store.ListCollections(r.Context())
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, collectionsResponse{Collections: names})
}

// handleCollectionCreate handles POST /api/collections.
func (s *Server) handleCollectionCreate(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeJSONError(w, "name is required", http.StatusBadRequest)
		return
	}

	ok, err := s.store.EnsureCollection(r.Context(), req.Name)
	if err != nil || !ok {
		logging.FromContext(r.Context()).Error("collection create failed",
			slog.String("name", req.Name),
			slog.Any("error", err),
		)
		writeJSONError(w, "collection could not be created", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

// handleCollectionDelete handles DELETE /api/collections/{name}. Deleting a
// collection no surface knows returns 404; a surfaced delete returns 204.
func (s *Server) handleCollectionDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeJSONError(w, "name is required", http.StatusBadRequest)
		return
	}

	deleted, err := s.store.DeleteCollection(r.Context(), name)
	if err != nil {
		logging.FromContext(r.Context()).Error("collection delete failed",
			slog.String("name", name),
			slog.Any("error", err),
		)
		writeJSONError(w, "collection could not be deleted", http.StatusBadGateway)
		return
	}
	if !deleted {
		writeJSONError(w, "collection not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleReports handles GET /api/reports?limit=N.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeJSONError(w, "report history is disabled", http.StatusNotFound)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxReportsPage)
	}

	entries, err := s.ledger.Recent(r.Context(), limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("report history read failed", slog.Any("error", err))
		writeJSONError(w, "report history unavailable", http.StatusInternalServerError)
		return
	}

	resp := reportsResponse{Reports: make([]reportEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Reports = append(resp.Reports, reportEntry{
			Collection: e.Collection,
			Attempted:  e.Attempted,
			Processed:  e.Processed,
			PreCount:   e.PreCount,
			PostCount:  e.PostCount,
			Delta:      e.Delta,
			DurationMS: e.Duration.Milliseconds(),
			Warnings:   e.Warnings,
			Error:      e.Error,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
