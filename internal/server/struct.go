package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/ledger"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vecstore"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for a full ingestion run.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all Prometheus metric registrations. Defaults
	// to prometheus.DefaultRegisterer; tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Store is the interface the handlers call into the access layer.
// *vecstore.Store satisfies it; tests inject a fake.
type Store interface {
	// EnsureCollection creates the collection if needed.
	EnsureCollection(ctx context.Context, name string) (bool, error)
	// DeleteCollection removes the collection from whichever surface sees it.
	DeleteCollection(ctx context.Context, name string) (bool, error)
	// ListCollections returns the union of every listing surface.
	ListCollections(ctx context.Context) []string
	// Insert batch-ingests documents and reports what actually happened.
	Insert(ctx context.Context, name string, docs []vecstore.Document) (*vecstore.IngestionReport, error)
	// Search runs the tiered retrieval with the default hybrid blend.
	Search(ctx context.Context, name, query string, opts vecstore.SearchOptions) ([]vecstore.SearchResult, error)
	// HybridSearch runs the tiered retrieval with an explicit blend.
	HybridSearch(ctx context.Context, name, query string, alpha float32, opts vecstore.SearchOptions) ([]vecstore.SearchResult, error)
}

// Ledger is the slice of the report ledger the handlers need. Nil disables
// report persistence and GET /api/reports.
type Ledger interface {
	// Record persists one ingestion run.
	Record(ctx context.Context, e ledger.Entry) error
	// Recent returns the most recent n entries, newest-first.
	Recent(ctx context.Context, n int) ([]ledger.Entry, error)
}

// Server is the HTTP server exposing the access layer.
type Server struct {
	// store is the vector store access layer behind every handler.
	store Store
	// ledger records ingestion runs; nil disables persistence.
	ledger Ledger
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Collection is the caller-facing collection name.
	Collection string `json:"collection"`
	// Query is the search text.
	Query string `json:"query"`
	// Mode selects the retrieval strategy: hybrid (default), vector,
	// semantic, or keyword.
	Mode string `json:"mode,omitempty"`
	// Alpha is the optional hybrid blend; nil uses the configured default.
	Alpha *float32 `json:"alpha,omitempty"`
	// Limit caps the result count.
	Limit int `json:"limit,omitempty"`
	// Filters are equality constraints on text properties.
	Filters map[string]string `json:"filters,omitempty"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Collection echoes the queried collection name.
	Collection string `json:"collection"`
	// Results are the normalized hits, best-first.
	Results []vecstore.SearchResult `json:"results"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Collection is the caller-facing collection name.
	Collection string `json:"collection"`
	// Documents are the records to ingest.
	Documents []vecstore.Document `json:"documents"`
}

// collectionRequest is the JSON body for POST /api/collections.
type collectionRequest struct {
	// Name is the caller-facing collection name.
	Name string `json:"name"`
}

// collectionsResponse is the JSON response for GET /api/collections.
type collectionsResponse struct {
	// Collections are the storage names visible on any surface, sorted.
	Collections []string `json:"collections"`
}

// reportsResponse is the JSON response for GET /api/reports.
type reportsResponse struct {
	// Reports are recent ingestion runs, newest-first.
	Reports []reportEntry `json:"reports"`
}

// reportEntry is one ledger entry in API form.
type reportEntry struct {
	Collection string   `json:"collection"`
	Attempted  int      `json:"attempted"`
	Processed  int      `json:"processed"`
	PreCount   int64    `json:"pre_count"`
	PostCount  int64    `json:"post_count"`
	Delta      int      `json:"delta"`
	DurationMS int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  string   `json:"created_at"`
}
