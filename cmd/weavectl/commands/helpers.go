package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/ledger"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vecstore"
)

// storeConfigFromEnv assembles the access-layer configuration from the
// environment. config.Load has already layered YAML values underneath, so
// this is the single read point for connection settings.
func storeConfigFromEnv(log *slog.Logger) (vecstore.Config, error) {
	url := os.Getenv("WEAVIATE_URL")
	if url == "" {
		return vecstore.Config{}, fmt.Errorf("WEAVIATE_URL is not set (see 'weavectl probe --help' for connection settings)")
	}

	cfg := vecstore.Config{
		URL:                  url,
		APIKey:               os.Getenv("WEAVIATE_API_KEY"),
		PrefixHints:          splitCSV(os.Getenv("WEAVIATE_PREFIX_HINTS")),
		VersionOverride:      os.Getenv("WEAVIATE_VERSION"),
		DisableDomainRewrite: getEnvBool("WEAVIATE_DISABLE_DOMAIN_REWRITE", false),
		DisableV2Probe:       getEnvBool("WEAVIATE_DISABLE_V2_PROBE", false),
		DisableAltPaths:      getEnvBool("WEAVIATE_DISABLE_ALT_PATHS", false),
		TLSSkipVerify:        getEnvBool("WEAVIATE_TLS_SKIP_VERIFY", false),
		CABundle:             os.Getenv("WEAVIATE_CA_BUNDLE"),
		EnableHTTP2:          getEnvBool("WEAVIATE_ENABLE_HTTP2", false),
		MaxRetries:           getEnvInt("WEAVIATE_MAX_RETRIES", 0),
		RequestTimeout:       getEnvDuration("WEAVIATE_REQUEST_TIMEOUT", 0),
		SchemaCacheTTL:       getEnvDuration("WEAVIATE_SCHEMA_CACHE_TTL", 0),

		ClientVectors:   getEnvBool("SEARCH_CLIENT_VECTORS", false),
		EmbeddingModel:  os.Getenv("EMBEDDING_MODEL"),
		IncludeMetadata: getEnvBool("SEARCH_INCLUDE_METADATA", false),

		BatchSize:         getEnvInt("INGEST_BATCH_SIZE", 0),
		MaxBatchBytes:     getEnvInt("INGEST_MAX_BATCH_BYTES", 0),
		MaxIngestDuration: getEnvDuration("INGEST_MAX_DURATION", 0),
		ProgressEvery:     getEnvInt("INGEST_PROGRESS_EVERY", 0),

		ContentProperty: os.Getenv("SEARCH_CONTENT_PROPERTY"),
		DefaultLimit:    getEnvInt("SEARCH_LIMIT", 0),
		DefaultAlpha:    getEnvFloat32("SEARCH_ALPHA", 0),

		Logger: log,
	}
	return cfg, nil
}

// buildStore connects to the vector store using environment configuration.
// Callers must Close the returned store.
func buildStore(ctx context.Context, log *slog.Logger) (*vecstore.Store, error) {
	cfg, err := storeConfigFromEnv(log)
	if err != nil {
		return nil, err
	}
	store, err := vecstore.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to reach vector store at %s: %w", cfg.URL, err)
	}
	return store, nil
}

// openLedger opens the ingestion report ledger. WEAVECTL_HISTORY_DB overrides
// the default path (~/.weavectl/history.db); "disabled" turns it off. Returns
// nil when history is unavailable — the caller degrades gracefully.
func openLedger(log *slog.Logger) *ledger.SQLiteLedger {
	dbPath := os.Getenv("WEAVECTL_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via WEAVECTL_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = ledger.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	l, err := ledger.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open ledger, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: ledger opened", slog.String("path", dbPath))
	return l
}

// printReport writes an ingestion report as human-readable lines.
func printReport(report *vecstore.IngestionReport) {
	fmt.Printf("collection: %s\n", report.Collection)
	fmt.Printf("attempted:  %d\n", report.Attempted)
	fmt.Printf("processed:  %d\n", report.Processed)
	if report.PreCount >= 0 && report.PostCount >= 0 {
		fmt.Printf("count:      %d -> %d (delta %d)\n", report.PreCount, report.PostCount, report.InsertedDelta)
	} else {
		fmt.Printf("delta:      %d (object counts unavailable)\n", report.InsertedDelta)
	}
	fmt.Printf("duration:   %s\n", report.Duration.Round(time.Millisecond))
	for _, w := range report.Warnings {
		fmt.Printf("warning:    %s\n", w)
	}
	if report.Error != "" {
		fmt.Printf("error:      %s\n", report.Error)
	}
}

// formatCountRange renders a pre/post object-count pair, with "?" standing
// in for counts the store could not observe.
func formatCountRange(pre, post int64) string {
	if pre < 0 || post < 0 {
		return "?->?"
	}
	return fmt.Sprintf("%d->%d", pre, post)
}

// parseFilters parses repeated key=value flags into a filter map.
func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", p)
		}
		filters[k] = v
	}
	return filters, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err == nil {
			return float32(f)
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return fallback
}
