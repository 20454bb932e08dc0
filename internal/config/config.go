// Package config provides YAML-based configuration for weavectl.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. WEAVECTL_CONFIG environment variable
//  3. ~/.weavectl/config.yaml
//  4. ./weavectl.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Weaviate configures the vector store connection.
	Weaviate WeaviateConfig `yaml:"weaviate"`

	// Search configures retrieval behavior.
	Search SearchConfig `yaml:"search"`

	// Ingest configures batch ingestion.
	Ingest IngestConfig `yaml:"ingest"`

	// Embedding configures the client-side embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures ingestion report persistence.
	History HistoryConfig `yaml:"history"`
}

// WeaviateConfig holds vector store connection settings.
type WeaviateConfig struct {
	// URL is the vector store connection string.
	URL string `yaml:"url"`
	// APIKey is the store API key. Prefer env var WEAVIATE_API_KEY.
	APIKey string `yaml:"api_key"`
	// PrefixHints are comma-separated path prefixes probed before the defaults.
	PrefixHints string `yaml:"prefix_hints"`
	// Version forces the REST API version (v1, v2) and skips detection.
	Version string `yaml:"version"`
	// DisableDomainRewrite turns off the legacy-domain rewrite.
	DisableDomainRewrite bool `yaml:"disable_domain_rewrite"`
	// DisableV2Probe skips v2 endpoints during discovery.
	DisableV2Probe bool `yaml:"disable_v2_probe"`
	// DisableAltPaths skips the alternate mount patterns during discovery.
	DisableAltPaths bool `yaml:"disable_alt_paths"`
	// TLSSkipVerify disables certificate verification. Diagnostics only.
	TLSSkipVerify bool `yaml:"tls_skip_verify"`
	// CABundle points at a PEM bundle for private CAs.
	CABundle string `yaml:"ca_bundle"`
	// EnableHTTP2 opts in to protocol negotiation.
	EnableHTTP2 bool `yaml:"enable_http2"`
	// MaxRetries is the per-request retry budget. Zero means the transport
	// default; -1 disables retries.
	MaxRetries int `yaml:"max_retries"`
	// RequestTimeout bounds one request attempt ("30s" style).
	RequestTimeout string `yaml:"request_timeout"`
	// SchemaCacheTTL bounds the typed client's collection cache age.
	SchemaCacheTTL string `yaml:"schema_cache_ttl"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	// ClientVectors enables local query vectorization.
	ClientVectors bool `yaml:"client_vectors"`
	// Limit is the default result cap.
	Limit int `yaml:"limit"`
	// Alpha is the default hybrid blend (0 keyword, 1 vector).
	Alpha float32 `yaml:"alpha"`
	// ContentProperty is the primary text property name.
	ContentProperty string `yaml:"content_property"`
	// IncludeMetadata merges caller metadata into stored objects.
	IncludeMetadata bool `yaml:"include_metadata"`
}

// IngestConfig holds batch ingestion settings.
type IngestConfig struct {
	// BatchSize caps objects per submission chunk.
	BatchSize int `yaml:"batch_size"`
	// MaxBatchBytes caps the estimated payload size per chunk.
	MaxBatchBytes int `yaml:"max_batch_bytes"`
	// MaxDuration aborts an ingestion run past this bound ("10m" style).
	MaxDuration string `yaml:"max_duration"`
	// ProgressEvery logs progress after this many objects.
	ProgressEvery int `yaml:"progress_every"`
}

// EmbeddingConfig holds client-side embedding settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure, compat).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var WEAVECTL_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds ingestion report persistence settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"WEAVIATE_URL", func(c *Config) string { return c.Weaviate.URL }},
	{"WEAVIATE_API_KEY", func(c *Config) string { return c.Weaviate.APIKey }},
	{"WEAVIATE_PREFIX_HINTS", func(c *Config) string { return c.Weaviate.PrefixHints }},
	{"WEAVIATE_VERSION", func(c *Config) string { return c.Weaviate.Version }},
	{"WEAVIATE_DISABLE_DOMAIN_REWRITE", func(c *Config) string { return boolStr(c.Weaviate.DisableDomainRewrite) }},
	{"WEAVIATE_DISABLE_V2_PROBE", func(c *Config) string { return boolStr(c.Weaviate.DisableV2Probe) }},
	{"WEAVIATE_DISABLE_ALT_PATHS", func(c *Config) string { return boolStr(c.Weaviate.DisableAltPaths) }},
	{"WEAVIATE_TLS_SKIP_VERIFY", func(c *Config) string { return boolStr(c.Weaviate.TLSSkipVerify) }},
	{"WEAVIATE_CA_BUNDLE", func(c *Config) string { return c.Weaviate.CABundle }},
	{"WEAVIATE_ENABLE_HTTP2", func(c *Config) string { return boolStr(c.Weaviate.EnableHTTP2) }},
	{"WEAVIATE_MAX_RETRIES", func(c *Config) string { return intStr(c.Weaviate.MaxRetries) }},
	{"WEAVIATE_REQUEST_TIMEOUT", func(c *Config) string { return c.Weaviate.RequestTimeout }},
	{"WEAVIATE_SCHEMA_CACHE_TTL", func(c *Config) string { return c.Weaviate.SchemaCacheTTL }},
	{"SEARCH_CLIENT_VECTORS", func(c *Config) string { return boolStr(c.Search.ClientVectors) }},
	{"SEARCH_LIMIT", func(c *Config) string { return intStr(c.Search.Limit) }},
	{"SEARCH_ALPHA", func(c *Config) string { return float32Str(c.Search.Alpha) }},
	{"SEARCH_CONTENT_PROPERTY", func(c *Config) string { return c.Search.ContentProperty }},
	{"SEARCH_INCLUDE_METADATA", func(c *Config) string { return boolStr(c.Search.IncludeMetadata) }},
	{"INGEST_BATCH_SIZE", func(c *Config) string { return intStr(c.Ingest.BatchSize) }},
	{"INGEST_MAX_BATCH_BYTES", func(c *Config) string { return intStr(c.Ingest.MaxBatchBytes) }},
	{"INGEST_MAX_DURATION", func(c *Config) string { return c.Ingest.MaxDuration }},
	{"INGEST_PROGRESS_EVERY", func(c *Config) string { return intStr(c.Ingest.ProgressEvery) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"WEAVECTL_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"WEAVECTL_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("WEAVECTL_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".weavectl", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("weavectl.yaml"); err == nil {
		return "weavectl.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
