// Package vecstore is the reconciling facade over the vector store's two
// surfaces. One connection-scoped [Store] owns the transport, the resolved
// endpoint, the typed client with its lag-prone cache, and both REST
// adapters; callers get collection management, batch ingestion with honest
// accounting, and tiered-fallback search without seeing any of the
// disagreement underneath.
package vecstore

import (
	"time"
)

// Document is one caller-supplied record for ingestion.
type Document struct {
	// Content is the record's text payload.
	Content string `json:"content"`
	// Source identifies where the content came from (URL, file path).
	Source string `json:"source"`
	// SourceType classifies the source (pdf, html, markdown, text, web,
	// file). Inferred from Source when empty.
	SourceType string `json:"source_type,omitempty"`
	// Metadata carries extra caller properties. Merged into the storage
	// object only when the store is configured to include metadata, and
	// always filtered to schema-declared properties.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Vector is an optional precomputed default vector.
	Vector []float32 `json:"vector,omitempty"`
	// Vectors carries optional precomputed named vectors keyed by slot.
	Vectors map[string][]float32 `json:"vectors,omitempty"`
}

// SearchResult is one normalized hit. Scores are comparable only within a
// single call; different retrieval strategies produce different score
// origins.
type SearchResult struct {
	// ID is the server-assigned object identifier.
	ID string `json:"id"`
	// Content is the matched text.
	Content string `json:"content"`
	// Source is the originating source of the matched record.
	Source string `json:"source"`
	// Page is the source page number when the record carries one.
	Page int `json:"page,omitempty"`
	// Section is the source section label when the record carries one.
	Section string `json:"section,omitempty"`
	// Score is the relevance in [0,1] where derivable, 0 otherwise.
	Score float64 `json:"score"`
}

// SearchOptions tunes one search call. The zero value uses the store's
// configured defaults.
type SearchOptions struct {
	// Limit caps the result count (default from config).
	Limit int
	// Filters are equality constraints on text properties. Applied natively
	// when the strategy supports it, client-side otherwise.
	Filters map[string]string
}

// IngestionReport is the full accounting of one Insert call. Partial
// failure lives in Warnings and InsertedDelta, never in Error; Error is
// reserved for total unreachability.
type IngestionReport struct {
	// Collection is the caller's collection name.
	Collection string `json:"collection"`
	// Attempted is the number of documents the caller submitted.
	Attempted int `json:"attempted"`
	// Processed is the number of objects the submission path accepted.
	Processed int `json:"processed"`
	// PreCount is the best-effort object count before insertion (-1 unknown).
	PreCount int64 `json:"pre_count"`
	// PostCount is the best-effort object count after insertion (-1 unknown).
	PostCount int64 `json:"post_count"`
	// InsertedDelta is max(0, PostCount-PreCount) when both counts are
	// known, otherwise Processed.
	InsertedDelta int `json:"inserted_delta"`
	// Duration is the wall-clock time of the whole call.
	Duration time.Duration `json:"duration"`
	// Warnings lists partial failures and consistency gaps.
	Warnings []string `json:"warnings,omitempty"`
	// Error is set only when no insertion path was reachable at all.
	Error string `json:"error,omitempty"`
}

// warn appends a warning to the report.
func (r *IngestionReport) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
