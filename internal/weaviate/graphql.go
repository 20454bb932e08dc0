package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SearchMode selects the retrieval operator in a GraphQL Get query.
type SearchMode string

// Retrieval operators, in decreasing capability order.
const (
	ModeHybrid     SearchMode = "hybrid"
	ModeNearVector SearchMode = "near_vector"
	ModeNearText   SearchMode = "near_text"
	ModeBM25       SearchMode = "bm25"
)

// SearchQuery describes one Get query against a collection.
type SearchQuery struct {
	// Class is the sanitized storage name to query.
	Class string
	// Mode picks the retrieval operator.
	Mode SearchMode
	// Query is the search text (ignored by ModeNearVector).
	Query string
	// Vector is a locally encoded query vector for hybrid/near_vector.
	Vector []float32
	// TargetVector names a vector slot; empty targets the default vector.
	TargetVector string
	// Alpha is the hybrid blend: 0 pure keyword, 1 pure vector.
	Alpha float32
	// Limit caps the result count.
	Limit int
	// Filters are equality constraints on text properties, applied natively.
	Filters map[string]string
	// Properties are the property names to return.
	Properties []string
}

// Hit is one raw search hit before normalization.
type Hit struct {
	// ID is the server-assigned object identifier.
	ID string
	// Properties holds the returned property values.
	Properties map[string]any
	// Score is the keyword/hybrid relevance score when present.
	Score float64
	// HasScore reports whether Score was returned.
	HasScore bool
	// Certainty is the vector similarity in [0,1] when present.
	Certainty float64
	// HasCertainty reports whether Certainty was returned.
	HasCertainty bool
	// Distance is the raw vector distance when present.
	Distance float64
	// HasDistance reports whether Distance was returned.
	HasDistance bool
}

// gqlResponse is the GraphQL envelope.
type gqlResponse struct {
	Data   map[string]map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// graphQL posts a query to the shared query endpoint and returns the
// decoded envelope. GraphQL-level errors become Go errors here, so callers
// can treat any error as "this strategy failed".
func (r *rest) graphQL(ctx context.Context, query string) (*gqlResponse, error) {
	body, err := r.do(ctx, "POST", "/v1/graphql", map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	var resp gqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("weaviate: decode graphql response: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("weaviate: graphql: %s", strings.Join(msgs, "; "))
	}
	return &resp, nil
}

// search runs one Get query and parses the hits.
func (r *rest) search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	resp, err := r.graphQL(ctx, buildSearchQuery(q))
	if err != nil {
		return nil, err
	}

	raw, ok := resp.Data["Get"][q.Class]
	if !ok {
		return nil, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("weaviate: decode %s hits: %w", q.Class, err)
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, parseHit(row))
	}
	return hits, nil
}

// aggregateCount returns the object count via the Aggregate query.
func (r *rest) aggregateCount(ctx context.Context, class string) (int64, error) {
	query := fmt.Sprintf("{ Aggregate { %s { meta { count } } } }", class)
	resp, err := r.graphQL(ctx, query)
	if err != nil {
		return 0, err
	}

	raw, ok := resp.Data["Aggregate"][class]
	if !ok {
		return 0, fmt.Errorf("weaviate: aggregate returned no data for %s", class)
	}

	var rows []struct {
		Meta struct {
			Count int64 `json:"count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("weaviate: decode aggregate for %s: %w", class, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("weaviate: aggregate returned no rows for %s", class)
	}
	return rows[0].Meta.Count, nil
}

// buildSearchQuery renders a SearchQuery into GraphQL. Query text and
// filter values are quoted through strconv so user input cannot break out
// of the query string.
func buildSearchQuery(q SearchQuery) string {
	var args []string

	if q.Limit > 0 {
		args = append(args, fmt.Sprintf("limit: %d", q.Limit))
	}

	switch q.Mode {
	case ModeHybrid:
		parts := []string{
			fmt.Sprintf("query: %s", strconv.Quote(q.Query)),
			fmt.Sprintf("alpha: %s", formatFloat(q.Alpha)),
		}
		if len(q.Vector) > 0 {
			parts = append(parts, "vector: "+formatVector(q.Vector))
		}
		if q.TargetVector != "" {
			parts = append(parts, fmt.Sprintf("targetVectors: [%s]", strconv.Quote(q.TargetVector)))
		}
		args = append(args, fmt.Sprintf("hybrid: {%s}", strings.Join(parts, ", ")))

	case ModeNearVector:
		parts := []string{"vector: " + formatVector(q.Vector)}
		if q.TargetVector != "" {
			parts = append(parts, fmt.Sprintf("targetVectors: [%s]", strconv.Quote(q.TargetVector)))
		}
		args = append(args, fmt.Sprintf("nearVector: {%s}", strings.Join(parts, ", ")))

	case ModeNearText:
		parts := []string{fmt.Sprintf("concepts: [%s]", strconv.Quote(q.Query))}
		if q.TargetVector != "" {
			parts = append(parts, fmt.Sprintf("targetVectors: [%s]", strconv.Quote(q.TargetVector)))
		}
		args = append(args, fmt.Sprintf("nearText: {%s}", strings.Join(parts, ", ")))

	case ModeBM25:
		args = append(args, fmt.Sprintf("bm25: {query: %s}", strconv.Quote(q.Query)))
	}

	if where := buildWhere(q.Filters); where != "" {
		args = append(args, "where: "+where)
	}

	props := strings.Join(q.Properties, " ")
	if props == "" {
		props = "content"
	}

	return fmt.Sprintf("{ Get { %s(%s) { %s %s } } }",
		q.Class, strings.Join(args, ", "), props, additionalFields(q.Mode))
}

// additionalFields selects the _additional block per operator: vector
// operators report certainty/distance, keyword operators report score.
func additionalFields(mode SearchMode) string {
	switch mode {
	case ModeNearVector, ModeNearText:
		return "_additional { id certainty distance }"
	default:
		return "_additional { id score }"
	}
}

// buildWhere renders equality filters in deterministic key order.
func buildWhere(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("{path: [%s], operator: Equal, valueText: %s}",
			strconv.Quote(k), strconv.Quote(filters[k])))
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return fmt.Sprintf("{operator: And, operands: [%s]}", strings.Join(clauses, ", "))
}

// parseHit splits one result row into properties and ranking signals. The
// server returns hybrid scores as strings, so both encodings are accepted.
func parseHit(row map[string]any) Hit {
	hit := Hit{Properties: make(map[string]any, len(row))}

	for k, v := range row {
		if k != "_additional" {
			hit.Properties[k] = v
		}
	}

	add, ok := row["_additional"].(map[string]any)
	if !ok {
		return hit
	}

	if id, ok := add["id"].(string); ok {
		hit.ID = id
	}
	if score, ok := parseNumber(add["score"]); ok {
		hit.Score = score
		hit.HasScore = true
	}
	if certainty, ok := parseNumber(add["certainty"]); ok {
		hit.Certainty = certainty
		hit.HasCertainty = true
	}
	if distance, ok := parseNumber(add["distance"]); ok {
		hit.Distance = distance
		hit.HasDistance = true
	}
	return hit
}

// parseNumber accepts float64 or numeric-string values.
func parseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// formatVector renders a vector as a GraphQL float list.
func formatVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatFloat(f))
	}
	b.WriteByte(']')
	return b.String()
}

// formatFloat renders a float32 compactly without exponent surprises.
func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}
