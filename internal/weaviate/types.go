// Package weaviate speaks the vector store's two wire surfaces: the classic
// v1 schema/objects REST API and the newer v2 collections API, both behind
// one small capability interface selected once at construction, plus the
// GraphQL query endpoint shared by every deployment. The typed [Client] on
// top adds the collection-list cache and per-collection handles the rest of
// the access layer works with.
package weaviate

import (
	"errors"
	"fmt"
	"strings"
)

// Standard property data types used in collection schemas (v1 wire names).
const (
	TypeText = "text"
	TypeInt  = "int"
	TypeDate = "date"
)

// Property is one field in a collection schema. The v1 wire encodes the
// data type as a one-element array; the v2 wire uses a scalar. This struct
// is the common in-memory form.
type Property struct {
	// Name is the property name.
	Name string `json:"name"`
	// DataType is the v1-style data type list (normally one element).
	DataType []string `json:"dataType"`
	// Tokenization optionally overrides keyword tokenization for text.
	Tokenization string `json:"tokenization,omitempty"`
}

// Type returns the scalar data type of the property.
func (p Property) Type() string {
	if len(p.DataType) == 0 {
		return ""
	}
	return p.DataType[0]
}

// VectorConfig describes one named vector slot on a collection.
type VectorConfig struct {
	// Vectorizer holds the module configuration for the slot, keyed by
	// module name ("none" for client-supplied vectors).
	Vectorizer map[string]any `json:"vectorizer,omitempty"`
	// VectorIndexType names the index backing the slot.
	VectorIndexType string `json:"vectorIndexType,omitempty"`
}

// Class is a collection schema in the common in-memory form (v1 wire shape).
type Class struct {
	// Class is the sanitized storage name.
	Class string `json:"class"`
	// Description is shown in server dashboards, optional.
	Description string `json:"description,omitempty"`
	// Properties is the declared property schema.
	Properties []Property `json:"properties"`
	// Vectorizer selects server-side vectorization ("none" disables it,
	// empty keeps the server default).
	Vectorizer string `json:"vectorizer,omitempty"`
	// VectorConfig declares named vector slots, when the collection uses them.
	VectorConfig map[string]VectorConfig `json:"vectorConfig,omitempty"`
}

// Property returns the named property and whether it is declared.
func (c *Class) Property(name string) (Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// NamedVector reports whether the schema declares the given vector slot.
func (c *Class) NamedVector(slot string) bool {
	_, ok := c.VectorConfig[slot]
	return ok
}

// Object is one storage object as sent to the server.
type Object struct {
	// ID is the object identifier; server-assigned when empty.
	ID string `json:"id,omitempty"`
	// Class is the collection the object belongs to.
	Class string `json:"class"`
	// Properties carries the schema-filtered payload.
	Properties map[string]any `json:"properties"`
	// Vector is the single default vector, when supplied.
	Vector []float32 `json:"vector,omitempty"`
	// Vectors carries named vectors keyed by slot.
	Vectors map[string][]float32 `json:"vectors,omitempty"`
}

// BatchResult summarizes one bulk insert.
type BatchResult struct {
	// Inserted counts objects the server reported as stored.
	Inserted int
	// Failures holds per-object error messages when the response provides
	// them.
	Failures []string
	// PerObject reports whether the server returned per-object outcomes;
	// when false, Inserted counts whole accepted chunks.
	PerObject bool
}

// ErrNotFound marks a collection (or object) that no surface can see.
var ErrNotFound = errors.New("weaviate: not found")

// APIError is a non-2xx REST response with its decoded message.
type APIError struct {
	// StatusCode is the HTTP status.
	StatusCode int
	// Message is the server's human-readable error message.
	Message string
}

// Error formats the status and server message.
func (e *APIError) Error() string {
	return fmt.Sprintf("weaviate: server returned %d: %s", e.StatusCode, e.Message)
}

// IsAlreadyExists reports whether err says the collection already exists,
// which ensure-style callers tolerate.
func IsAlreadyExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 409 ||
		strings.Contains(strings.ToLower(apiErr.Message), "already exists") ||
		strings.Contains(strings.ToLower(apiErr.Message), "already used")
}

// IsMethodNotAllowed reports a 405, the signal to try alternate endpoints.
func IsMethodNotAllowed(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 405
}

// IsValidation reports a schema/payload rejection (400 or 422).
func IsValidation(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 400 || apiErr.StatusCode == 422
}
