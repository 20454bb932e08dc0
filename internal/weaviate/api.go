package weaviate

import (
	"context"
	"log/slog"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/endpoint"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/transport"
)

// API is the capability surface one REST major version provides. One
// concrete adapter exists per supported version; the facade selects its
// primary adapter once at construction instead of probing per call.
//
// Create-style operations return an [*APIError] the caller can classify
// with [IsAlreadyExists], [IsMethodNotAllowed], and [IsValidation] to walk
// the ensure-collection fallback chain.
type API interface {
	// Version reports which wire schema the adapter speaks.
	Version() string
	// Ready probes the deployment's readiness endpoint.
	Ready(ctx context.Context) error
	// ListSchema returns the storage names of every visible collection.
	ListSchema(ctx context.Context) ([]string, error)
	// GetSchema fetches one collection schema, or ErrNotFound.
	GetSchema(ctx context.Context, class string) (*Class, error)
	// CreateSchema creates a collection via the standard create endpoint.
	CreateSchema(ctx context.Context, c *Class) error
	// CreateSchemaAlternate creates via the alternate endpoint some proxied
	// installs expose when the standard one answers 405.
	CreateSchemaAlternate(ctx context.Context, c *Class) error
	// UpsertSchema writes the schema directly to the class path.
	UpsertSchema(ctx context.Context, c *Class) error
	// DeleteSchema removes a collection and its objects.
	DeleteSchema(ctx context.Context, class string) error
	// InsertObject stores a single object.
	InsertObject(ctx context.Context, obj *Object) error
	// BatchInsert stores a chunk of objects, reporting per-object outcomes
	// when the wire provides them.
	BatchInsert(ctx context.Context, objs []*Object) (*BatchResult, error)
	// Count returns the number of objects in a collection.
	Count(ctx context.Context, class string) (int64, error)
	// Search runs one retrieval query over the shared GraphQL endpoint.
	Search(ctx context.Context, q SearchQuery) ([]Hit, error)
}

// New selects the adapter for the given API version. Unknown versions fall
// back to v1, which every deployment supports.
func New(version string, tc *transport.Client, res *endpoint.Resolver, log *slog.Logger) API {
	r := newREST(tc, res, log)
	if version == endpoint.VersionV2 {
		return &apiV2{rest: r}
	}
	return &apiV1{rest: r}
}
