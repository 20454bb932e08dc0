package vecstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/endpoint"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/names"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/transport"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/vectorizer"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/weaviate"
)

// Config holds every knob of the access layer. The zero value (plus a URL)
// is a working configuration: server-side vectorization assumed, standard
// prefixes probed, moderate retries, domain rewrite and v2 probing on.
type Config struct {
	// URL is the vector store connection string.
	URL string
	// APIKey authenticates every request when non-empty.
	APIKey string
	// PrefixHints are path prefixes probed before the default list.
	PrefixHints []string
	// VersionOverride forces the REST API version ("v1"/"v2"), skipping
	// detection.
	VersionOverride string
	// DisableDomainRewrite turns off the legacy→canonical domain rewrite.
	DisableDomainRewrite bool
	// DisableV2Probe skips v2 endpoints during discovery and listing.
	DisableV2Probe bool
	// DisableAltPaths skips the curated alternate mount patterns.
	DisableAltPaths bool
	// TLSSkipVerify disables certificate verification. Diagnostics only.
	TLSSkipVerify bool
	// CABundle is an optional PEM bundle path for private CAs.
	CABundle string
	// EnableHTTP2 opts in to protocol negotiation.
	EnableHTTP2 bool
	// MaxRetries is the transport retry budget per request. Zero means the
	// transport default; -1 disables retries.
	MaxRetries int
	// RequestTimeout bounds one request attempt.
	RequestTimeout time.Duration
	// SchemaCacheTTL bounds the typed client's collection-list cache age.
	SchemaCacheTTL time.Duration

	// ClientVectors enables local query/document vectorization for
	// deployments without a server-side vectorizer.
	ClientVectors bool
	// EmbeddingModel names the local embedding model used when
	// ClientVectors is set.
	EmbeddingModel string
	// IncludeMetadata merges caller metadata into storage objects. Off by
	// default; metadata schemas drift the most across deployments.
	IncludeMetadata bool

	// BatchSize caps objects per submission chunk.
	BatchSize int
	// MaxBatchBytes caps the estimated payload size per chunk.
	MaxBatchBytes int
	// MaxIngestDuration aborts an ingestion call that runs past it, keeping
	// the partial result.
	MaxIngestDuration time.Duration
	// ProgressEvery logs ingestion progress after this many objects.
	ProgressEvery int

	// ContentProperty is the primary text property name ("content").
	ContentProperty string
	// DefaultLimit is the search result cap when the caller passes none.
	DefaultLimit int
	// DefaultAlpha is the hybrid blend used by plain Search.
	DefaultAlpha float32

	// Encoder is the optional local query vectorizer. Built from the
	// environment when nil and ClientVectors is set.
	Encoder *vectorizer.Encoder
	// Logger receives all access-layer logging. Defaults to slog.Default.
	Logger *slog.Logger
}

// ApplyDefaults fills zero-valued fields with safe defaults.
func (c *Config) ApplyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.MaxBatchBytes == 0 {
		c.MaxBatchBytes = 4 << 20
	}
	if c.MaxIngestDuration == 0 {
		c.MaxIngestDuration = 10 * time.Minute
	}
	if c.ProgressEvery == 0 {
		c.ProgressEvery = 200
	}
	if c.ContentProperty == "" {
		c.ContentProperty = "content"
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.DefaultAlpha == 0 {
		c.DefaultAlpha = 0.5
	}
}

// Store is the connection-scoped context object: one per configuration,
// passed explicitly instead of hiding cached state in globals. Safe for
// concurrent use; independent calls share the endpoint descriptor and the
// per-collection handle cache.
type Store struct {
	cfg Config

	tc     *transport.Client
	res    *endpoint.Resolver
	v1     weaviate.API
	v2     weaviate.API
	api    weaviate.API // primary adapter, selected once at construction
	client *weaviate.Client
	enc    *vectorizer.Encoder
	names  *names.Registry
	log    *slog.Logger

	// schemas caches fetched collection schemas by storage name.
	schemas sync.Map
}

// New builds a Store for one configuration. Endpoint discovery runs here
// and is non-fatal: an unreachable server still yields a usable Store whose
// errors surface at actual use.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	if cfg.URL == "" {
		return nil, errors.New("vecstore: URL is required")
	}

	log := logging.WithComponent(cfg.Logger, "vecstore")

	tc, err := transport.NewClient(transport.Config{
		APIKey:         cfg.APIKey,
		TLSSkipVerify:  cfg.TLSSkipVerify,
		CABundle:       cfg.CABundle,
		EnableHTTP2:    cfg.EnableHTTP2,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: cfg.RequestTimeout,
		DomainFallback: !cfg.DisableDomainRewrite,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("vecstore: %w", err)
	}

	res := endpoint.NewResolver(endpoint.Config{
		BaseURL:         cfg.URL,
		PrefixHints:     cfg.PrefixHints,
		VersionOverride: cfg.VersionOverride,
		DomainRewrite:   !cfg.DisableDomainRewrite,
		ProbeV2:         !cfg.DisableV2Probe,
		DisableAltPaths: cfg.DisableAltPaths,
		Logger:          cfg.Logger,
	}, tc)

	version := res.DetectVersion(ctx, false)

	s := &Store{
		cfg:   cfg,
		tc:    tc,
		res:   res,
		v1:    weaviate.New(endpoint.VersionV1, tc, res, cfg.Logger),
		v2:    weaviate.New(endpoint.VersionV2, tc, res, cfg.Logger),
		enc:   cfg.Encoder,
		names: names.NewRegistry(),
		log:   log,
	}
	if version == endpoint.VersionV2 {
		s.api = s.v2
	} else {
		s.api = s.v1
	}
	s.client = weaviate.NewClient(s.api, cfg.SchemaCacheTTL, cfg.Logger)

	if s.enc == nil && cfg.ClientVectors {
		s.enc = vectorizer.NewEncoder(nil, cfg.Logger)
	}

	log.Debug("store constructed",
		slog.String("url", cfg.URL),
		slog.String("version", version),
		slog.Bool("client_vectors", cfg.ClientVectors),
	)
	return s, nil
}

// Describe returns the resolved endpoint descriptor, informational only.
func (s *Store) Describe(ctx context.Context) (endpoint.Descriptor, error) {
	return s.res.Resolve(ctx)
}

// Probes exposes the last discovery pass for the diagnostics command.
func (s *Store) Probes() []endpoint.ProbeResult {
	return s.res.LastProbes()
}

// Ping probes the deployment's readiness endpoint through the primary
// adapter, falling back to the other surface before giving up.
func (s *Store) Ping(ctx context.Context) error {
	err := s.api.Ready(ctx)
	if err == nil {
		return nil
	}
	if o, ok := s.secondary(); ok {
		if err = o.Ready(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("vecstore: store not ready: %w", err)
}

// Close releases the shared connection pool. The Store must not be used
// afterwards; TLS or negotiation changes require a new Store.
func (s *Store) Close() {
	s.tc.Close()
}

// schema returns the collection schema, fetched once per storage name and
// cached. The standard schema stands in when no surface can produce one,
// so property filtering still has something to filter against.
func (s *Store) schema(ctx context.Context, storage string) *weaviate.Class {
	if cached, ok := s.schemas.Load(storage); ok {
		return cached.(*weaviate.Class)
	}

	cls, err := s.api.GetSchema(ctx, storage)
	if err != nil {
		if o, ok := s.secondary(); ok {
			cls, err = o.GetSchema(ctx, storage)
		}
	}
	if err != nil {
		s.log.Debug("schema unavailable, assuming standard schema",
			slog.String("collection", storage),
			slog.String("error", err.Error()),
		)
		return s.standardClass(storage)
	}

	s.schemas.Store(storage, cls)
	return cls
}

// count returns the collection's object count, or -1 when no surface can
// produce one.
func (s *Store) count(ctx context.Context, storage string) int64 {
	if n, err := s.api.Count(ctx, storage); err == nil {
		return n
	}
	if o, ok := s.secondary(); ok {
		if n, err := o.Count(ctx, storage); err == nil {
			return n
		}
	}
	return -1
}

// restVisible reports whether any REST surface can see the collection,
// bypassing the typed client's cache entirely.
func (s *Store) restVisible(ctx context.Context, storage string) bool {
	if _, err := s.v1.GetSchema(ctx, storage); err == nil {
		return true
	}
	if !s.cfg.DisableV2Probe {
		if _, err := s.v2.GetSchema(ctx, storage); err == nil {
			return true
		}
	}
	return false
}
