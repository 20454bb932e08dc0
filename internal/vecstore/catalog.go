package vecstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/weaviate"
)

// standardClass is the property schema every collection is created with:
// content, source, source_type, created_at, plus the optional metadata
// properties callers commonly carry. When client-side vectors are enabled
// the schema disables server vectorization and declares a named "content"
// vector slot.
func (s *Store) standardClass(storage string) *weaviate.Class {
	cls := &weaviate.Class{
		Class: storage,
		Properties: []weaviate.Property{
			{Name: s.cfg.ContentProperty, DataType: []string{weaviate.TypeText}},
			{Name: "source", DataType: []string{weaviate.TypeText}},
			{Name: "source_type", DataType: []string{weaviate.TypeText}},
			{Name: "created_at", DataType: []string{weaviate.TypeDate}},
			{Name: "page", DataType: []string{weaviate.TypeInt}},
			{Name: "section", DataType: []string{weaviate.TypeText}},
		},
	}
	if s.cfg.ClientVectors {
		cls.Vectorizer = "none"
		cls.VectorConfig = map[string]weaviate.VectorConfig{
			s.cfg.ContentProperty: {
				Vectorizer:      map[string]any{"none": map[string]any{}},
				VectorIndexType: "hnsw",
			},
		}
	}
	return cls
}

// coerceTypes returns a copy of cls with every non-text property coerced to
// text. Some deployments reject date or int properties; text always passes
// validation and keeps the record queryable.
func coerceTypes(cls *weaviate.Class) *weaviate.Class {
	out := *cls
	out.Properties = make([]weaviate.Property, len(cls.Properties))
	for i, p := range cls.Properties {
		if p.Type() != weaviate.TypeText {
			p.DataType = []string{weaviate.TypeText}
		}
		out.Properties[i] = p
	}
	return &out
}

// EnsureCollection creates the collection if needed and reports whether it
// is usable. The creation chain walks typed client, REST v2, and REST v1;
// "already exists" counts as success at every step, a 405 diverts to the
// alternate create endpoint and then a direct class-path upsert, and a
// validation rejection earns one retry with coerced property types.
func (s *Store) EnsureCollection(ctx context.Context, name string) (bool, error) {
	storage := s.names.Register(name)
	cls := s.standardClass(storage)

	attempts := []struct {
		label string
		api   weaviate.API
		fn    func(context.Context, *weaviate.Class) error
	}{
		{"typed client", s.api, func(ctx context.Context, c *weaviate.Class) error { return s.client.Create(ctx, c) }},
		{"rest v2", s.v2, s.v2.CreateSchema},
		{"rest v1", s.v1, s.v1.CreateSchema},
	}

	var lastErr error
	for _, attempt := range attempts {
		if attempt.api == s.v2 && s.cfg.DisableV2Probe {
			continue
		}

		err := attempt.fn(ctx, cls)
		if err == nil || weaviate.IsAlreadyExists(err) {
			s.log.Debug("collection ensured",
				slog.String("collection", name),
				slog.String("storage", storage),
				slog.String("via", attempt.label),
			)
			return true, nil
		}
		if weaviate.IsMethodNotAllowed(err) {
			if s.createViaAlternates(ctx, attempt.api, cls) {
				return true, nil
			}
		}

		lastErr = err
		s.log.Debug("create attempt failed",
			slog.String("collection", name),
			slog.String("via", attempt.label),
			slog.String("error", err.Error()),
		)
	}

	return false, fmt.Errorf("vecstore: create collection %q: %w", name, lastErr)
}

// createViaAlternates handles deployments whose standard create endpoint
// answers 405: try the alternate create endpoint, then write the schema
// directly to the class path, retrying once with coerced property types
// when the server rejects the schema.
func (s *Store) createViaAlternates(ctx context.Context, api weaviate.API, cls *weaviate.Class) bool {
	err := api.CreateSchemaAlternate(ctx, cls)
	if err == nil || weaviate.IsAlreadyExists(err) {
		return true
	}

	err = api.UpsertSchema(ctx, cls)
	if err == nil || weaviate.IsAlreadyExists(err) {
		return true
	}
	if weaviate.IsValidation(err) {
		err = api.UpsertSchema(ctx, coerceTypes(cls))
		if err == nil || weaviate.IsAlreadyExists(err) {
			s.log.Info("collection created with coerced property types",
				slog.String("storage", cls.Class),
			)
			return true
		}
	}

	s.log.Debug("alternate create endpoints failed",
		slog.String("storage", cls.Class),
		slog.String("error", err.Error()),
	)
	return false
}

// Ready polls both surfaces until one can see the collection or the timeout
// passes. On timeout a final union across every listing strategy decides;
// REST visibility alone is enough to proceed.
func (s *Store) Ready(ctx context.Context, name string, timeout, interval time.Duration) bool {
	storage := s.names.Register(name)
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := s.client.Refresh(ctx); err == nil && s.client.Has(ctx, storage) {
			return true
		}
		if s.restVisible(ctx, storage) {
			return true
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}

	// Final union check across every listing strategy.
	for _, listed := range s.ListCollections(ctx) {
		if s.names.Register(listed) == storage || listed == storage {
			return true
		}
	}
	s.log.Warn("collection never became visible",
		slog.String("collection", name),
		slog.Duration("timeout", timeout),
	)
	return false
}

// DeleteCollection removes the collection from whichever surface can see
// it. Deleting a collection no surface knows is not an error.
func (s *Store) DeleteCollection(ctx context.Context, name string) (bool, error) {
	storage := s.names.Register(name)

	var lastErr error
	deleted := false
	surfaces := []weaviate.API{s.api}
	if o, ok := s.secondary(); ok {
		surfaces = append(surfaces, o)
	}
	for _, api := range surfaces {
		err := api.DeleteSchema(ctx, storage)
		if err == nil {
			deleted = true
			break
		}
		var apiErr *weaviate.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			continue
		}
		lastErr = err
	}

	s.schemas.Delete(storage)
	s.client.Forget(storage)

	if deleted {
		s.log.Info("collection deleted", slog.String("collection", name))
		return true, nil
	}
	if lastErr != nil {
		return false, fmt.Errorf("vecstore: delete collection %q: %w", name, lastErr)
	}
	return false, nil
}

// secondary returns the non-primary adapter, and false when the config
// toggles rule it out (v2 endpoints stay untouched under DisableV2Probe).
func (s *Store) secondary() (weaviate.API, bool) {
	o := s.v2
	if s.api != s.v1 {
		o = s.v1
	}
	if o == s.v2 && s.cfg.DisableV2Probe {
		return nil, false
	}
	return o, true
}
