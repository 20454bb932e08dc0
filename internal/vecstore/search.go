package vecstore

import (
	"context"
	"log/slog"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/weaviate"
)

// strategy is one retrieval tier. Tiers are tried in order until one
// returns hits; a tier's failure is logged and treated as an empty result,
// never propagated.
type strategy struct {
	name string
	run  func(ctx context.Context) ([]weaviate.Hit, error)
}

// Search runs the tiered-fallback retrieval with the store's default
// hybrid blend. An empty result is success at every tier; the only way to
// get an empty list back is that all five tiers genuinely found nothing.
func (s *Store) Search(ctx context.Context, name, query string, opts SearchOptions) ([]SearchResult, error) {
	return s.search(ctx, name, query, s.cfg.DefaultAlpha, opts)
}

// HybridSearch runs the same tiers with an explicit keyword/vector blend
// (0 pure keyword, 1 pure vector).
func (s *Store) HybridSearch(ctx context.Context, name, query string, alpha float32, opts SearchOptions) ([]SearchResult, error) {
	return s.search(ctx, name, query, alpha, opts)
}

func (s *Store) search(ctx context.Context, name, query string, alpha float32, opts SearchOptions) ([]SearchResult, error) {
	storage := s.names.Register(name)
	if opts.Limit <= 0 {
		opts.Limit = s.cfg.DefaultLimit
	}

	cls := s.schema(ctx, storage)
	props := s.resultProperties(cls)
	for k := range opts.Filters {
		if _, ok := cls.Property(k); ok {
			props = append(props, k)
		}
	}

	handle, herr := s.client.Collection(ctx, storage)
	typed := herr == nil

	var vector []float32
	if s.cfg.ClientVectors && s.enc != nil {
		vector = s.enc.Encode(ctx, query, s.cfg.EmbeddingModel)
	}

	base := weaviate.SearchQuery{
		Class:      storage,
		Query:      query,
		Limit:      opts.Limit,
		Filters:    opts.Filters,
		Properties: props,
	}

	run := func(q weaviate.SearchQuery) ([]weaviate.Hit, error) {
		if !typed {
			return nil, weaviate.ErrNotFound
		}
		hits, err := handle.Search(ctx, q)
		if err != nil && len(q.Filters) > 0 {
			// Native filtering is unavailable on some deployments; drop the
			// where clause and let the client-side filter take over.
			q.Filters = nil
			return handle.Search(ctx, q)
		}
		return hits, err
	}

	tiers := []strategy{
		{name: "hybrid", run: func(ctx context.Context) ([]weaviate.Hit, error) {
			q := base
			q.Mode = weaviate.ModeHybrid
			q.Alpha = alpha
			q.Vector = vector
			return run(q)
		}},
	}

	if s.cfg.ClientVectors && vector != nil {
		tiers = append(tiers, strategy{name: "near_vector", run: func(ctx context.Context) ([]weaviate.Hit, error) {
			q := base
			q.Mode = weaviate.ModeNearVector
			q.Vector = vector
			return s.withSlotFallback(ctx, q, run)
		}})
	} else {
		tiers = append(tiers, strategy{name: "near_text", run: func(ctx context.Context) ([]weaviate.Hit, error) {
			q := base
			q.Mode = weaviate.ModeNearText
			return s.withSlotFallback(ctx, q, run)
		}})
	}

	tiers = append(tiers, strategy{name: "keyword", run: func(ctx context.Context) ([]weaviate.Hit, error) {
		q := base
		q.Mode = weaviate.ModeHybrid
		q.Alpha = 0
		return run(q)
	}})

	if !typed {
		// The typed client cannot see the collection; repeat the tiers raw
		// over REST with the primary text property detected from schema.
		raw := func(q weaviate.SearchQuery) ([]weaviate.Hit, error) {
			hits, err := s.api.Search(ctx, q)
			if err != nil {
				if o, ok := s.secondary(); ok {
					hits, err = o.Search(ctx, q)
				}
			}
			if err != nil && len(q.Filters) > 0 {
				q.Filters = nil
				return s.api.Search(ctx, q)
			}
			return hits, err
		}
		tiers = append(tiers,
			strategy{name: "rest keyword", run: func(ctx context.Context) ([]weaviate.Hit, error) {
				q := base
				q.Mode = weaviate.ModeBM25
				return raw(q)
			}},
			strategy{name: "rest hybrid", run: func(ctx context.Context) ([]weaviate.Hit, error) {
				q := base
				q.Mode = weaviate.ModeHybrid
				q.Alpha = alpha
				q.Vector = vector
				return raw(q)
			}},
			strategy{name: "rest near_text", run: func(ctx context.Context) ([]weaviate.Hit, error) {
				q := base
				q.Mode = weaviate.ModeNearText
				return raw(q)
			}},
		)
	}

	for _, tier := range tiers {
		hits, err := tier.run(ctx)
		if err != nil {
			s.log.Debug("search tier failed",
				slog.String("collection", name),
				slog.String("tier", tier.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(hits) == 0 {
			continue
		}
		s.log.Debug("search tier answered",
			slog.String("collection", name),
			slog.String("tier", tier.name),
			slog.Int("hits", len(hits)),
		)
		return s.normalize(hits, opts), nil
	}

	return []SearchResult{}, nil
}

// withSlotFallback runs a vector-operator query against the default slot
// and retries against the named content slot when the default is rejected
// or empty. Collections with named vectors only answer on the named slot.
func (s *Store) withSlotFallback(ctx context.Context, q weaviate.SearchQuery, run func(weaviate.SearchQuery) ([]weaviate.Hit, error)) ([]weaviate.Hit, error) {
	hits, err := run(q)
	if err == nil && len(hits) > 0 {
		return hits, nil
	}

	q.TargetVector = s.cfg.ContentProperty
	slotHits, slotErr := run(q)
	if slotErr == nil {
		return slotHits, nil
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// resultProperties are the properties requested from every search tier:
// the detected primary text property plus the standard provenance fields.
func (s *Store) resultProperties(cls *weaviate.Class) []string {
	content := s.cfg.ContentProperty
	if _, ok := cls.Property(content); !ok {
		// The configured name is missing from this schema; fall back to the
		// first declared text property.
		for _, p := range cls.Properties {
			if p.Type() == weaviate.TypeText {
				content = p.Name
				break
			}
		}
	}

	props := []string{content}
	for _, extra := range []string{"source", "page", "section"} {
		if _, ok := cls.Property(extra); ok {
			props = append(props, extra)
		}
	}
	return props
}

// normalize converts raw hits into caller-facing results. Certainty maps
// straight into [0,1]; distances are inverted; keyword and hybrid scores
// are scaled by the call's maximum. Scores stay strategy-specific and are
// comparable only within this one call.
func (s *Store) normalize(hits []weaviate.Hit, opts SearchOptions) []SearchResult {
	maxScore := 0.0
	for _, hit := range hits {
		if hit.HasScore && hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	out := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if !matchesFilters(hit.Properties, opts.Filters) {
			continue
		}

		res := SearchResult{ID: hit.ID}
		if v, ok := hit.Properties[s.cfg.ContentProperty].(string); ok {
			res.Content = v
		} else {
			// Auto-detected primary property from a non-standard schema.
			for _, v := range hit.Properties {
				if sv, ok := v.(string); ok && res.Content == "" {
					res.Content = sv
				}
			}
		}
		if v, ok := hit.Properties["source"].(string); ok {
			res.Source = v
		}
		if v, ok := hit.Properties["page"].(float64); ok {
			res.Page = int(v)
		}
		if v, ok := hit.Properties["section"].(string); ok {
			res.Section = v
		}

		switch {
		case hit.HasCertainty:
			res.Score = clamp01(hit.Certainty)
		case hit.HasDistance:
			res.Score = clamp01(1 / (1 + hit.Distance))
		case hit.HasScore && maxScore > 0:
			res.Score = clamp01(hit.Score / maxScore)
		}

		out = append(out, res)
	}
	return out
}

// matchesFilters applies equality filters client-side. Native filtering
// already ran where supported; this catches strategies that had to drop
// the where clause.
func matchesFilters(props map[string]any, filters map[string]string) bool {
	for k, want := range filters {
		got, ok := props[k].(string)
		if ok && got != want {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
