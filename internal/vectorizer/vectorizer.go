// Package vectorizer turns query text into vectors for deployments without
// server-side vectorization. The embedding backend is loaded lazily, cached
// by model name, and every failure degrades to a nil vector so callers fall
// back to keyword search instead of erroring.
package vectorizer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/embedder"
	"github.com/bolajil/genai-knowledge-assistant-sub002/internal/logging"
)

// Factory builds an embedding backend for a model name. The default
// factory resolves the backend from the environment; tests inject fakes.
type Factory func(ctx context.Context, model string) (embedder.Embedder, error)

// Encoder is the lazy, load-once text encoder. Safe for concurrent use;
// the loaded backend is reused until the requested model name changes.
type Encoder struct {
	factory Factory
	log     *slog.Logger

	mu    sync.Mutex
	model string
	emb   embedder.Embedder
}

// NewEncoder builds an Encoder. A nil factory uses [embedder.NewFromEnv].
func NewEncoder(factory Factory, log *slog.Logger) *Encoder {
	if factory == nil {
		factory = embedder.NewFromEnv
	}
	return &Encoder{
		factory: factory,
		log:     logging.WithComponent(log, "vectorizer"),
	}
}

// Encode converts text into a vector using the named model, loading the
// backend on first use and reloading only when the model name changes.
// Any failure — load or embed — returns nil so the caller can degrade to
// keyword retrieval.
func (e *Encoder) Encode(ctx context.Context, text, model string) []float32 {
	emb := e.backend(ctx, model)
	if emb == nil {
		return nil
	}

	vecs, err := emb.Embed(ctx, []string{text})
	if err != nil || len(vecs) == 0 || len(vecs[0]) == 0 {
		if err != nil {
			e.log.Warn("vectorizer: encoding failed, degrading to keyword search",
				slog.String("model", model),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return vecs[0]
}

// EncodeBatch converts a batch of texts, or returns nil on any failure.
// Used by client-side document embedding before ingestion.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string, model string) [][]float32 {
	emb := e.backend(ctx, model)
	if emb == nil {
		return nil
	}

	vecs, err := emb.Embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		if err != nil {
			e.log.Warn("vectorizer: batch encoding failed",
				slog.String("model", model),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return vecs
}

// backend returns the cached embedding backend, loading it under the lock
// so concurrent callers share one load.
func (e *Encoder) backend(ctx context.Context, model string) embedder.Embedder {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.emb != nil && e.model == model {
		return e.emb
	}

	emb, err := e.factory(ctx, model)
	if err != nil {
		e.log.Warn("vectorizer: backend load failed",
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		e.emb = nil
		e.model = ""
		return nil
	}

	e.emb = emb
	e.model = model
	e.log.Debug("vectorizer: backend loaded", slog.String("model", model))
	return emb
}
