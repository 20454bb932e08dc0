package embedder

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
)

// CompatEmbedder implements [Embedder] over any OpenAI-compatible embedding
// gateway (Zhipu, DeepSeek, vLLM, LiteLLM proxies) through the eino
// embedding component, which handles the compatibility quirks those
// gateways accumulate.
type CompatEmbedder struct {
	inner embedding.Embedder
}

// CompatConfig holds the settings for constructing a CompatEmbedder.
type CompatConfig struct {
	// APIKey authenticates against the gateway.
	APIKey string
	// BaseURL is the gateway's OpenAI-compatible API base.
	BaseURL string
	// Model is the embedding model name the gateway serves.
	Model string
}

// NewCompatEmbedder constructs a CompatEmbedder from the given config.
func NewCompatEmbedder(ctx context.Context, cfg *CompatConfig) (*CompatEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("compat embedder: API key is required")
	}

	inner, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("compat embedder: %w", err)
	}
	return &CompatEmbedder{inner: inner}, nil
}

// Embed converts a batch of texts into their corresponding embeddings.
// The eino component returns float64 vectors; the access layer works in
// float32 throughout, so the result is converted element-wise.
func (e *CompatEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.inner.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("compat embedder: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("compat embedder: expected %d embeddings, got %d", len(texts), len(vectors))
	}

	out := make([][]float32, len(vectors))
	for i, vec := range vectors {
		out[i] = make([]float32, len(vec))
		for j, v := range vec {
			out[i][j] = float32(v)
		}
	}
	return out, nil
}
