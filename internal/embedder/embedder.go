// Package embedder provides pluggable text-to-vector backends behind one
// interface. Ollama and OpenAI/Azure speak their REST APIs over plain HTTP;
// the compat backend bridges any OpenAI-compatible gateway through the eino
// embedding component. The access layer only ever sees [Embedder].
package embedder

import (
	"context"
)

// Embedder converts batches of text into fixed-length vectors.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns one vector per input text, parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
