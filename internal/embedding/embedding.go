// Package embedding provides text embedding providers for title and chunk
// similarity search.
package embedding

import "context"

// Embedder turns text into fixed-length vectors. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one embedding per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
