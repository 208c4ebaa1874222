// Package embedding defines the embedder contract: text in, a
// fixed-dimension vector out. Implementations are stateless at this
// layer; retry and timeout policy live inside each client.
package embedding

import "context"

// Embedder converts text into fixed-length vectors.
type Embedder interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one
	// request, returned in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
