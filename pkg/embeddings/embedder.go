// Package embeddings defines the text embedding contract and the cosine
// similarity primitive the retrieval engine is built on.
package embeddings

import "context"

// Embedder converts text into dense vectors for similarity search.
// Implementations must produce vectors of a single fixed dimensionality.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
