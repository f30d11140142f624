// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/engramdev/engram/pkg/embeddings"
	"github.com/engramdev/engram/pkg/embeddings/ollama"
	"github.com/engramdev/engram/pkg/embeddings/openai"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
}

// NewEmbedder constructs the configured embedding provider, wrapped with
// the default retry policy.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		inner embeddings.Embedder
		err   error
	)

	switch o.ProviderType {
	case "ollama":
		inner, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		inner, err = openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			APIKey:  o.APIKey,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	return embeddings.WithRetry(inner, embeddings.DefaultRetryConfig()), nil
}
