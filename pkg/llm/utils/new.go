// Package llmutils is the llm utility package
package llmutils

import (
	"fmt"

	"github.com/engramdev/engram/pkg/llm"
	"github.com/engramdev/engram/pkg/llm/provider/ollama"
	"github.com/engramdev/engram/pkg/llm/provider/openai"
)

type NewCompleterOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
}

// NewCompleter constructs the configured chat completion provider.
func NewCompleter(o *NewCompleterOpts) (llm.Completer, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewCompleter(ollama.CompleterConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "openai":
		return openai.NewCompleter(openai.CompleterConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			APIKey:  o.APIKey,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", o.ProviderType)
	}
}
