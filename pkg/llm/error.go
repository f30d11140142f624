package llm

import "errors"

var (
	// ErrCompletion is returned when completion generation fails.
	ErrCompletion = errors.New("completion failed")

	// ErrConnection is returned when the LLM backend is unreachable.
	ErrConnection = errors.New("llm backend connection failed")
)
