// Package llm provides the generative-model boundaries used by the
// pipeline: an OpenAI-compatible chat client for code synthesis and an
// Ollama client for the locally hosted narrator. Both are swappable behind
// the same Client interface.
package llm

import "context"

// Client is the minimal completion surface the pipeline depends on.
type Client interface {
	// Complete sends a prompt and returns a single text completion.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with separate system instructions.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
