// Package synthesis turns a natural-language business question into an
// aggregation plan by prompting a code-generation model with retrieved
// domain context and intent-specific guidance.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"insightweaver/internal/intent"
	"insightweaver/internal/kb"
	"insightweaver/internal/llm"
	"insightweaver/internal/plan"
)

// contextTopK is how many KB documents ground the synthesis prompt.
const contextTopK = 4

// SynthesisError means the model call failed or returned unusable content.
// Fatal to the current question; there is no retry.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("plan synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ContextRetriever is the retrieval boundary the synthesizer depends on.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]kb.ContextDocument, error)
}

// Synthesizer builds the constrained prompt and requests one completion.
type Synthesizer struct {
	retriever ContextRetriever
	client    llm.Client
	logger    *zap.Logger
}

// NewSynthesizer wires a synthesizer. The client should be configured with
// deterministic-leaning sampling (the pipeline uses temperature 0.1).
func NewSynthesizer(retriever ContextRetriever, client llm.Client, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{retriever: retriever, client: client, logger: logger}
}

// Synthesize produces one cleaned plan text for the question. At most one
// completion request is made per invocation; failures surface as
// SynthesisError (or RetrievalError from the retriever).
func (s *Synthesizer) Synthesize(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", &SynthesisError{Err: fmt.Errorf("empty question")}
	}

	docs, err := s.retriever.Retrieve(ctx, question, contextTopK)
	if err != nil {
		return "", err
	}

	bucket := intent.Classify(question)
	s.logger.Debug("question classified",
		zap.String("intent", bucket.String()),
		zap.Int("context_docs", len(docs)))

	prompt := BuildPrompt(question, docs, bucket)
	completion, err := s.client.CompleteWithSystem(ctx, systemContract, prompt)
	if err != nil {
		return "", &SynthesisError{Err: err}
	}

	program := plan.StripFences(completion)
	if program == "" {
		return "", &SynthesisError{Err: fmt.Errorf("model returned empty content")}
	}
	return program, nil
}
