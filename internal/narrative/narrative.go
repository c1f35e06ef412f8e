// Package narrative turns a question and its aggregated result table into
// explanatory business text. Two strategies exist: a deterministic
// rule-based engine (the default) and a locally hosted learned narrator
// whose output is filtered and which falls back to the rule engine when it
// produces nothing usable. Narration is the one pipeline stage that must
// always return non-empty text and never an error.
package narrative

import (
	"context"

	"go.uber.org/zap"

	"insightweaver/internal/dataset"
	"insightweaver/internal/kb"
	"insightweaver/internal/llm"
)

// Strategy selects the narration implementation at construction time.
type Strategy string

const (
	// StrategyRuleBased is the deterministic template engine.
	StrategyRuleBased Strategy = "rules"

	// StrategyLearnedWithFallback tries the local model first and falls
	// back to the rule engine when the filtered output is empty.
	StrategyLearnedWithFallback Strategy = "learned"
)

// Generator produces a narrative for a result table.
type Generator interface {
	// Narrate never returns an error and never returns empty text.
	Narrate(ctx context.Context, question string, table *dataset.Table, stats dataset.SummaryStats) string
}

// Config wires a Generator.
type Config struct {
	Strategy Strategy

	// Learned path collaborators; ignored for StrategyRuleBased.
	Client    llm.Client
	Retriever ContextRetriever
	Logger    *zap.Logger
}

// ContextRetriever supplies KB context for the learned narrator's prompt.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]kb.ContextDocument, error)
}

// NewGenerator builds the configured strategy. An unknown strategy, or a
// learned strategy with no client, degrades to the rule engine: narration
// must always be able to produce output.
func NewGenerator(cfg Config) Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := &ruleEngine{}

	if cfg.Strategy == StrategyLearnedWithFallback && cfg.Client != nil {
		return &learnedGenerator{
			client:    cfg.Client,
			retriever: cfg.Retriever,
			fallback:  rules,
			logger:    logger,
		}
	}
	return rules
}
