// Package pipeline composes retrieval, synthesis, execution, and narration
// into the single Answer call the CLI and chat UI consume.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"insightweaver/internal/dataset"
	"insightweaver/internal/executor"
	"insightweaver/internal/narrative"
)

// DatasetProvider is the dataset boundary: idempotent, one logical table
// per process.
type DatasetProvider interface {
	Load(ctx context.Context) (*dataset.Table, error)
}

// Synthesizer is the plan-synthesis boundary.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string) (string, error)
}

// Result is the structured answer for one question.
type Result struct {
	Question  string
	Program   string
	Table     *dataset.Table
	Stats     dataset.SummaryStats
	Narrative string
}

// Pipeline sequences the stages. It holds no per-question state; a single
// instance is safe for concurrent questions because the dataset is
// read-only and the memoized collaborators guard their own init.
type Pipeline struct {
	provider    DatasetProvider
	synthesizer Synthesizer
	narrator    narrative.Generator
	logger      *zap.Logger
}

// New wires a pipeline.
func New(provider DatasetProvider, synthesizer Synthesizer, narrator narrative.Generator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		provider:    provider,
		synthesizer: synthesizer,
		narrator:    narrator,
		logger:      logger,
	}
}

// Answer runs the full pipeline for one question: load -> synthesize ->
// execute -> narrate. Any stage failure aborts the remaining stages and
// propagates the typed error unchanged; there are no retries at this
// layer. Narration cannot fail, so a returned Result always has a
// non-empty narrative.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	start := time.Now()

	ds, err := p.provider.Load(ctx)
	if err != nil {
		return nil, err
	}

	program, err := p.synthesizer.Synthesize(ctx, question)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("plan synthesized",
		zap.String("question", question),
		zap.Int("program_len", len(program)))

	table, stats, err := executor.Execute(ds, program)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("plan executed",
		zap.Int("rows", stats.RowCount),
		zap.Strings("columns", stats.Columns))

	text := p.narrator.Narrate(ctx, question, table, stats)

	p.logger.Info("question answered",
		zap.String("question", question),
		zap.Int("rows", stats.RowCount),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		Question:  question,
		Program:   program,
		Table:     table,
		Stats:     stats,
		Narrative: text,
	}, nil
}
