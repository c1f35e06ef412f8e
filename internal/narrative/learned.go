package narrative

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"insightweaver/internal/dataset"
	"insightweaver/internal/llm"
)

// narratorContextTopK is how many KB documents ground the learned prompt.
const narratorContextTopK = 5

const learnedSystem = "You are a senior supply chain analytics expert. " +
	"You receive a business question, a preview of computed metrics, " +
	"and some domain knowledge. You explain the results clearly and concisely " +
	"in 3-6 sentences, focusing on the main patterns and practical actions."

// learnedGenerator drives the locally hosted narrator model. The model is
// small and unreliable for structured business reasoning, so its output
// goes through an aggressive cleanup filter; when nothing survives, the
// rule engine takes over. This generator therefore also never returns
// empty text.
type learnedGenerator struct {
	client    llm.Client
	retriever ContextRetriever
	fallback  *ruleEngine
	logger    *zap.Logger
}

func (g *learnedGenerator) Narrate(ctx context.Context, question string, table *dataset.Table, stats dataset.SummaryStats) string {
	text, ok := g.tryLearned(ctx, question, table, stats)
	if !ok {
		g.logger.Debug("learned narrator degraded, using rule engine",
			zap.String("question", question))
		return g.fallback.Narrate(ctx, question, table, stats)
	}
	return text
}

// tryLearned returns ok=false on any degradation: model failure, or a
// cleaned result with no surviving sentences.
func (g *learnedGenerator) tryLearned(ctx context.Context, question string, table *dataset.Table, stats dataset.SummaryStats) (string, bool) {
	if table == nil || table.NumRows() == 0 || table.NumRows() > oversizeRows {
		// Degenerate shapes are the rule engine's specialty.
		return "", false
	}

	var contextText string
	if g.retriever != nil {
		docs, err := g.retriever.Retrieve(ctx, question, narratorContextTopK)
		if err != nil {
			// Narration must not fail on retrieval; proceed without context.
			g.logger.Warn("narrator context retrieval failed", zap.Error(err))
		} else {
			parts := make([]string, 0, len(docs))
			for _, d := range docs {
				parts = append(parts, d.Text)
			}
			contextText = strings.Join(parts, "\n\n")
		}
	}

	prompt := buildLearnedPrompt(question, table.MarkdownPreview(10), stats, contextText)
	completion, err := g.client.CompleteWithSystem(ctx, learnedSystem, prompt)
	if err != nil {
		g.logger.Warn("learned narrator call failed", zap.Error(err))
		return "", false
	}

	cleaned := cleanNarration(completion, question)
	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}

func buildLearnedPrompt(question, preview string, stats dataset.SummaryStats, contextText string) string {
	// dtypes follow the column order of the result so prompts are stable
	// across runs.
	dtypes := make([]string, 0, len(stats.Columns))
	for _, c := range stats.Columns {
		dtypes = append(dtypes, c+": "+stats.ColumnTypes[c])
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question:\n%s\n\n", question)
	fmt.Fprintf(&sb, "Results (markdown table snippet):\n%s\n\n", preview)
	fmt.Fprintf(&sb, "Summary stats (JSON-like):\n{rows: %d, columns: %v, dtypes: {%s}}\n\n",
		stats.RowCount, stats.Columns, strings.Join(dtypes, ", "))
	if contextText != "" {
		fmt.Fprintf(&sb, "Domain context:\n%s\n\n", contextText)
	}
	sb.WriteString("Write a concise explanation of what the data shows, " +
		"including 1-2 recommended actions for operations or business teams.\n\nAnswer:")
	return sb.String()
}
