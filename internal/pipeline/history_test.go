package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insightweaver/internal/dataset"
)

func sampleResult() *Result {
	return &Result{
		Question:  "Which region leads?",
		Program:   `{"steps": []}`,
		Stats:     dataset.SummaryStats{RowCount: 3},
		Narrative: "The East region leads.",
	}
}

func TestHistoryAppendAndEntries(t *testing.T) {
	h := NewHistory()
	assert.Zero(t, h.Len())

	id1 := h.Append(sampleResult())
	id2 := h.Append(sampleResult())
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, h.Len())

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, id1, entries[0].ID)
	assert.Equal(t, "Which region leads?", entries[0].Question)
	assert.Equal(t, 3, entries[0].Rows)

	// Entries returns a copy; mutating it does not touch the log.
	entries[0].Question = "tampered"
	assert.Equal(t, "Which region leads?", h.Entries()[0].Question)
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory()
	h.Append(sampleResult())
	h.Clear()
	assert.Zero(t, h.Len())
	assert.Contains(t, h.Export(), "No questions answered")
}

func TestHistoryExport(t *testing.T) {
	h := NewHistory()
	id := h.Append(sampleResult())

	out := h.Export()
	assert.Contains(t, out, "# Session history")
	assert.Contains(t, out, "## 1. Which region leads?")
	assert.Contains(t, out, "```json")
	assert.Contains(t, out, "The East region leads.")
	assert.Contains(t, out, id)
}
