package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanNarrationKeepsTextAfterLastAnswerMarker(t *testing.T) {
	raw := "Answer: first draft that should vanish entirely from the output text.\n" +
		"Answer: The final answer explains the delivery gap between the two regions clearly."
	out := cleanNarration(raw, "")
	assert.Equal(t, "The final answer explains the delivery gap between the two regions clearly.", out)
}

func TestCleanNarrationStripsEchoedQuestion(t *testing.T) {
	question := "Which region has the best on-time rate?"
	raw := "Answer: " + question + " The East region performs best on punctuality across the whole comparison window."
	out := cleanNarration(raw, question)
	assert.NotContains(t, out, question)
	assert.Contains(t, out, "East region performs best")
}

func TestCleanNarrationDropsTableSyntaxLines(t *testing.T) {
	raw := "| region | rate |\n|--------|------|\n" +
		"The comparison shows a wide punctuality spread between the leading and trailing regions."
	out := cleanNarration(raw, "")
	assert.NotContains(t, out, "|")
	assert.Contains(t, out, "punctuality spread")
}

func TestCleanNarrationDropsPromptSectionEchoes(t *testing.T) {
	raw := "Question: something\nSummary stats (JSON-like): {}\nDomain context: notes\n" +
		"Shipping performance is strongest in the East and weakest in the South this period."
	out := cleanNarration(raw, "")
	assert.Equal(t, "Shipping performance is strongest in the East and weakest in the South this period.", out)
}

func TestCleanNarrationFiltersShortAndSchemaSentences(t *testing.T) {
	raw := "Yes. The `order_region` column has interesting values worth a careful look. " +
		"Deliveries to the East arrive on schedule far more often than deliveries elsewhere."
	out := cleanNarration(raw, "")
	assert.Equal(t, "Deliveries to the East arrive on schedule far more often than deliveries elsewhere.", out)
}

func TestCleanNarrationEmptyWhenNothingSurvives(t *testing.T) {
	assert.Empty(t, cleanNarration("ok.", ""))
	assert.Empty(t, cleanNarration("", ""))
	assert.Empty(t, cleanNarration("| a | b |\n|---|---|", ""))
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First point here. Second point there! Third?")
	assert.Len(t, got, 3)
}
