package narrative

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"insightweaver/internal/dataset"
	"insightweaver/internal/intent"
)

// oversizeRows is the narration-side ceiling: results past it get rephrase
// guidance instead of a row-by-row analysis.
const oversizeRows = 100

// breakdownRows caps the per-row bullet list.
const breakdownRows = 10

const noDataMessage = "No data was returned for this question. " +
	"Try rephrasing it, or relaxing any filters (regions, date ranges, categories)."

// ruleEngine is the deterministic narrator: a pure function of
// (question, table, stats). Families are tried in a fixed priority order
// via the intent classifier; any formatting panic is recovered into a
// degraded but always-present fallback.
type ruleEngine struct{}

func (g *ruleEngine) Narrate(ctx context.Context, question string, table *dataset.Table, stats dataset.SummaryStats) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf(
				"The analysis completed and returned %d row(s), but the result shape was unexpected, "+
					"so a detailed narrative could not be generated. Review the result table directly.",
				stats.RowCount)
		}
	}()

	if table == nil || table.NumRows() == 0 {
		return noDataMessage
	}
	if table.NumRows() > oversizeRows {
		return fmt.Sprintf(
			"The result contains %d rows, which is too many to analyze row by row. "+
				"Please rephrase your question to ask for an aggregated summary "+
				"(for example, a top-10 breakdown by region or category).",
			table.NumRows())
	}

	b, ok := extractBreakdown(table)
	if !ok {
		return g.generic(table, stats)
	}

	switch intent.Classify(question) {
	case intent.Correlation:
		return g.correlation(b)
	case intent.Ranking:
		return g.ranking(b)
	case intent.Rate:
		return g.rate(b)
	case intent.Revenue:
		return g.revenue(b)
	default:
		return g.genericWithBreakdown(b, stats)
	}
}

// =============================================================================
// FAMILY FORMATTERS
// =============================================================================

func (g *ruleEngine) correlation(b *breakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Correlation view:** %s varies most strongly across %s. %s shows the highest average at %s",
		b.valueName, b.labelName, b.leaderLabel(), formatMeasure(b.leaderValue()))
	if len(b.values) >= 2 {
		fmt.Fprintf(&sb, ", ahead of %s by %s", b.labels[1], formatMeasure(b.gap()))
	}
	sb.WriteString(".\n")
	sb.WriteString(g.bullets(b))
	sb.WriteString(g.spread(b))
	sb.WriteString(g.actions(b,
		fmt.Sprintf("Treat %s as the leading driver of %s and validate it against a longer time window.", b.leaderLabel(), b.valueName),
		fmt.Sprintf("Compare operating practices between %s and the weakest group (%s) to isolate the causal factor.", b.leaderLabel(), b.lastLabel()),
		fmt.Sprintf("Re-run this view segmented by market to confirm the %s effect is not regional.", b.labelName)))
	return sb.String()
}

func (g *ruleEngine) ranking(b *breakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s leads with %s in %s**, a %s share of the total across %d %s groups.\n",
		b.leaderLabel(), formatMeasure(b.leaderValue()), b.valueName, b.share(), len(b.values), b.labelName)
	if len(b.values) >= 2 {
		fmt.Fprintf(&sb, "The gap to the runner-up (%s) is %s.\n", b.labels[1], formatMeasure(b.gap()))
	}
	sb.WriteString(g.bullets(b))
	sb.WriteString(g.spread(b))
	sb.WriteString(g.actions(b,
		fmt.Sprintf("Double down on %s: replicate its playbook across lagging %s groups.", b.leaderLabel(), b.labelName),
		fmt.Sprintf("Review the bottom performer (%s) for structural issues before allocating more spend.", b.lastLabel()),
		fmt.Sprintf("Set a target of closing the gap between %s and the runner-up over the next quarter.", b.leaderLabel())))
	return sb.String()
}

func (g *ruleEngine) rate(b *breakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Rate analysis:** %s leads at %s, while %s trails at %s.\n",
		b.leaderLabel(), formatMeasure(b.leaderValue()), b.lastLabel(), formatMeasure(b.lastValue()))

	// One line per row for rate questions; the table is already capped.
	fmt.Fprintf(&sb, "\nRates by %s:\n", b.labelName)
	for i := range b.labels {
		fmt.Fprintf(&sb, "- %s: %s\n", b.labels[i], formatMeasure(b.values[i]))
	}

	sb.WriteString(g.spread(b))
	if len(b.values) >= 2 {
		uplift := b.leaderValue() - mean(b.values)
		fmt.Fprintf(&sb, "If every %s matched %s, the average rate would rise by %.1f percentage points.\n",
			b.labelName, b.leaderLabel(), uplift*100)
	}
	sb.WriteString(g.actions(b,
		fmt.Sprintf("Audit %s first: it has the most room to improve.", b.lastLabel()),
		fmt.Sprintf("Document what %s does differently and roll it out to the other %s groups.", b.leaderLabel(), b.labelName),
		"Track this rate weekly until the spread between best and worst narrows."))
	return sb.String()
}

func (g *ruleEngine) revenue(b *breakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s generates the most %s at %s** (%s of the total).\n",
		b.leaderLabel(), b.valueName, formatMeasure(b.leaderValue()), b.share())
	if len(b.values) >= 2 {
		uplift := upliftIfAllMatchedLeader(b.values)
		fmt.Fprintf(&sb, "If every %s matched %s, total %s would rise by %s.\n",
			b.labelName, b.leaderLabel(), b.valueName, formatMeasure(uplift))
	}
	sb.WriteString(g.bullets(b))
	sb.WriteString(g.spread(b))
	sb.WriteString(g.actions(b,
		fmt.Sprintf("Protect the %s position: it carries %s of %s.", b.leaderLabel(), b.share(), b.valueName),
		fmt.Sprintf("Build a recovery plan for %s, the weakest %s group.", b.lastLabel(), b.labelName),
		fmt.Sprintf("Model pricing or mix changes that lift mid-table %s groups toward the leader.", b.labelName)))
	return sb.String()
}

func (g *ruleEngine) genericWithBreakdown(b *breakdown, stats dataset.SummaryStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The analysis returned %d row(s) across %d column(s). %s has the highest %s at %s.\n",
		stats.RowCount, len(stats.Columns), b.leaderLabel(), b.valueName, formatMeasure(b.leaderValue()))
	sb.WriteString(g.bullets(b))
	sb.WriteString(g.actions(b,
		fmt.Sprintf("Start with %s when prioritizing follow-up analysis.", b.leaderLabel()),
		"Refine the question to focus on a single metric or dimension for a sharper answer."))
	return sb.String()
}

func (g *ruleEngine) generic(table *dataset.Table, stats dataset.SummaryStats) string {
	cols := strings.Join(stats.Columns, ", ")
	first := make([]string, 0, len(stats.Columns))
	for _, name := range stats.Columns {
		cell, err := table.Cell(0, name)
		if err != nil {
			continue
		}
		first = append(first, fmt.Sprintf("%s=%s", name, dataset.FormatCell(cell)))
	}
	return fmt.Sprintf("The analysis returned %d row(s) with columns: %s. Leading row: %s.",
		stats.RowCount, cols, strings.Join(first, ", "))
}

// =============================================================================
// SHARED PIECES
// =============================================================================

func (g *ruleEngine) bullets(b *breakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\nBreakdown by %s:\n", b.labelName)
	n := len(b.labels)
	if n > breakdownRows {
		n = breakdownRows
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "- %s: %s\n", b.labels[i], formatMeasure(b.values[i]))
	}
	return sb.String()
}

// spread renders the mean/standard-deviation block for >=2 rows.
func (g *ruleEngine) spread(b *breakdown) string {
	if len(b.values) < 2 {
		return ""
	}
	return fmt.Sprintf("\nAcross %d groups the mean is %s with a standard deviation of %s.\n",
		len(b.values), formatMeasure(mean(b.values)), formatMeasure(stddev(b.values)))
}

func (g *ruleEngine) actions(b *breakdown, items ...string) string {
	var sb strings.Builder
	sb.WriteString("\nRecommended actions:\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
	}
	return sb.String()
}

// =============================================================================
// BREAKDOWN EXTRACTION AND MATH
// =============================================================================

// breakdown is the (label, value) view of a result table: the first column
// as labels and the first numeric non-label column as the measure.
type breakdown struct {
	labelName string
	valueName string
	labels    []string
	values    []float64
}

func (b *breakdown) leaderLabel() string  { return b.labels[0] }
func (b *breakdown) leaderValue() float64 { return b.values[0] }
func (b *breakdown) lastLabel() string    { return b.labels[len(b.labels)-1] }
func (b *breakdown) lastValue() float64   { return b.values[len(b.values)-1] }

func (b *breakdown) gap() float64 {
	return b.values[0] - b.values[1]
}

// share renders the leader's share of the column total.
func (b *breakdown) share() string {
	var total float64
	for _, v := range b.values {
		total += v
	}
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", b.values[0]/total*100)
}

// extractBreakdown needs at least 1 row and 2 columns, with a numeric
// measure column. Anything else is the degenerate case.
func extractBreakdown(t *dataset.Table) (*breakdown, bool) {
	cols := t.Columns()
	if t.NumRows() < 1 || len(cols) < 2 {
		return nil, false
	}

	labelName := cols[0]
	valueName := ""
	for _, name := range cols[1:] {
		switch t.TypeOf(name) {
		case dataset.TypeInteger, dataset.TypeFloat, dataset.TypeBoolean:
			valueName = name
		}
		if valueName != "" {
			break
		}
	}
	if valueName == "" {
		return nil, false
	}

	labelCol, err := t.Column(labelName)
	if err != nil {
		return nil, false
	}
	valueCol, err := t.Column(valueName)
	if err != nil {
		return nil, false
	}

	b := &breakdown{labelName: labelName, valueName: valueName}
	for i := range labelCol {
		v, ok := dataset.AsFloat(valueCol[i])
		if !ok {
			continue
		}
		b.labels = append(b.labels, dataset.FormatCell(labelCol[i]))
		b.values = append(b.values, v)
	}
	if len(b.labels) == 0 {
		return nil, false
	}
	return b, true
}

// formatMeasure renders a metric contextually: fractional values below 2
// are treated as proportions and shown as percentages; anything at or
// above 2 (and anything negative) is an absolute count or currency amount.
func formatMeasure(v float64) string {
	if v >= 0 && v < 2 {
		return fmt.Sprintf("%.1f%%", v*100)
	}
	return formatAbsolute(v)
}

// formatAbsolute renders an absolute figure with thousands separators,
// keeping two decimals only when the value is not integral. The value is
// rounded once as a whole so a fractional part near 1 carries into the
// integer digits.
func formatAbsolute(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	rounded := fmt.Sprintf("%.2f", v)
	wholeStr, frac, _ := strings.Cut(rounded, ".")
	whole, _ := strconv.ParseInt(wholeStr, 10, 64)

	s := groupThousands(whole)
	if frac != "00" {
		s += "." + frac
	}
	if neg {
		return "-" + s
	}
	return s
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "," + strings.Join(parts, ",")
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)))
}

// upliftIfAllMatchedLeader is the synthetic total gain if every group
// performed at the leader's level.
func upliftIfAllMatchedLeader(values []float64) float64 {
	var uplift float64
	for _, v := range values[1:] {
		uplift += values[0] - v
	}
	return uplift
}
