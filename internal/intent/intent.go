// Package intent classifies a business question into a coarse bucket using
// keyword matching. The classification augments the synthesizer prompt and
// selects the rule-based narrator's formatting family; it never changes the
// execution path.
package intent

import "strings"

// Intent is one of a closed set of question buckets.
type Intent int

// The buckets, in matching priority order. Classification tries each in
// turn and the first match wins, so the ordering below is a total order
// over the set.
const (
	Correlation Intent = iota // correlation / contributing-factors questions
	Ranking                   // superlative ranking (most / highest / top / which)
	Rate                      // rate / percentage calculations
	Revenue                   // revenue / profit / sales breakdowns
	Generic                   // everything else
)

var names = map[Intent]string{
	Correlation: "correlation",
	Ranking:     "ranking",
	Rate:        "rate",
	Revenue:     "revenue",
	Generic:     "generic",
}

func (i Intent) String() string {
	if n, ok := names[i]; ok {
		return n
	}
	return "generic"
}

var keywords = []struct {
	intent Intent
	words  []string
}{
	{Correlation, []string{"correlate", "correlation", "factors"}},
	{Ranking, []string{"most", "highest", "top", "which"}},
	{Rate, []string{"rate", "percentage", "percent"}},
	{Revenue, []string{"revenue", "profit", "sales"}},
}

// Classify buckets a question. Heuristic and best-effort: unknown phrasings
// fall through to Generic.
func Classify(question string) Intent {
	q := strings.ToLower(question)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(q, w) {
				return k.intent
			}
		}
	}
	return Generic
}
