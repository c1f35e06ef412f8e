package narrative

import (
	"regexp"
	"strings"
)

// minSentenceLen is the shortest sentence worth keeping; the small model
// pads its output with fragments below this.
const minSentenceLen = 40

// schemaTokens mark sentences that are echoes of the prompt's schema or
// table material rather than narration.
var schemaTokens = []string{
	"`",
	"order_",
	"schema",
	"dtypes",
	"summary stats",
	"markdown",
	"dataframe",
}

var (
	answerMarkerRe = regexp.MustCompile(`(?i)answer:\s*`)
	tableLineRe    = regexp.MustCompile(`^\s*[|+:-]+\s*$`)
	sentenceEndRe  = regexp.MustCompile(`[.!?]\s+`)
)

// cleanNarration runs the battery of pattern-stripping rules over the raw
// model output: drop echoed prompt/system text, drop leftover table
// syntax, then keep only sentences long enough and free of schema tokens.
// Returns "" when nothing survives, which signals the rule-based fallback.
func cleanNarration(raw, question string) string {
	text := raw

	// Keep only what follows the final answer marker, if any.
	if locs := answerMarkerRe.FindAllStringIndex(text, -1); len(locs) > 0 {
		text = text[locs[len(locs)-1][1]:]
	}

	// Remove echoed question text wherever it reappears.
	if q := strings.TrimSpace(question); q != "" {
		text = strings.ReplaceAll(text, q, "")
	}

	// Drop table syntax and prompt-section echoes line by line.
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if tableLineRe.MatchString(trimmed) || strings.Contains(trimmed, "|") {
			continue
		}
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "question:") ||
			strings.HasPrefix(lower, "results") ||
			strings.HasPrefix(lower, "summary stats") ||
			strings.HasPrefix(lower, "domain context") {
			continue
		}
		lines = append(lines, trimmed)
	}
	text = strings.Join(lines, " ")

	// Sentence filter: discard short fragments and schema echoes.
	var kept []string
	for _, sentence := range splitSentences(text) {
		s := strings.TrimSpace(sentence)
		if len(s) < minSentenceLen {
			continue
		}
		if containsSchemaToken(s) {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, " ")
}

func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		out = append(out, text[last:loc[0]+1])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

func containsSchemaToken(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, token := range schemaTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
