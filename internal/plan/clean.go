package plan

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?i)```(?:json|python)?")

// StripFences removes markdown code-fence artifacts and stray backticks
// from model output. The synthesizer cleans its completion with this, and
// the executor applies it again before parsing since plans can reach it
// from stored history as well.
func StripFences(text string) string {
	text = fenceRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "`", "")
	return strings.TrimSpace(text)
}
