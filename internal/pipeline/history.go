package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one answered question in a session.
type Entry struct {
	ID        string
	Question  string
	Program   string
	Narrative string
	Rows      int
	Timestamp time.Time
}

// History is an append-only in-memory session log. Safe for concurrent
// use; the chat UI appends from its update loop while export may run
// from a command handler.
type History struct {
	mu      sync.Mutex
	entries []Entry
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append records a completed answer and returns its entry id.
func (h *History) Append(res *Result) string {
	entry := Entry{
		ID:        uuid.NewString(),
		Question:  res.Question,
		Program:   res.Program,
		Narrative: res.Narrative,
		Rows:      res.Stats.RowCount,
		Timestamp: time.Now(),
	}
	h.mu.Lock()
	h.entries = append(h.entries, entry)
	h.mu.Unlock()
	return entry.ID
}

// Entries returns a copy of the log in insertion order.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len reports the number of recorded answers.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear drops all entries.
func (h *History) Clear() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}

// Export renders the session as markdown, one section per answer.
func (h *History) Export() string {
	entries := h.Entries()
	if len(entries) == 0 {
		return "No questions answered in this session.\n"
	}
	var sb strings.Builder
	sb.WriteString("# Session history\n\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, e.Question)
		fmt.Fprintf(&sb, "_%s · %d result rows · %s_\n\n",
			e.Timestamp.Format(time.RFC3339), e.Rows, e.ID)
		fmt.Fprintf(&sb, "```json\n%s\n```\n\n", strings.TrimSpace(e.Program))
		fmt.Fprintf(&sb, "%s\n\n", e.Narrative)
	}
	return sb.String()
}
