// Package dataset provides the in-memory columnar order table that the
// rest of the pipeline treats as read-only shared state, plus the ETL that
// produces it and the load-once provider that serves it.
package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Type tags for table columns. These are the tags reported in SummaryStats
// and used by the narrator to decide how to read cells.
const (
	TypeText     = "text"
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
)

// Table is an immutable columnar table. Cells hold one of: string, int64,
// float64, bool, time.Time, or nil for missing values. Construction is the
// only mutation point; every accessor is safe for concurrent readers.
type Table struct {
	names []string
	types []string
	cols  [][]any // column-major, all columns equal length
}

// SummaryStats is the descriptive record derived from a result table:
// row count, column order, and a per-column type tag.
type SummaryStats struct {
	RowCount    int               `json:"rows"`
	Columns     []string          `json:"columns"`
	ColumnTypes map[string]string `json:"dtypes"`
}

// New builds a table from row-major data, inferring a type tag per column.
// All rows must have exactly one cell per column name.
func New(names []string, rows [][]any) (*Table, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("table requires at least one column")
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("empty column name")
		}
		if seen[n] {
			return nil, fmt.Errorf("duplicate column name %q", n)
		}
		seen[n] = true
	}

	cols := make([][]any, len(names))
	for i := range cols {
		cols[i] = make([]any, 0, len(rows))
	}
	for ri, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", ri, len(row), len(names))
		}
		for ci, v := range row {
			norm, err := normalizeCell(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", ri, names[ci], err)
			}
			cols[ci] = append(cols[ci], norm)
		}
	}

	t := &Table{
		names: append([]string(nil), names...),
		cols:  cols,
		types: make([]string, len(names)),
	}
	for i := range cols {
		t.types[i] = inferType(cols[i])
	}
	return t, nil
}

// FromColumns builds a table from column-major data.
func FromColumns(names []string, cols [][]any) (*Table, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("got %d column names for %d columns", len(names), len(cols))
	}
	n := 0
	if len(cols) > 0 {
		n = len(cols[0])
	}
	rows := make([][]any, n)
	for ri := range rows {
		row := make([]any, len(cols))
		for ci := range cols {
			if len(cols[ci]) != n {
				return nil, fmt.Errorf("column %q has %d values, want %d", names[ci], len(cols[ci]), n)
			}
			row[ci] = cols[ci][ri]
		}
		rows[ri] = row
	}
	return New(names, rows)
}

// normalizeCell widens small numeric kinds so cells carry a closed set of types.
func normalizeCell(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, int64, float64, bool, time.Time:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	default:
		return nil, fmt.Errorf("unsupported cell type %T", v)
	}
}

func inferType(col []any) string {
	var hasInt, hasFloat, hasBool, hasTime, hasText bool
	for _, v := range col {
		switch v.(type) {
		case nil:
		case int64:
			hasInt = true
		case float64:
			hasFloat = true
		case bool:
			hasBool = true
		case time.Time:
			hasTime = true
		default:
			hasText = true
		}
	}
	switch {
	case hasText:
		return TypeText
	case hasTime && !hasInt && !hasFloat && !hasBool:
		return TypeDatetime
	case hasBool && !hasInt && !hasFloat && !hasTime:
		return TypeBoolean
	case hasFloat:
		return TypeFloat
	case hasInt:
		return TypeInteger
	default:
		return TypeText
	}
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.names...)
}

// TypeOf returns the type tag for a column, or "" if absent.
func (t *Table) TypeOf(name string) string {
	for i, n := range t.names {
		if n == name {
			return t.types[i]
		}
	}
	return ""
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	return t.TypeOf(name) != ""
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]any, error) {
	for i, n := range t.names {
		if n == name {
			return t.cols[i], nil
		}
	}
	return nil, fmt.Errorf("unknown column %q", name)
}

// Cell returns the value at (row, column name).
func (t *Table) Cell(row int, name string) (any, error) {
	if row < 0 || row >= t.NumRows() {
		return nil, fmt.Errorf("row %d out of range (%d rows)", row, t.NumRows())
	}
	col, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	return col[row], nil
}

// Row returns row i as a slice ordered like Columns().
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.cols))
	for ci := range t.cols {
		row[ci] = t.cols[ci][i]
	}
	return row
}

// Stats derives the summary-statistics record. Deterministic: identical
// tables always yield identical stats.
func (t *Table) Stats() SummaryStats {
	types := make(map[string]string, len(t.names))
	for i, n := range t.names {
		types[n] = t.types[i]
	}
	return SummaryStats{
		RowCount:    t.NumRows(),
		Columns:     t.Columns(),
		ColumnTypes: types,
	}
}

// AsFloat interprets a cell as a float64 for numeric work.
// Booleans count as 0/1 so rate columns derived from flags still aggregate.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// FormatCell renders a cell for display and markdown previews.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return fmt.Sprintf("%d", x)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", x), "0"), ".")
	case bool:
		return fmt.Sprintf("%t", x)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", x)
	}
}

// MarkdownPreview renders the first maxRows rows as a markdown table, the
// shape fed to the learned narrator and shown in the chat UI.
func (t *Table) MarkdownPreview(maxRows int) string {
	if maxRows <= 0 {
		maxRows = 10
	}
	n := t.NumRows()
	if n > maxRows {
		n = maxRows
	}

	var sb strings.Builder
	w := tablewriter.NewWriter(&sb)
	w.SetAutoWrapText(false)
	w.SetAutoFormatHeaders(false)
	w.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	w.SetAlignment(tablewriter.ALIGN_LEFT)
	w.SetCenterSeparator("|")
	w.SetColumnSeparator("|")
	w.SetRowSeparator("-")
	w.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	w.SetHeaderLine(true)
	w.SetHeader(t.names)

	for ri := 0; ri < n; ri++ {
		row := make([]string, len(t.names))
		for ci := range t.names {
			row[ci] = FormatCell(t.cols[ci][ri])
		}
		w.Append(row)
	}
	w.Render()
	return sb.String()
}
