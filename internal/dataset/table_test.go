package dataset

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInfersColumnTypes(t *testing.T) {
	when := time.Date(2018, 1, 2, 0, 0, 0, 0, time.UTC)
	tbl, err := New(
		[]string{"region", "orders", "sales", "on_time", "order_date"},
		[][]any{
			{"West", int64(3), 100.5, true, when},
			{"East", int64(1), 20.0, false, when},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, TypeText, tbl.TypeOf("region"))
	assert.Equal(t, TypeInteger, tbl.TypeOf("orders"))
	assert.Equal(t, TypeFloat, tbl.TypeOf("sales"))
	assert.Equal(t, TypeBoolean, tbl.TypeOf("on_time"))
	assert.Equal(t, TypeDatetime, tbl.TypeOf("order_date"))
	assert.Equal(t, 2, tbl.NumRows())
}

func TestNewMixedNumericWidensToFloat(t *testing.T) {
	tbl, err := New([]string{"v"}, [][]any{{int64(1)}, {2.5}, {nil}})
	require.NoError(t, err)
	assert.Equal(t, TypeFloat, tbl.TypeOf("v"))
}

func TestNewNarrowNumericKindsWiden(t *testing.T) {
	tbl, err := New([]string{"a", "b", "c"}, [][]any{{int(7), int32(8), float32(1.5)}})
	require.NoError(t, err)

	a, err := tbl.Cell(0, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), a)

	c, err := tbl.Cell(0, "c")
	require.NoError(t, err)
	assert.Equal(t, 1.5, c)
}

func TestNewRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		rows  [][]any
	}{
		{"no columns", nil, nil},
		{"empty column name", []string{""}, nil},
		{"duplicate column", []string{"a", "a"}, nil},
		{"ragged row", []string{"a", "b"}, [][]any{{"x"}}},
		{"unsupported cell type", []string{"a"}, [][]any{{struct{}{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.names, tt.rows)
			assert.Error(t, err)
		})
	}
}

func TestFromColumnsMatchesRowMajor(t *testing.T) {
	fromRows, err := New([]string{"k", "v"}, [][]any{{"a", int64(1)}, {"b", int64(2)}})
	require.NoError(t, err)

	fromCols, err := FromColumns([]string{"k", "v"}, [][]any{{"a", "b"}, {int64(1), int64(2)}})
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(fromRows.Stats(), fromCols.Stats()))
	assert.Equal(t, fromRows.Row(1), fromCols.Row(1))
}

func TestFromColumnsRejectsRaggedColumns(t *testing.T) {
	_, err := FromColumns([]string{"a", "b"}, [][]any{{"x", "y"}, {int64(1)}})
	assert.Error(t, err)
}

func TestStatsIsDeterministic(t *testing.T) {
	tbl, err := New([]string{"region", "sales"}, [][]any{{"West", 10.0}})
	require.NoError(t, err)

	first := tbl.Stats()
	second := tbl.Stats()
	assert.Empty(t, cmp.Diff(first, second))
	assert.Equal(t, 1, first.RowCount)
	assert.Equal(t, []string{"region", "sales"}, first.Columns)
	assert.Equal(t, TypeFloat, first.ColumnTypes["sales"])
}

func TestAsFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{1.5, 1.5, true},
		{int64(3), 3, true},
		{true, 1, true},
		{false, 0, true},
		{"3", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := AsFloat(tt.in)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatCell(t *testing.T) {
	when := time.Date(2018, 3, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"West", "West"},
		{int64(42), "42"},
		{12.5, "12.5"},
		{3.0, "3"},
		{0.1234, "0.1234"},
		{true, "true"},
		{when, "2018-03-04"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCell(tt.in))
	}
}

func TestMarkdownPreviewCapsRows(t *testing.T) {
	rows := make([][]any, 25)
	for i := range rows {
		rows[i] = []any{"row", int64(i)}
	}
	tbl, err := New([]string{"label", "n"}, rows)
	require.NoError(t, err)

	preview := tbl.MarkdownPreview(10)
	assert.Contains(t, preview, "label")
	assert.Contains(t, preview, "|")
	assert.Contains(t, preview, "9")
	assert.NotContains(t, preview, "24")
}
