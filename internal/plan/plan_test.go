package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const revenuePlan = `{
  "steps": [
    {
      "bind": "by_category",
      "from": "df",
      "ops": [
        {"op": "group_by", "keys": ["category_name"],
         "aggregates": [{"column": "sales", "fn": "sum", "as": "revenue"}]},
        {"op": "sort", "by": "revenue", "desc": true},
        {"op": "limit", "n": 10}
      ]
    },
    {"bind": "result", "from": "by_category", "ops": []}
  ]
}`

func TestParseValidPlan(t *testing.T) {
	p, err := Parse(revenuePlan)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)

	assert.Equal(t, "by_category", p.Steps[0].Bind)
	assert.Equal(t, DatasetBinding, p.Steps[0].From)
	assert.Equal(t, OpGroupBy, p.Steps[0].Ops[0].Op)
	assert.Equal(t, ResultBinding, p.Steps[1].Bind)
}

func TestParseRejectsMalformedPlans(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty input", "   ", "empty plan"},
		{"not json", "result_df = df.groupby(...)", "not valid JSON"},
		{"no steps", `{"steps": []}`, "no steps"},
		{"missing bind", `{"steps": [{"from": "df"}]}`, "missing bind"},
		{"missing from", `{"steps": [{"bind": "result"}]}`, "missing source"},
		{"unknown op", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "pivot"}]}]}`, `unknown op "pivot"`},
		{"filter without cmp", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "filter", "column": "market"}]}]}`, "unknown comparison"},
		{"select without columns", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "select"}]}]}`, "select requires columns"},
		{"group_by without aggregates", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "group_by", "keys": ["market"]}]}]}`, "requires aggregates"},
		{"unknown aggregate fn", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "aggregate", "aggregates": [{"column": "sales", "fn": "median"}]}]}]}`, `unknown aggregate fn "median"`},
		{"sum without column", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "aggregate", "aggregates": [{"fn": "sum"}]}]}]}`, "requires a column"},
		{"limit without n", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "limit"}]}]}`, "limit requires n > 0"},
		{"sort without by", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "sort"}]}]}`, "sort requires a column"},
		{"values without column", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "values"}]}]}`, "values requires a column"},
		{"derive without output name", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "derive", "column": "sales", "arith": "mul", "value": 2}]}]}`, "derive requires an output name"},
		{"derive without column", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "derive", "as": "doubled", "arith": "mul", "value": 2}]}]}`, "derive requires a column"},
		{"derive with unknown arith", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "derive", "as": "x", "column": "sales", "arith": "pow", "value": 2}]}]}`, `unknown arithmetic "pow"`},
		{"derive without value", `{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "derive", "as": "x", "column": "sales", "arith": "mul"}]}]}`, "derive requires a value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDeriveAcceptsConstantAndColumnValues(t *testing.T) {
	p, err := Parse(`{"steps": [{"bind": "result", "from": "df", "ops": [
		{"op": "derive", "as": "net", "column": "sales", "arith": "sub", "value": "order_item_discount"},
		{"op": "derive", "as": "doubled", "column": "sales", "arith": "mul", "value": 2}
	]}]}`)
	require.NoError(t, err)
	require.Len(t, p.Steps[0].Ops, 2)
	assert.Equal(t, "order_item_discount", p.Steps[0].Ops[0].Value)
	assert.Equal(t, float64(2), p.Steps[0].Ops[1].Value)
}

func TestCountWithoutColumnIsValid(t *testing.T) {
	_, err := Parse(`{"steps": [{"bind": "result", "from": "df", "ops": [{"op": "aggregate", "aggregates": [{"fn": "count", "as": "orders"}]}]}]}`)
	assert.NoError(t, err)
}

func TestAggregateName(t *testing.T) {
	tests := []struct {
		agg  Aggregate
		want string
	}{
		{Aggregate{Column: "sales", Fn: "sum", As: "revenue"}, "revenue"},
		{Aggregate{Column: "sales", Fn: "sum"}, "sum_sales"},
		{Aggregate{Fn: "count"}, "count"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.agg.Name())
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"steps\": []}\n```", `{"steps": []}`},
		{"python fence", "```python\n{}\n```", "{}"},
		{"bare fence", "```\n{}\n```", "{}"},
		{"stray backticks", "`{}`", "{}"},
		{"uppercase fence", "```JSON\n{}\n```", "{}"},
		{"already clean", `{"steps": []}`, `{"steps": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}
