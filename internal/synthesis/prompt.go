package synthesis

import (
	"strings"

	"insightweaver/internal/intent"
	"insightweaver/internal/kb"
)

// systemContract is the fixed system instruction for plan synthesis. It
// pins the dataset schema, the plan DSL, and the hard output rules the
// executor will later enforce at runtime.
const systemContract = `You are a supply chain data analytics assistant.

You answer questions about an order-line dataset by emitting a JSON
aggregation plan. The dataset is pre-bound to the name "df" and contains
columns such as:

- order_id, order_date, shipping_date
- order_region, order_country, order_city, order_state
- customer_segment, market, category_name, department_name, product_name
- days_for_shipment_scheduled, days_for_shipping_real, shipping_delay_days, on_time_delivery
- sales, benefit_per_order, order_profit_per_order
- order_item_quantity, order_item_total, order_item_discount, order_item_discount_rate

A plan is a JSON object: {"steps": [{"bind": NAME, "from": SOURCE, "ops": [OP, ...]}]}.
Each step derives a new binding from "df" or an earlier binding. Operations:

- {"op": "filter", "column": C, "cmp": "eq|ne|gt|ge|lt|le|contains", "value": V}
- {"op": "select", "columns": [C, ...]}
- {"op": "group_by", "keys": [C, ...], "aggregates": [{"column": C, "fn": "count|sum|mean|min|max|nunique", "as": NAME}]}
- {"op": "aggregate", "aggregates": [...]}          (whole-table aggregation, one row)
- {"op": "derive", "as": NAME, "column": C, "arith": "add|sub|mul|div", "value": NUMBER_OR_COLUMN}
- {"op": "sort", "by": C, "desc": true|false}
- {"op": "limit", "n": N}

CRITICAL RULES:
1. ALWAYS aggregate data - NEVER return raw rows
2. Use group_by for comparison questions
3. The final step MUST bind the name "result"
4. "result" should have 1-20 rows max (aggregated summary)
5. For correlation questions, group by a categorical dimension and average the metric
6. Sort results by the metric (descending) to show top performers first
7. The result should have 2-3 columns
8. Do NOT include backticks, markdown, or any explanation
9. Do NOT return more than 100 rows

Examples:
- "Which category has most orders?" ->
  {"steps":[{"bind":"result","from":"df","ops":[{"op":"group_by","keys":["category_name"],"aggregates":[{"column":"order_id","fn":"count","as":"orders"}]},{"op":"sort","by":"orders","desc":true},{"op":"limit","n":10}]}]}
- "What factors correlate with high profit?" ->
  {"steps":[{"bind":"result","from":"df","ops":[{"op":"group_by","keys":["category_name"],"aggregates":[{"column":"order_profit_per_order","fn":"mean","as":"avg_profit"}]},{"op":"sort","by":"avg_profit","desc":true},{"op":"limit","n":10}]}]}
- "Average sales by region" ->
  {"steps":[{"bind":"result","from":"df","ops":[{"op":"group_by","keys":["order_region"],"aggregates":[{"column":"sales","fn":"mean","as":"avg_sales"}]},{"op":"sort","by":"avg_sales","desc":true}]}]}`

// guidance holds the intent-specific prompt additions. Classification only
// steers the prompt; every downstream code path is identical.
var guidance = map[intent.Intent]string{
	intent.Correlation: `IMPORTANT: This is a correlation/factors question.
- Group by a categorical dimension and aggregate the metric
- Use "mean" for numeric metrics
- Sort descending to show highest values first
- Limit to the top 10-15 results`,
	intent.Ranking: `IMPORTANT: This is a ranking/comparison question.
- Use group_by with count, sum, or mean
- Sort descending
- Limit to the top 10 results`,
	intent.Rate: `IMPORTANT: This is a rate/percentage calculation.
- Average a 0/1 flag column (e.g. on_time_delivery) to get the rate
- Group by the dimension asked (region, category, etc.)
- Sort to show best and worst performers`,
}

// BuildPrompt assembles the user prompt: retrieved domain context, the
// question, intent guidance, and the output instructions.
func BuildPrompt(question string, docs []kb.ContextDocument, bucket intent.Intent) string {
	contexts := make([]string, 0, len(docs))
	for _, d := range docs {
		contexts = append(contexts, d.Text)
	}

	var sb strings.Builder
	sb.WriteString("Context (schema and metrics):\n")
	sb.WriteString(strings.Join(contexts, "\n\n"))
	sb.WriteString("\n\nUser question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	if g, ok := guidance[bucket]; ok {
		sb.WriteString(g)
		sb.WriteString("\n\n")
	}
	sb.WriteString(`Instructions:
- Emit one JSON aggregation plan over df (the orders dataset)
- MUST use group_by or aggregate (count, sum, mean, etc.)
- MUST sort results to show top performers first
- MUST limit to 10-20 rows maximum
- The final step MUST bind "result"
- "result" should be a clean table with 2-3 columns

Write ONLY the JSON plan. No explanation. No markdown. No backticks.`)
	return sb.String()
}
