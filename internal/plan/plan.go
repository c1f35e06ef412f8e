// Package plan defines the aggregation-plan DSL that the synthesizer asks
// the model to emit. A plan is data, not code: a list of named bindings,
// each derived from a previous binding (or the pre-bound dataset) by a
// closed set of relational operations. The executor is a pure interpreter
// over this instruction set, which is what makes running model output
// against trusted data safe.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DatasetBinding is the only name pre-bound in the execution namespace; it
// refers to the order dataset.
const DatasetBinding = "df"

// ResultBinding is the name a plan must bind its final table to.
const ResultBinding = "result"

// Plan is a sequence of binding steps, executed in order.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Step derives one named binding by applying ops to a source binding.
type Step struct {
	Bind string `json:"bind"`
	From string `json:"from"`
	Ops  []Op   `json:"ops"`
}

// Op is one relational operation. Which fields are meaningful depends on
// Op; Validate enforces the shape per operation.
type Op struct {
	Op string `json:"op"`

	// filter / values
	Column string `json:"column,omitempty"`
	Cmp    string `json:"cmp,omitempty"`
	Value  any    `json:"value,omitempty"`

	// select
	Columns []string `json:"columns,omitempty"`

	// group_by / aggregate
	Keys       []string    `json:"keys,omitempty"`
	Aggregates []Aggregate `json:"aggregates,omitempty"`

	// derive
	As    string `json:"as,omitempty"`
	Arith string `json:"arith,omitempty"`

	// sort
	By   string `json:"by,omitempty"`
	Desc bool   `json:"desc,omitempty"`

	// limit
	N int `json:"n,omitempty"`
}

// Aggregate names one aggregation over a column.
type Aggregate struct {
	Column string `json:"column"`
	Fn     string `json:"fn"`
	As     string `json:"as,omitempty"`
}

// Name returns the output column name for the aggregate.
func (a Aggregate) Name() string {
	if a.As != "" {
		return a.As
	}
	if a.Column == "" {
		return a.Fn
	}
	return a.Fn + "_" + a.Column
}

// Operation names.
const (
	OpFilter    = "filter"
	OpSelect    = "select"
	OpGroupBy   = "group_by"
	OpAggregate = "aggregate"
	OpDerive    = "derive"
	OpSort      = "sort"
	OpLimit     = "limit"
	OpValues    = "values"
)

var validCmps = map[string]bool{
	"eq": true, "ne": true, "gt": true, "ge": true, "lt": true, "le": true,
	"contains": true,
}

var validAriths = map[string]bool{
	"add": true, "sub": true, "mul": true, "div": true,
}

var validAggFns = map[string]bool{
	"count": true, "sum": true, "mean": true, "min": true, "max": true,
	"nunique": true,
}

// Parse decodes plan JSON. The input is expected to be already stripped of
// markdown fencing; Parse tolerates surrounding whitespace only.
func Parse(text string) (*Plan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty plan")
	}
	var p Plan
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, fmt.Errorf("plan is not valid JSON: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks structural well-formedness: known operations with the
// fields each one requires. It does not check column names against the
// dataset; that is the interpreter's job.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	for si, step := range p.Steps {
		if step.Bind == "" {
			return fmt.Errorf("step %d: missing bind name", si)
		}
		if step.From == "" {
			return fmt.Errorf("step %d (%s): missing source binding", si, step.Bind)
		}
		for oi, op := range step.Ops {
			if err := validateOp(op); err != nil {
				return fmt.Errorf("step %d (%s) op %d: %w", si, step.Bind, oi, err)
			}
		}
	}
	return nil
}

func validateOp(op Op) error {
	switch op.Op {
	case OpFilter:
		if op.Column == "" {
			return fmt.Errorf("filter requires a column")
		}
		if !validCmps[op.Cmp] {
			return fmt.Errorf("filter has unknown comparison %q", op.Cmp)
		}
	case OpSelect:
		if len(op.Columns) == 0 {
			return fmt.Errorf("select requires columns")
		}
	case OpGroupBy:
		if len(op.Keys) == 0 {
			return fmt.Errorf("group_by requires keys")
		}
		if len(op.Aggregates) == 0 {
			return fmt.Errorf("group_by requires aggregates")
		}
		for _, agg := range op.Aggregates {
			if err := validateAggregate(agg); err != nil {
				return err
			}
		}
	case OpAggregate:
		if len(op.Aggregates) == 0 {
			return fmt.Errorf("aggregate requires aggregates")
		}
		for _, agg := range op.Aggregates {
			if err := validateAggregate(agg); err != nil {
				return err
			}
		}
	case OpDerive:
		if op.As == "" {
			return fmt.Errorf("derive requires an output name")
		}
		if op.Column == "" {
			return fmt.Errorf("derive requires a column")
		}
		if !validAriths[op.Arith] {
			return fmt.Errorf("derive has unknown arithmetic %q", op.Arith)
		}
		if op.Value == nil {
			return fmt.Errorf("derive requires a value (number or column name)")
		}
	case OpSort:
		if op.By == "" {
			return fmt.Errorf("sort requires a column")
		}
	case OpLimit:
		if op.N <= 0 {
			return fmt.Errorf("limit requires n > 0")
		}
	case OpValues:
		if op.Column == "" {
			return fmt.Errorf("values requires a column")
		}
	case "":
		return fmt.Errorf("missing op name")
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

func validateAggregate(agg Aggregate) error {
	if !validAggFns[agg.Fn] {
		return fmt.Errorf("unknown aggregate fn %q", agg.Fn)
	}
	if agg.Column == "" && agg.Fn != "count" {
		return fmt.Errorf("aggregate %q requires a column", agg.Fn)
	}
	return nil
}
