package executor

import (
	"fmt"
	"sort"
	"strings"

	"insightweaver/internal/dataset"
	"insightweaver/internal/plan"
)

// value is what a binding can hold: a table, or a bare column sequence
// produced by the values op. Sequences are coerced to one-column tables at
// the contract boundary.
type value interface {
	toTable() (*dataset.Table, error)
}

type tableValue struct {
	t *dataset.Table
}

func (v tableValue) toTable() (*dataset.Table, error) { return v.t, nil }

type seriesValue struct {
	name   string
	values []any
}

func (v seriesValue) toTable() (*dataset.Table, error) {
	return dataset.FromColumns([]string{v.name}, [][]any{v.values})
}

func evalStep(env map[string]value, step plan.Step) (value, error) {
	src, ok := env[step.From]
	if !ok {
		return nil, fmt.Errorf("step %q reads unknown binding %q", step.Bind, step.From)
	}

	current := src
	for _, op := range step.Ops {
		if _, isSeries := current.(seriesValue); isSeries {
			return nil, fmt.Errorf("op %q applied to column sequence; \"values\" must be the last operation", op.Op)
		}
		t := current.(tableValue).t

		var err error
		switch op.Op {
		case plan.OpFilter:
			current, err = applyFilter(t, op)
		case plan.OpSelect:
			current, err = applySelect(t, op)
		case plan.OpGroupBy:
			current, err = applyGroupBy(t, op)
		case plan.OpAggregate:
			current, err = applyAggregate(t, op)
		case plan.OpDerive:
			current, err = applyDerive(t, op)
		case plan.OpSort:
			current, err = applySort(t, op)
		case plan.OpLimit:
			current, err = applyLimit(t, op)
		case plan.OpValues:
			col, cerr := t.Column(op.Column)
			if cerr != nil {
				return nil, cerr
			}
			current, err = seriesValue{name: op.Column, values: col}, nil
		default:
			err = fmt.Errorf("unknown op %q", op.Op)
		}
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

func applyFilter(t *dataset.Table, op plan.Op) (value, error) {
	col, err := t.Column(op.Column)
	if err != nil {
		return nil, err
	}
	var keep []int
	for i, cell := range col {
		match, err := compareCell(cell, op.Cmp, op.Value)
		if err != nil {
			return nil, fmt.Errorf("filter on %q: %w", op.Column, err)
		}
		if match {
			keep = append(keep, i)
		}
	}
	return selectRows(t, keep)
}

// compareCell evaluates cell <cmp> want. Numeric comparison applies when
// both sides are numeric; otherwise cells compare as strings. Missing
// values never match.
func compareCell(cell any, cmp string, want any) (bool, error) {
	if cell == nil {
		return false, nil
	}

	cellF, cellNum := dataset.AsFloat(cell)
	wantF, wantNum := dataset.AsFloat(want)
	if cellNum && wantNum {
		switch cmp {
		case "eq":
			return cellF == wantF, nil
		case "ne":
			return cellF != wantF, nil
		case "gt":
			return cellF > wantF, nil
		case "ge":
			return cellF >= wantF, nil
		case "lt":
			return cellF < wantF, nil
		case "le":
			return cellF <= wantF, nil
		case "contains":
			return false, fmt.Errorf("contains requires text operands")
		}
	}

	cellS := dataset.FormatCell(cell)
	wantS := fmt.Sprintf("%v", want)
	switch cmp {
	case "eq":
		return strings.EqualFold(cellS, wantS), nil
	case "ne":
		return !strings.EqualFold(cellS, wantS), nil
	case "contains":
		return strings.Contains(strings.ToLower(cellS), strings.ToLower(wantS)), nil
	case "gt":
		return cellS > wantS, nil
	case "ge":
		return cellS >= wantS, nil
	case "lt":
		return cellS < wantS, nil
	case "le":
		return cellS <= wantS, nil
	}
	return false, fmt.Errorf("unknown comparison %q", cmp)
}

func applySelect(t *dataset.Table, op plan.Op) (value, error) {
	cols := make([][]any, len(op.Columns))
	for i, name := range op.Columns {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	out, err := dataset.FromColumns(op.Columns, cols)
	if err != nil {
		return nil, err
	}
	return tableValue{out}, nil
}

func applyGroupBy(t *dataset.Table, op plan.Op) (value, error) {
	keyCols := make([][]any, len(op.Keys))
	for i, name := range op.Keys {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		keyCols[i] = col
	}

	// Group rows by composite key, preserving first-appearance order.
	var order []string
	groups := make(map[string][]int)
	keyCells := make(map[string][]any)
	for ri := 0; ri < t.NumRows(); ri++ {
		parts := make([]string, len(keyCols))
		cells := make([]any, len(keyCols))
		for ci := range keyCols {
			cells[ci] = keyCols[ci][ri]
			parts[ci] = dataset.FormatCell(cells[ci])
		}
		key := strings.Join(parts, "\x1f")
		if _, seen := groups[key]; !seen {
			order = append(order, key)
			keyCells[key] = cells
		}
		groups[key] = append(groups[key], ri)
	}

	names := append([]string(nil), op.Keys...)
	for _, agg := range op.Aggregates {
		names = append(names, agg.Name())
	}

	rows := make([][]any, 0, len(order))
	for _, key := range order {
		row := append([]any(nil), keyCells[key]...)
		for _, agg := range op.Aggregates {
			v, err := computeAggregate(t, groups[key], agg)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	out, err := dataset.New(names, rows)
	if err != nil {
		return nil, err
	}
	return tableValue{out}, nil
}

func applyAggregate(t *dataset.Table, op plan.Op) (value, error) {
	all := make([]int, t.NumRows())
	for i := range all {
		all[i] = i
	}
	names := make([]string, len(op.Aggregates))
	row := make([]any, len(op.Aggregates))
	for i, agg := range op.Aggregates {
		names[i] = agg.Name()
		v, err := computeAggregate(t, all, agg)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	out, err := dataset.New(names, [][]any{row})
	if err != nil {
		return nil, err
	}
	return tableValue{out}, nil
}

func computeAggregate(t *dataset.Table, rows []int, agg plan.Aggregate) (any, error) {
	// count without a column counts group rows.
	if agg.Fn == "count" && agg.Column == "" {
		return int64(len(rows)), nil
	}

	col, err := t.Column(agg.Column)
	if err != nil {
		return nil, err
	}

	switch agg.Fn {
	case "count":
		var n int64
		for _, ri := range rows {
			if col[ri] != nil {
				n++
			}
		}
		return n, nil
	case "nunique":
		distinct := make(map[string]bool)
		for _, ri := range rows {
			if col[ri] != nil {
				distinct[dataset.FormatCell(col[ri])] = true
			}
		}
		return int64(len(distinct)), nil
	case "sum", "mean", "min", "max":
		var sum float64
		var n int
		var minV, maxV float64
		for _, ri := range rows {
			f, ok := dataset.AsFloat(col[ri])
			if !ok {
				continue
			}
			if n == 0 {
				minV, maxV = f, f
			} else {
				if f < minV {
					minV = f
				}
				if f > maxV {
					maxV = f
				}
			}
			sum += f
			n++
		}
		if n == 0 {
			return nil, nil
		}
		switch agg.Fn {
		case "sum":
			return sum, nil
		case "mean":
			return sum / float64(n), nil
		case "min":
			return minV, nil
		default:
			return maxV, nil
		}
	}
	return nil, fmt.Errorf("unknown aggregate fn %q", agg.Fn)
}

// applyDerive appends a computed column: op.Column <arith> op.Value, where
// the value is a constant or the name of another column. Rows where either
// operand is missing or non-numeric yield nil, as does division by zero.
func applyDerive(t *dataset.Table, op plan.Op) (value, error) {
	left, err := t.Column(op.Column)
	if err != nil {
		return nil, err
	}

	// A string value names the right-hand column; anything else is a constant.
	var right []any
	if name, isName := op.Value.(string); isName {
		right, err = t.Column(name)
		if err != nil {
			return nil, err
		}
	}

	derived := make([]any, t.NumRows())
	for i := range derived {
		lf, lok := dataset.AsFloat(left[i])
		var rf float64
		var rok bool
		if right != nil {
			rf, rok = dataset.AsFloat(right[i])
		} else {
			rf, rok = dataset.AsFloat(op.Value)
		}
		if !lok || !rok {
			continue
		}
		switch op.Arith {
		case "add":
			derived[i] = lf + rf
		case "sub":
			derived[i] = lf - rf
		case "mul":
			derived[i] = lf * rf
		case "div":
			if rf != 0 {
				derived[i] = lf / rf
			}
		}
	}

	names := append(t.Columns(), op.As)
	cols := make([][]any, 0, len(names))
	for _, name := range t.Columns() {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	cols = append(cols, derived)

	out, err := dataset.FromColumns(names, cols)
	if err != nil {
		return nil, err
	}
	return tableValue{out}, nil
}

func applySort(t *dataset.Table, op plan.Op) (value, error) {
	col, err := t.Column(op.By)
	if err != nil {
		return nil, err
	}

	idx := make([]int, t.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := col[idx[i]], col[idx[j]]
		if a == nil {
			return false // nils sort last regardless of direction
		}
		if b == nil {
			return true
		}
		af, aNum := dataset.AsFloat(a)
		bf, bNum := dataset.AsFloat(b)
		if aNum && bNum {
			if op.Desc {
				return af > bf
			}
			return af < bf
		}
		as, bs := dataset.FormatCell(a), dataset.FormatCell(b)
		if op.Desc {
			return as > bs
		}
		return as < bs
	})
	return selectRows(t, idx)
}

func applyLimit(t *dataset.Table, op plan.Op) (value, error) {
	n := op.N
	if n > t.NumRows() {
		n = t.NumRows()
	}
	keep := make([]int, n)
	for i := range keep {
		keep[i] = i
	}
	return selectRows(t, keep)
}

func selectRows(t *dataset.Table, rows []int) (value, error) {
	names := t.Columns()
	data := make([][]any, len(rows))
	for i, ri := range rows {
		data[i] = t.Row(ri)
	}
	out, err := dataset.New(names, data)
	if err != nil {
		return nil, err
	}
	return tableValue{out}, nil
}
