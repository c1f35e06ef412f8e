// Package executor runs a synthesized aggregation plan against the order
// dataset. The plan is data interpreted over a closed instruction set, so
// the only pre-bound name is the dataset itself and the generated "program"
// can touch nothing else: no ambient state, no filesystem, no network.
package executor

import (
	"fmt"

	"insightweaver/internal/dataset"
	"insightweaver/internal/plan"
)

// maxResultRows is the hard post-hoc ceiling on result size. The prompt
// asks for <=100 rows; plans that blow far past it are rejected outright.
// Results between 100 and the ceiling survive so the narrator can answer
// with rephrase guidance instead of a hard error.
const maxResultRows = 1000

// ExecutionError means the plan failed while being interpreted: malformed
// plan text, an unknown column, an op applied to the wrong shape. It
// carries the exact cleaned program text for diagnosis.
type ExecutionError struct {
	Program string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("error executing generated plan: %v\n\nCleaned Plan:\n%s", e.Err, e.Program)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ContractViolationError means the plan executed without failing but
// violated the output contract: it never bound the required result name,
// or bound it to a value that cannot be coerced to a table. Distinguished
// from ExecutionError because the plan "succeeded" by its own logic; the
// split is what makes prompt-quality regressions visible in telemetry.
type ContractViolationError struct {
	Reason string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("generated plan violated the output contract: %s", e.Reason)
}

// Execute interprets the program against the dataset and enforces the
// output contract. On success it returns the result table (always a
// genuine table, coerced if necessary) and its summary statistics.
// No retries, no caching: every question re-executes a fresh plan.
func Execute(ds *dataset.Table, program string) (*dataset.Table, dataset.SummaryStats, error) {
	cleaned := plan.StripFences(program)

	p, err := plan.Parse(cleaned)
	if err != nil {
		return nil, dataset.SummaryStats{}, &ExecutionError{Program: cleaned, Err: err}
	}

	env := map[string]value{plan.DatasetBinding: tableValue{ds}}
	for _, step := range p.Steps {
		out, err := evalStep(env, step)
		if err != nil {
			return nil, dataset.SummaryStats{}, &ExecutionError{Program: cleaned, Err: err}
		}
		env[step.Bind] = out
	}

	bound, ok := env[plan.ResultBinding]
	if !ok {
		return nil, dataset.SummaryStats{}, &ContractViolationError{
			Reason: fmt.Sprintf("plan did not bind %q; the model must assign the final table to it", plan.ResultBinding),
		}
	}

	result, err := bound.toTable()
	if err != nil {
		return nil, dataset.SummaryStats{}, &ContractViolationError{
			Reason: fmt.Sprintf("result is not coercible to a table: %v", err),
		}
	}
	if result.NumRows() > maxResultRows {
		return nil, dataset.SummaryStats{}, &ContractViolationError{
			Reason: fmt.Sprintf("result has %d rows, above the %d-row ceiling; the plan must aggregate", result.NumRows(), maxResultRows),
		}
	}

	return result, result.Stats(), nil
}
