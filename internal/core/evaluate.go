package core

import (
	"fmt"

	"github.com/michaellans/Badger/internal/routine"
	"github.com/michaellans/Badger/internal/table"
)

// EvaluatePoints sets each row of points on the routine's environment and
// measures its objectives, constraints and observables. The result has one
// row per input row, in input order, with columns objectives, constraints,
// variables, observables. The first environment error aborts the batch.
// onEvaluate, when set, receives the evaluated table.
func EvaluatePoints(points *table.Table, r *routine.Routine, onEvaluate func(*table.Table)) (*table.Table, error) {
	v := r.VOCS
	variables := v.VariableNames()
	outputs := v.OutputNames()

	if !points.HasColumns(variables...) {
		return nil, fmt.Errorf("points must contain columns %v, got %v", variables, points.Columns)
	}

	evaluated := table.New(v.EvaluatedColumns()...)
	for i := 0; i < points.Len(); i++ {
		row := points.Record(i)

		set := make(map[string]float64, len(variables))
		for _, name := range variables {
			set[name] = row[name]
		}
		if err := r.Environment.SetVariables(set); err != nil {
			return nil, fmt.Errorf("failed to set variables of point %d: %w", i, err)
		}

		measured, err := r.Environment.GetObservables(outputs)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate point %d: %w", i, err)
		}

		out := make(table.Record, len(evaluated.Columns))
		for name, val := range set {
			out[name] = val
		}
		for _, name := range outputs {
			val, ok := measured[name]
			if !ok {
				return nil, fmt.Errorf("failed to evaluate point %d: environment returned no value for %q", i, name)
			}
			out[name] = val
		}
		if err := evaluated.AppendRecord(out); err != nil {
			return nil, err
		}
	}

	if onEvaluate != nil {
		onEvaluate(evaluated)
	}
	return evaluated, nil
}
