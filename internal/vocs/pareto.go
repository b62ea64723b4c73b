package vocs

import (
	"fmt"
	"math"

	"github.com/michaellans/Badger/internal/table"
)

// Feasible reports whether every constraint of the schema holds in r.
// A missing constraint value counts as infeasible.
func (v *VOCS) Feasible(r table.Record) bool {
	for _, c := range v.Constraints {
		val, ok := r[c.Name]
		if !ok || !c.Satisfied(val) {
			return false
		}
	}
	return true
}

// ParetoFront returns the feasible rows of data that no other feasible row
// dominates, in their original order. With a single objective this is the
// set of rows sharing the best value. Rows with a NaN or infinite objective
// are treated as infeasible.
func (v *VOCS) ParetoFront(data *table.Table) (*table.Table, error) {
	if len(v.Objectives) == 0 {
		return nil, fmt.Errorf("cannot rank points without objectives")
	}
	if data.IsEmpty() {
		return table.New(v.EvaluatedColumns()...), nil
	}
	if !data.HasColumns(v.ObjectiveNames()...) {
		return nil, fmt.Errorf("data is missing objective columns %v", v.ObjectiveNames())
	}

	// Minimization scores for feasible rows
	var candidates []int
	scores := make(map[int][]float64)
	for i := 0; i < data.Len(); i++ {
		r := data.Record(i)
		if !v.Feasible(r) {
			continue
		}
		s, ok := v.scores(r)
		if !ok {
			continue
		}
		candidates = append(candidates, i)
		scores[i] = s
	}

	var front []int
	for _, i := range candidates {
		dominated := false
		for _, j := range candidates {
			if i != j && dominates(scores[j], scores[i]) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, i)
		}
	}

	return data.Subset(front), nil
}

// scores maps the objectives of r to minimization scores. It fails when an
// objective is not finite.
func (v *VOCS) scores(r table.Record) ([]float64, bool) {
	s := make([]float64, len(v.Objectives))
	for k, o := range v.Objectives {
		val := r[o.Name]
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, false
		}
		if o.Direction == Maximize {
			val = -val
		}
		s[k] = val
	}
	return s, true
}

// BestValue returns the best value of the first objective over the Pareto
// front of data, and false when the front is empty.
func (v *VOCS) BestValue(data *table.Table) (float64, bool) {
	if len(v.Objectives) == 0 {
		return 0, false
	}
	front, err := v.ParetoFront(data)
	if err != nil || front.Len() == 0 {
		return 0, false
	}
	obj := v.Objectives[0]
	best, _ := front.Value(0, obj.Name)
	for i := 1; i < front.Len(); i++ {
		val, _ := front.Value(i, obj.Name)
		if (obj.Direction == Maximize && val > best) || (obj.Direction != Maximize && val < best) {
			best = val
		}
	}
	return best, true
}

func dominates(a, b []float64) bool {
	strictly := false
	for k := range a {
		if a[k] > b[k] {
			return false
		}
		if a[k] < b[k] {
			strictly = true
		}
	}
	return strictly
}
