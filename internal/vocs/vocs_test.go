package vocs

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/michaellans/Badger/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"
)

const testDeclaration = `
variables:
  - x0: [-1, 1]
  - x1: [-1, 1]
  - x2: [-1, 1]
  - x3: [-1, 1]
objectives:
  - f: MAXIMIZE
constraints:
  - c: [GREATER_THAN, 0]
states:
  - s
`

func loadDeclaration(t *testing.T, src string) Declaration {
	t.Helper()
	var d Declaration
	require.NoError(t, yaml.Unmarshal([]byte(src), &d))
	return d
}

func TestFromDeclaration(t *testing.T) {
	v, err := FromDeclaration(loadDeclaration(t, testDeclaration))
	require.NoError(t, err)

	assert.Equal(t, []string{"x0", "x1", "x2", "x3"}, v.VariableNames())
	assert.Equal(t, []string{"f"}, v.ObjectiveNames())
	assert.Equal(t, []string{"c"}, v.ConstraintNames())
	assert.Equal(t, []string{"s"}, v.ObservableNames())
	assert.Equal(t, []string{"f", "c", "x0", "x1", "x2", "x3", "s"}, v.EvaluatedColumns())
	assert.Equal(t, []string{"f", "c", "s"}, v.OutputNames())

	assert.Equal(t, Maximize, v.Objectives[0].Direction)
	assert.Equal(t, Constraint{Name: "c", Type: GreaterThan, Value: 0}, v.Constraints[0])
	assert.Equal(t, Bounds{-1, 1}, v.Variables[0].Bounds)
}

func TestFromDeclaration_DuplicateKeys(t *testing.T) {
	src := `
variables:
  - x0: [-1, 1]
  - x0: [0, 1]
objectives:
  - f: MINIMIZE
`
	_, err := FromDeclaration(loadDeclaration(t, src))
	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "x0", dup.Name)

	src = `
variables:
  - x0: [-1, 1]
objectives:
  - x0: MINIMIZE
`
	_, err = FromDeclaration(loadDeclaration(t, src))
	require.True(t, errors.As(err, &dup), "keys may not repeat across sections")
}

func TestFromDeclaration_Invalid(t *testing.T) {
	tests := map[string]string{
		"multi-key entry": `
variables:
  - {x0: [-1, 1], x1: [-1, 1]}
`,
		"inverted bounds": `
variables:
  - x0: [1, -1]
`,
		"bad direction": `
variables:
  - x0: [-1, 1]
objectives:
  - f: SIDEWAYS
`,
		"bad constraint": `
variables:
  - x0: [-1, 1]
constraints:
  - c: [GREATER_THAN]
`,
		"no variables": `
objectives:
  - f: MINIMIZE
`,
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromDeclaration(loadDeclaration(t, src))
			assert.Error(t, err)
		})
	}
}

func TestDeclarationRoundTrip(t *testing.T) {
	v, err := FromDeclaration(loadDeclaration(t, testDeclaration))
	require.NoError(t, err)

	out, err := yaml.Marshal(v.Declaration())
	require.NoError(t, err)

	again, err := FromDeclaration(loadDeclaration(t, string(out)))
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestParetoFront_SingleObjective(t *testing.T) {
	v := &VOCS{
		Variables:   []Variable{{Name: "x", Bounds: Bounds{0, 1}}},
		Objectives:  []Objective{{Name: "f", Direction: Maximize}},
		Constraints: []Constraint{{Name: "c", Type: LessThan, Value: 1}},
	}
	data, _ := table.FromRecords(v.EvaluatedColumns(),
		table.Record{"f": 1, "c": 0, "x": 0.1},
		table.Record{"f": 5, "c": 2, "x": 0.2}, // infeasible
		table.Record{"f": 3, "c": 0, "x": 0.3},
		table.Record{"f": 3, "c": 0, "x": 0.4},
	)

	pf, err := v.ParetoFront(data)
	require.NoError(t, err)
	x, _ := pf.Column("x")
	assert.Equal(t, []float64{0.3, 0.4}, x)
}

func TestParetoFront_TwoObjectives(t *testing.T) {
	v := &VOCS{
		Variables:  []Variable{{Name: "x", Bounds: Bounds{0, 1}}},
		Objectives: []Objective{{Name: "f1", Direction: Minimize}, {Name: "f2", Direction: Minimize}},
	}
	data, _ := table.FromRecords(v.EvaluatedColumns(),
		table.Record{"f1": 1, "f2": 4, "x": 0},
		table.Record{"f1": 2, "f2": 2, "x": 1},
		table.Record{"f1": 3, "f2": 3, "x": 2}, // dominated by row 1
		table.Record{"f1": 4, "f2": 1, "x": 3},
	)

	pf, err := v.ParetoFront(data)
	require.NoError(t, err)
	x, _ := pf.Column("x")
	assert.Equal(t, []float64{0, 1, 3}, x)
}

func TestParetoFront_SkipsNonFiniteObjectives(t *testing.T) {
	v := &VOCS{
		Variables:  []Variable{{Name: "x", Bounds: Bounds{0, 1}}},
		Objectives: []Objective{{Name: "f", Direction: Minimize}},
	}
	data, _ := table.FromRecords(v.EvaluatedColumns(),
		table.Record{"f": math.NaN(), "x": 0.1},
		table.Record{"f": 1, "x": 0.2},
		table.Record{"f": 0.5, "x": 0.3},
		table.Record{"f": math.Inf(-1), "x": 0.4},
	)

	pf, err := v.ParetoFront(data)
	require.NoError(t, err)
	x, _ := pf.Column("x")
	assert.Equal(t, []float64{0.3}, x)

	best, ok := v.BestValue(data)
	require.True(t, ok)
	assert.Equal(t, 0.5, best)
	_, err = json.Marshal(best)
	assert.NoError(t, err)

	onlyNaN, _ := table.FromRecords(v.EvaluatedColumns(), table.Record{"f": math.NaN(), "x": 0})
	_, ok = v.BestValue(onlyNaN)
	assert.False(t, ok)
}

func TestBestValue_TakesBestOverFront(t *testing.T) {
	v := &VOCS{
		Variables:  []Variable{{Name: "x", Bounds: Bounds{0, 1}}},
		Objectives: []Objective{{Name: "f1", Direction: Maximize}, {Name: "f2", Direction: Minimize}},
	}
	// both rows are on the front; the second has the larger f1
	data, _ := table.FromRecords(v.EvaluatedColumns(),
		table.Record{"f1": 1, "f2": 1, "x": 0},
		table.Record{"f1": 4, "f2": 3, "x": 1},
	)

	best, ok := v.BestValue(data)
	require.True(t, ok)
	assert.Equal(t, 4.0, best)
}

func TestParetoFront_Empty(t *testing.T) {
	v := &VOCS{
		Variables:  []Variable{{Name: "x", Bounds: Bounds{0, 1}}},
		Objectives: []Objective{{Name: "f", Direction: Minimize}},
	}
	pf, err := v.ParetoFront(nil)
	require.NoError(t, err)
	assert.NotNil(t, pf)
	assert.Equal(t, 0, pf.Len())

	_, err = (&VOCS{}).ParetoFront(nil)
	assert.Error(t, err)
}

func TestParetoFront_NoMemberIsDominated(t *testing.T) {
	v := &VOCS{
		Variables:  []Variable{{Name: "x", Bounds: Bounds{0, 1}}},
		Objectives: []Objective{{Name: "f1", Direction: Minimize}, {Name: "f2", Direction: Maximize}},
	}

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(rt, "n")
		data := table.New(v.EvaluatedColumns()...)
		for i := 0; i < n; i++ {
			_ = data.AppendRecord(table.Record{
				"f1": float64(rapid.IntRange(0, 5).Draw(rt, "f1")),
				"f2": float64(rapid.IntRange(0, 5).Draw(rt, "f2")),
				"x":  float64(i),
			})
		}

		pf, err := v.ParetoFront(data)
		if err != nil {
			rt.Fatalf("pareto front: %v", err)
		}
		if pf.Len() == 0 {
			rt.Fatalf("non-empty data must have a non-empty front")
		}

		for i := 0; i < pf.Len(); i++ {
			a := pf.Record(i)
			for j := 0; j < data.Len(); j++ {
				b := data.Record(j)
				if dominates([]float64{b["f1"], -b["f2"]}, []float64{a["f1"], -a["f2"]}) {
					rt.Fatalf("front member %v is dominated by %v", a, b)
				}
			}
		}
	})
}
