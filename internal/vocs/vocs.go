// Package vocs describes the Variables / Objectives / Constraints / States
// schema of an optimization problem.
package vocs

import (
	"fmt"
	"math"
)

// Bounds is an inclusive [lo, hi] range of a variable.
type Bounds [2]float64

// Lo returns the lower bound.
func (b Bounds) Lo() float64 { return b[0] }

// Hi returns the upper bound.
func (b Bounds) Hi() float64 { return b[1] }

// Width returns hi - lo.
func (b Bounds) Width() float64 { return b[1] - b[0] }

// Contains reports whether v lies inside the bounds.
func (b Bounds) Contains(v float64) bool { return v >= b[0] && v <= b[1] }

// Clamp limits v to the bounds.
func (b Bounds) Clamp(v float64) float64 { return math.Max(b[0], math.Min(b[1], v)) }

// Direction is the optimization sense of an objective.
type Direction string

const (
	Minimize Direction = "MINIMIZE"
	Maximize Direction = "MAXIMIZE"
)

// ConstraintType is the comparison a constraint imposes.
type ConstraintType string

const (
	GreaterThan ConstraintType = "GREATER_THAN"
	LessThan    ConstraintType = "LESS_THAN"
)

// Variable is a named decision variable with its bounds.
type Variable struct {
	Name   string
	Bounds Bounds
}

// Objective is a named objective with its direction.
type Objective struct {
	Name      string
	Direction Direction
}

// Constraint is a named output that must satisfy Type relative to Value.
type Constraint struct {
	Name  string
	Type  ConstraintType
	Value float64
}

// Satisfied reports whether v meets the constraint.
func (c Constraint) Satisfied(v float64) bool {
	switch c.Type {
	case GreaterThan:
		return v > c.Value
	case LessThan:
		return v < c.Value
	}
	return false
}

// VOCS is the schema of every row appended during optimization.
// Slices keep declaration order.
type VOCS struct {
	Variables   []Variable
	Objectives  []Objective
	Constraints []Constraint
	Observables []string
}

// VariableNames returns variable names in declaration order.
func (v *VOCS) VariableNames() []string {
	out := make([]string, len(v.Variables))
	for i, x := range v.Variables {
		out[i] = x.Name
	}
	return out
}

// ObjectiveNames returns objective names in declaration order.
func (v *VOCS) ObjectiveNames() []string {
	out := make([]string, len(v.Objectives))
	for i, o := range v.Objectives {
		out[i] = o.Name
	}
	return out
}

// ConstraintNames returns constraint names in declaration order.
func (v *VOCS) ConstraintNames() []string {
	out := make([]string, len(v.Constraints))
	for i, c := range v.Constraints {
		out[i] = c.Name
	}
	return out
}

// ObservableNames returns observable names in declaration order.
func (v *VOCS) ObservableNames() []string {
	return append([]string{}, v.Observables...)
}

// OutputNames returns everything an environment has to measure:
// objectives, then constraints, then observables.
func (v *VOCS) OutputNames() []string {
	out := v.ObjectiveNames()
	out = append(out, v.ConstraintNames()...)
	return append(out, v.Observables...)
}

// EvaluatedColumns is the column order of an evaluated table:
// objectives, constraints, variables, observables.
func (v *VOCS) EvaluatedColumns() []string {
	out := v.ObjectiveNames()
	out = append(out, v.ConstraintNames()...)
	out = append(out, v.VariableNames()...)
	return append(out, v.Observables...)
}

// Variable looks up a variable by name.
func (v *VOCS) Variable(name string) (Variable, bool) {
	for _, x := range v.Variables {
		if x.Name == name {
			return x, true
		}
	}
	return Variable{}, false
}

// Validate checks bounds, directions and that no name is declared twice.
func (v *VOCS) Validate() error {
	seen := make(map[string]string)
	claim := func(name, section string) error {
		if name == "" {
			return fmt.Errorf("empty name in %s", section)
		}
		if prev, ok := seen[name]; ok {
			return &DuplicateKeyError{Name: name, First: prev, Second: section}
		}
		seen[name] = section
		return nil
	}

	if len(v.Variables) == 0 {
		return fmt.Errorf("at least one variable is required")
	}
	for _, x := range v.Variables {
		if err := claim(x.Name, "variables"); err != nil {
			return err
		}
		if !(x.Bounds[0] < x.Bounds[1]) {
			return fmt.Errorf("variable %s: lower bound %v must be less than upper bound %v", x.Name, x.Bounds[0], x.Bounds[1])
		}
	}
	for _, o := range v.Objectives {
		if err := claim(o.Name, "objectives"); err != nil {
			return err
		}
		if o.Direction != Minimize && o.Direction != Maximize {
			return fmt.Errorf("objective %s: unknown direction %q", o.Name, o.Direction)
		}
	}
	for _, c := range v.Constraints {
		if err := claim(c.Name, "constraints"); err != nil {
			return err
		}
		if c.Type != GreaterThan && c.Type != LessThan {
			return fmt.Errorf("constraint %s: unknown type %q", c.Name, c.Type)
		}
	}
	for _, name := range v.Observables {
		if err := claim(name, "observables"); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy.
func (v *VOCS) Clone() *VOCS {
	return &VOCS{
		Variables:   append([]Variable{}, v.Variables...),
		Objectives:  append([]Objective{}, v.Objectives...),
		Constraints: append([]Constraint{}, v.Constraints...),
		Observables: append([]string{}, v.Observables...),
	}
}

// DuplicateKeyError is returned when a name is declared more than once.
type DuplicateKeyError struct {
	Name   string
	First  string
	Second string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q (declared in %s and %s)", e.Name, e.First, e.Second)
}
