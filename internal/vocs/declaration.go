package vocs

import (
	"fmt"
	"strconv"
	"strings"
)

// Declaration is the declarative, YAML-friendly form of a VOCS. Each list
// entry is a single-key mapping so that declaration order survives
// serialization:
//
//	variables:   [{x0: [-1, 1]}, {x1: [-1, 1]}]
//	objectives:  [{f: MAXIMIZE}]
//	constraints: [{c: [GREATER_THAN, 0]}]
//	states:      [s1, s2]
type Declaration struct {
	Variables   []map[string][]float64 `yaml:"variables" json:"variables"`
	Objectives  []map[string]string    `yaml:"objectives" json:"objectives"`
	Constraints []map[string][]any     `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	States      []string               `yaml:"states,omitempty" json:"states,omitempty"`
}

// FromDeclaration flattens a Declaration into a VOCS. Every mapping must hold
// exactly one key and no key may repeat across entries.
func FromDeclaration(d Declaration) (*VOCS, error) {
	v := &VOCS{}

	for i, entry := range d.Variables {
		name, rng, err := single(entry, "variables", i)
		if err != nil {
			return nil, err
		}
		if len(rng) != 2 {
			return nil, fmt.Errorf("variables[%d] %s: expected [lo, hi], got %v", i, name, rng)
		}
		v.Variables = append(v.Variables, Variable{Name: name, Bounds: Bounds{rng[0], rng[1]}})
	}

	for i, entry := range d.Objectives {
		name, dir, err := single(entry, "objectives", i)
		if err != nil {
			return nil, err
		}
		v.Objectives = append(v.Objectives, Objective{Name: name, Direction: Direction(strings.ToUpper(dir))})
	}

	for i, entry := range d.Constraints {
		name, spec, err := single(entry, "constraints", i)
		if err != nil {
			return nil, err
		}
		c, err := parseConstraint(name, spec)
		if err != nil {
			return nil, fmt.Errorf("constraints[%d]: %w", i, err)
		}
		v.Constraints = append(v.Constraints, c)
	}

	v.Observables = append(v.Observables, d.States...)

	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Declaration converts the VOCS back to its declarative form.
func (v *VOCS) Declaration() Declaration {
	var d Declaration
	for _, x := range v.Variables {
		d.Variables = append(d.Variables, map[string][]float64{x.Name: {x.Bounds[0], x.Bounds[1]}})
	}
	for _, o := range v.Objectives {
		d.Objectives = append(d.Objectives, map[string]string{o.Name: string(o.Direction)})
	}
	for _, c := range v.Constraints {
		d.Constraints = append(d.Constraints, map[string][]any{c.Name: {string(c.Type), c.Value}})
	}
	d.States = append(d.States, v.Observables...)
	return d
}

func single[T any](entry map[string]T, section string, i int) (string, T, error) {
	var zero T
	if len(entry) != 1 {
		return "", zero, fmt.Errorf("%s[%d]: expected a single-key mapping, got %d keys", section, i, len(entry))
	}
	for k, val := range entry {
		return k, val, nil
	}
	return "", zero, nil
}

func parseConstraint(name string, spec []any) (Constraint, error) {
	if len(spec) != 2 {
		return Constraint{}, fmt.Errorf("%s: expected [TYPE, value], got %v", name, spec)
	}
	typ, ok := spec[0].(string)
	if !ok {
		return Constraint{}, fmt.Errorf("%s: constraint type must be a string, got %T", name, spec[0])
	}
	value, err := toFloat(spec[1])
	if err != nil {
		return Constraint{}, fmt.Errorf("%s: %w", name, err)
	}
	return Constraint{Name: name, Type: ConstraintType(strings.ToUpper(typ)), Value: value}, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to a number", v)
}
