package builtin

import (
	"fmt"

	"github.com/michaellans/Badger/internal/env"
	"github.com/michaellans/Badger/internal/plugin"
	"github.com/michaellans/Badger/internal/vocs"
)

var testVariables = []string{"x0", "x1", "x2", "x3"}

var testPlugin = &plugin.EnvironmentPlugin{
	Fields: []plugin.Field{
		{Name: "interface", Type: "list"},
		{Name: "offset", Type: "float", Default: 0.0},
	},
	Variables:   testVariables,
	Observables: []string{"f", "g"},
	New: func(intf env.Interface, params map[string]any) (env.Environment, error) {
		return NewTestEnv(intf, params)
	},
}

// TestEnv is a quadratic problem: f is the sum of squares of x0..x3 plus an
// offset, g is their sum. Without an interface it keeps values itself.
type TestEnv struct {
	env.Base
	offset float64
	local  map[string]float64
}

// NewTestEnv builds the environment around an optional interface.
func NewTestEnv(intf env.Interface, params map[string]any) (*TestEnv, error) {
	e := &TestEnv{Base: env.Base{Interface: intf, Params: params}, local: make(map[string]float64)}

	offset, err := e.Float("offset", 0)
	if err != nil {
		return nil, fmt.Errorf("test environment: %w", err)
	}
	e.offset = offset
	return e, nil
}

func (e *TestEnv) Variables() []string   { return append([]string(nil), testVariables...) }
func (e *TestEnv) Observables() []string { return []string{"f", "g"} }

func (e *TestEnv) GetBounds(names []string) (map[string]vocs.Bounds, error) {
	all := make(map[string]vocs.Bounds, len(testVariables))
	for _, n := range testVariables {
		all[n] = vocs.Bounds{-1, 1}
	}
	return env.StaticBounds(all, names)
}

func (e *TestEnv) GetVariables(names []string) (map[string]float64, error) {
	for _, n := range names {
		if !e.known(n) {
			return nil, fmt.Errorf("test environment: unknown variable %q", n)
		}
	}
	if e.Interface != nil {
		return e.Interface.GetValues(names)
	}
	out := make(map[string]float64, len(names))
	for _, n := range names {
		out[n] = e.local[n]
	}
	return out, nil
}

func (e *TestEnv) SetVariables(values map[string]float64) error {
	for n := range values {
		if !e.known(n) {
			return fmt.Errorf("test environment: unknown variable %q", n)
		}
	}
	if e.Interface != nil {
		return e.Interface.SetValues(values)
	}
	for n, v := range values {
		e.local[n] = v
	}
	return nil
}

func (e *TestEnv) GetObservables(names []string) (map[string]float64, error) {
	x, err := e.GetVariables(testVariables)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(names))
	for _, n := range names {
		switch n {
		case "f":
			var f float64
			for _, v := range x {
				f += v * v
			}
			out[n] = f + e.offset
		case "g":
			var g float64
			for _, v := range x {
				g += v
			}
			out[n] = g
		default:
			return nil, fmt.Errorf("test environment: unknown observable %q", n)
		}
	}
	return out, nil
}

func (e *TestEnv) known(name string) bool {
	for _, n := range testVariables {
		if n == name {
			return true
		}
	}
	return false
}
