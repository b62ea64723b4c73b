// Package env defines the capability contracts of interfaces (the transport
// to a machine or simulator) and environments (the optimization problem
// built on top of an interface).
package env

import (
	"fmt"

	"github.com/michaellans/Badger/internal/vocs"
)

// Interface moves values to and from a physical or simulated system.
type Interface interface {
	// GetValues reads the current value of each channel.
	GetValues(channels []string) (map[string]float64, error)
	// SetValues writes the given channel values.
	SetValues(values map[string]float64) error
}

// Environment is an optimization problem: a set of variables that can be
// read and written, and a set of observables that can be measured.
type Environment interface {
	// Variables returns the declared variable names in declaration order.
	Variables() []string
	// Observables returns the declared observable names.
	Observables() []string
	// GetBounds returns the [lo, hi] range of each named variable.
	GetBounds(names []string) (map[string]vocs.Bounds, error)
	// GetVariables reads the current value of each named variable.
	GetVariables(names []string) (map[string]float64, error)
	// SetVariables writes the given variable values.
	SetVariables(values map[string]float64) error
	// GetObservables measures each named observable.
	GetObservables(names []string) (map[string]float64, error)
}

// StateReporter is implemented by environments that expose auxiliary system
// states worth recording alongside a run.
type StateReporter interface {
	SystemStates() (map[string]any, error)
}

// Base carries the state every environment shares: the bound interface and
// the merged params. Environments embed it.
type Base struct {
	Interface Interface
	Params    map[string]any
}

// Param returns a named param.
func (b *Base) Param(name string) (any, bool) {
	v, ok := b.Params[name]
	return v, ok
}

// Float returns a named numeric param, or def if unset.
func (b *Base) Float(name string, def float64) (float64, error) {
	v, ok := b.Params[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("param %s: expected a number, got %T", name, v)
}

// StaticBounds answers GetBounds from a fixed table, failing on unknown names.
func StaticBounds(all map[string]vocs.Bounds, names []string) (map[string]vocs.Bounds, error) {
	out := make(map[string]vocs.Bounds, len(names))
	for _, n := range names {
		b, ok := all[n]
		if !ok {
			return nil, fmt.Errorf("unknown variable %q", n)
		}
		out[n] = b
	}
	return out, nil
}
