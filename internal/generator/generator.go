// Package generator is the optimization algorithm library: a registry of
// named generators that propose candidate points and learn from evaluated
// data. Callers only rely on the Generator call contract.
package generator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/michaellans/Badger/internal/table"
	"github.com/michaellans/Badger/internal/vocs"
)

// Generator proposes candidates for a VOCS and consumes evaluated data.
type Generator interface {
	// Name returns the registered algorithm name.
	Name() string
	// VOCS returns the problem schema the generator was built for.
	VOCS() *vocs.VOCS
	// Generate proposes n candidates; the table's columns are the variable names.
	Generate(n int) (*table.Table, error)
	// AddData feeds evaluated rows back into the generator.
	AddData(data *table.Table) error
	// Data returns every row added so far.
	Data() *table.Table
}

// ParetoRanker is implemented by generators that rank points themselves.
type ParetoRanker interface {
	ParetoFront() (*table.Table, error)
}

// Factory builds a generator from a VOCS and params merged over Defaults.
type Factory struct {
	Description string
	Defaults    map[string]any
	New         func(v *vocs.VOCS, params map[string]any) (Generator, error)
}

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a named generator to the library. Registering the same name
// twice panics.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, dup := factories[name]; dup {
		panic("generator: Register called twice for " + name)
	}
	factories[name] = f
}

// Names returns every registered generator name, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()

	f, ok := factories[name]
	return f, ok
}

// Defaults returns a copy of the default params of a generator.
func Defaults(name string) (map[string]any, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, &UnknownGeneratorError{Name: name}
	}
	return MergeParams(f.Defaults, nil), nil
}

// New builds the named generator, merging params over its defaults.
// Params not declared in the defaults are rejected.
func New(name string, v *vocs.VOCS, params map[string]any) (Generator, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, &UnknownGeneratorError{Name: name}
	}
	for k := range params {
		if _, known := f.Defaults[k]; !known {
			return nil, fmt.Errorf("generator %s: unknown param %q", name, k)
		}
	}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("generator %s: invalid vocs: %w", name, err)
	}
	return f.New(v, MergeParams(f.Defaults, params))
}

// MergeParams returns a new map holding defaults overridden by params.
func MergeParams(defaults, params map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(params))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out
}

// UnknownGeneratorError is returned for names missing from the library.
type UnknownGeneratorError struct {
	Name string
}

func (e *UnknownGeneratorError) Error() string {
	return "unknown generator: " + e.Name
}
