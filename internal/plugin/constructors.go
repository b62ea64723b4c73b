package plugin

import (
	"sort"
	"sync"
)

// The constructor table maps (kind, name) to the code compiled into this
// binary. It is filled from init functions and only read afterwards.
var (
	constructorsMu sync.RWMutex
	constructors   = map[Kind]map[string]Artifact{
		KindInterface:   {},
		KindEnvironment: {},
		KindGenerator:   {},
	}
	provided = map[string]bool{}
)

// RegisterInterface makes an interface implementation available by name.
func RegisterInterface(name string, p *InterfacePlugin) { register(name, p) }

// RegisterEnvironment makes an environment implementation available by name.
func RegisterEnvironment(name string, p *EnvironmentPlugin) { register(name, p) }

// RegisterGenerator makes a local generator implementation available by name.
func RegisterGenerator(name string, p *GeneratorPlugin) { register(name, p) }

func register(name string, a Artifact) {
	constructorsMu.Lock()
	defer constructorsMu.Unlock()

	if _, dup := constructors[a.Kind()][name]; dup {
		panic("plugin: register called twice for " + string(a.Kind()) + " " + name)
	}
	constructors[a.Kind()][name] = a
}

// Provide declares that a dependency name is satisfied by this binary.
// Plugin declarations list such names under `dependencies`.
func Provide(names ...string) {
	constructorsMu.Lock()
	defer constructorsMu.Unlock()

	for _, n := range names {
		provided[n] = true
	}
}

func lookupConstructor(kind Kind, name string) (Artifact, bool) {
	constructorsMu.RLock()
	defer constructorsMu.RUnlock()

	a, ok := constructors[kind][name]
	return a, ok
}

// missingDependency returns the first dependency that is neither provided
// nor the name of a registered plugin of any kind.
func missingDependency(deps []string) (string, bool) {
	constructorsMu.RLock()
	defer constructorsMu.RUnlock()

	for _, d := range deps {
		if provided[d] {
			continue
		}
		found := false
		for _, byName := range constructors {
			if _, ok := byName[d]; ok {
				found = true
				break
			}
		}
		if !found {
			return d, true
		}
	}
	return "", false
}

// Registered returns the sorted names with a registered constructor of kind.
func Registered(kind Kind) []string {
	constructorsMu.RLock()
	defer constructorsMu.RUnlock()

	names := make([]string, 0, len(constructors[kind]))
	for n := range constructors[kind] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
