package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/michaellans/Badger/internal/config"
	"github.com/michaellans/Badger/internal/env"
	"github.com/michaellans/Badger/internal/generator"
	"github.com/michaellans/Badger/internal/vocs"
)

// Index maps each kind to the plugin names found on disk.
type Index map[Kind]map[string]struct{}

// Scan lists the plugins under root without loading them. A plugin is a
// subdirectory of root/<kind>s holding MarkerFile. Unreadable or missing
// kind directories produce empty sets. When localGenerators is false the
// generator set is always empty.
func Scan(root string, localGenerators bool) Index {
	idx := make(Index, 3)
	for _, kind := range Kinds() {
		idx[kind] = map[string]struct{}{}
		if kind == KindGenerator && !localGenerators {
			continue
		}

		dir := filepath.Join(root, kind.Dir())
		entries, err := os.ReadDir(dir)
		if err != nil {
			slog.Debug("Plugin kind directory not readable", "kind", kind, "dir", dir, "error", err)
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, e.Name(), MarkerFile)); err == nil {
				idx[kind][e.Name()] = struct{}{}
			}
		}
	}
	return idx
}

// entry is the cache slot of one indexed plugin. It moves from unloaded to
// loaded at most once.
type entry struct {
	mu       sync.Mutex
	loaded   bool
	artifact Artifact
	config   *Config
}

// Registry is the plugin cache: a read-only index built once by Scan plus
// write-once cache slots filled on first Get.
type Registry struct {
	root            string
	localGenerators bool
	excluded        map[string]bool
	entries         map[Kind]map[string]*entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithLocalGenerators switches generator discovery to the plugin root.
func WithLocalGenerators(enabled bool) Option {
	return func(r *Registry) { r.localGenerators = enabled }
}

// WithExcludedGenerators replaces the generator library denylist.
func WithExcludedGenerators(names []string) Option {
	return func(r *Registry) {
		r.excluded = make(map[string]bool, len(names))
		for _, n := range names {
			r.excluded[n] = true
		}
	}
}

// NewRegistry scans root and returns a registry with every plugin unloaded.
func NewRegistry(root string, opts ...Option) *Registry {
	r := &Registry{root: root}
	WithExcludedGenerators(config.DefaultExcludedGenerators)(r)
	for _, opt := range opts {
		opt(r)
	}

	idx := Scan(root, r.localGenerators)
	r.entries = make(map[Kind]map[string]*entry, len(idx))
	for kind, names := range idx {
		r.entries[kind] = make(map[string]*entry, len(names))
		for name := range names {
			r.entries[kind][name] = &entry{}
		}
	}

	slog.Debug("Plugin root scanned", "root", root,
		"interfaces", len(idx[KindInterface]),
		"environments", len(idx[KindEnvironment]),
		"generators", len(idx[KindGenerator]))
	return r
}

// FromSettings builds a registry from the process settings.
func FromSettings(s *config.Settings) *Registry {
	return NewRegistry(s.PluginRoot,
		WithLocalGenerators(s.LoadLocalGenerators),
		WithExcludedGenerators(s.ExcludedGenerators))
}

// Root returns the scanned plugin root.
func (r *Registry) Root() string { return r.root }

// LocalGenerators reports whether generators come from the plugin root.
func (r *Registry) LocalGenerators() bool { return r.localGenerators }

// Get returns the cached artifact of a plugin with a deep copy of its config,
// loading it on first access.
func (r *Registry) Get(kind Kind, name string) (Artifact, *Config, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, nil, err
	}
	e, ok := r.entries[kind][name]
	if !ok {
		return nil, nil, &PluginNotFoundError{Kind: kind, Name: name}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		a, cfg, err := r.Load(kind, name)
		if err != nil {
			return nil, nil, err
		}
		e.artifact, e.config, e.loaded = a, cfg, true
		slog.Debug("Plugin loaded", "kind", kind, "name", name)
	}
	return e.artifact, e.config.Clone(), nil
}

// Load reads the declaration of a plugin and binds it to its registered
// constructor. It does not touch the cache; use Get.
func (r *Registry) Load(kind Kind, name string) (Artifact, *Config, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, nil, err
	}

	path := filepath.Join(r.root, kind.Dir(), name, DeclarationFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &InvalidPluginError{Kind: kind, Name: name, Reason: "invalid config", Err: err}
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, nil, &InvalidPluginError{Kind: kind, Name: name, Reason: "invalid config", Err: err}
	}

	a, ok := lookupConstructor(kind, name)
	if !ok {
		return nil, nil, &InvalidPluginError{
			Kind: kind, Name: name, Config: cfg, Err: ErrUnavailable,
			Reason: "not available: no implementation is registered",
		}
	}
	if dep, missing := missingDependency(cfg.Dependencies); missing {
		return nil, nil, &InvalidPluginError{
			Kind: kind, Name: name, Config: cfg, Err: ErrUnavailable,
			Reason: fmt.Sprintf("not available due to missing dependencies: %s", dep),
		}
	}

	switch p := a.(type) {
	case *InterfacePlugin:
		cfg.Params = Defaults(p.Fields)
	case *EnvironmentPlugin:
		if err := r.completeEnvironment(name, p, cfg); err != nil {
			return nil, nil, err
		}
	case *GeneratorPlugin:
		if cfg.Params == nil {
			cfg.Params = Defaults(p.Fields)
		}
	}
	return a, cfg, nil
}

// completeEnvironment derives params, bounds and observables. Bounds are read
// from a live instance bound to the first declared interface; if that
// interface cannot be built the environment gets none.
func (r *Registry) completeEnvironment(name string, p *EnvironmentPlugin, cfg *Config) error {
	params := Defaults(p.Fields, "interface")

	var intf env.Interface
	if len(cfg.Interface) > 0 {
		built, err := r.NewInterface(cfg.Interface[0], nil)
		if err != nil {
			slog.Warn("Could not build interface for bounds", "environment", name, "interface", cfg.Interface[0], "error", err)
		} else {
			intf = built
		}
	}

	instance, err := p.New(intf, params)
	if err != nil {
		return &InvalidPluginError{Kind: KindEnvironment, Name: name, Reason: "cannot instantiate", Config: cfg, Err: err}
	}
	bounds, err := instance.GetBounds(p.Variables)
	if err != nil {
		return &InvalidPluginError{Kind: KindEnvironment, Name: name, Reason: "cannot resolve variable bounds", Config: cfg, Err: err}
	}

	variables := make([]map[string][]float64, 0, len(p.Variables))
	for _, v := range p.Variables {
		b := bounds[v]
		variables = append(variables, map[string][]float64{v: {b.Lo(), b.Hi()}})
	}

	cfg.Params = params
	cfg.Variables = variables
	cfg.Observations = append([]string(nil), p.Observables...)
	return nil
}

// GetInterface returns a typed interface plugin.
func (r *Registry) GetInterface(name string) (*InterfacePlugin, *Config, error) {
	a, cfg, err := r.Get(KindInterface, name)
	if err != nil {
		return nil, nil, err
	}
	return a.(*InterfacePlugin), cfg, nil
}

// GetEnvironment returns a typed environment plugin.
func (r *Registry) GetEnvironment(name string) (*EnvironmentPlugin, *Config, error) {
	a, cfg, err := r.Get(KindEnvironment, name)
	if err != nil {
		return nil, nil, err
	}
	return a.(*EnvironmentPlugin), cfg, nil
}

// NewInterface builds the named interface with params merged over its defaults.
func (r *Registry) NewInterface(name string, params map[string]any) (env.Interface, error) {
	p, cfg, err := r.GetInterface(name)
	if err != nil {
		return nil, err
	}
	merged := generator.MergeParams(cfg.Params, params)
	if field, missing := MissingRequired(p.Fields, merged); missing {
		return nil, &config.ConfigError{Key: field, Reason: fmt.Sprintf("interface %s requires param %s", name, field)}
	}
	return p.New(merged)
}

// Generator resolves a generator. With local discovery it comes from the
// plugin root; otherwise from the generator library, minus the denylist.
func (r *Registry) Generator(name string) (*GeneratorPlugin, *Config, error) {
	if r.localGenerators {
		a, cfg, err := r.Get(KindGenerator, name)
		if err != nil {
			return nil, nil, err
		}
		return a.(*GeneratorPlugin), cfg, nil
	}

	f, ok := generator.Lookup(name)
	if !ok || r.excluded[name] {
		return nil, nil, &PluginNotFoundError{Kind: KindGenerator, Name: name}
	}

	fields := make([]Field, 0, len(f.Defaults))
	for k, v := range f.Defaults {
		fields = append(fields, Field{Name: k, Default: v})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	p := &GeneratorPlugin{
		Fields: fields,
		New: func(v *vocs.VOCS, params map[string]any) (generator.Generator, error) {
			return generator.New(name, v, params)
		},
	}
	cfg := &Config{Name: name, Description: f.Description, Params: Defaults(fields)}
	return p, cfg, nil
}

// List returns the sorted plugin names of a kind.
func (r *Registry) List(kind Kind) ([]string, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	if kind == KindGenerator && !r.localGenerators {
		var names []string
		for _, n := range generator.Names() {
			if !r.excluded[n] {
				names = append(names, n)
			}
		}
		return names, nil
	}

	names := make([]string, 0, len(r.entries[kind]))
	for n := range r.entries[kind] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Summary describes a plugin for listings.
type Summary struct {
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// Summaries loads every plugin of kind and reports which are usable. Load
// failures are reported per plugin and do not stop the listing.
func (r *Registry) Summaries(kind Kind) ([]Summary, error) {
	names, err := r.List(kind)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(names))
	for _, n := range names {
		s := Summary{Kind: kind, Name: n}

		var cfg *Config
		if kind == KindGenerator {
			_, cfg, err = r.Generator(n)
		} else {
			_, cfg, err = r.Get(kind, n)
		}

		var invalid *InvalidPluginError
		switch {
		case err == nil:
			s.Available = true
		case errors.As(err, &invalid):
			cfg = invalid.Config
			s.Error = invalid.Error()
		default:
			s.Error = err.Error()
		}
		if cfg != nil {
			s.Description, s.Version = cfg.Description, cfg.Version
		}
		out = append(out, s)
	}
	return out, nil
}
