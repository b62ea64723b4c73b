// Package plugin discovers, loads and caches interface, environment and
// generator plugins.
//
// A plugin is a directory under the plugin root holding a `.plugin` marker,
// a `configs.yaml` declaration and an optional README.md. The code behind a
// plugin is compiled into the binary and registered by name with
// RegisterInterface, RegisterEnvironment or RegisterGenerator; the directory
// only makes it visible and declares its metadata.
package plugin

import (
	"github.com/michaellans/Badger/internal/env"
	"github.com/michaellans/Badger/internal/generator"
	"github.com/michaellans/Badger/internal/vocs"
)

// Kind is one of the supported plugin kinds.
type Kind string

const (
	KindInterface   Kind = "interface"
	KindEnvironment Kind = "environment"
	KindGenerator   Kind = "generator"
)

// MarkerFile must exist in a plugin directory for the plugin to be indexed.
const MarkerFile = ".plugin"

// DeclarationFile is the per-plugin YAML declaration.
const DeclarationFile = "configs.yaml"

// Kinds returns every supported kind in scan order.
func Kinds() []Kind {
	return []Kind{KindInterface, KindEnvironment, KindGenerator}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindInterface, KindEnvironment, KindGenerator:
		return k, nil
	}
	return "", &InvalidPluginKindError{Kind: s}
}

// Dir returns the subdirectory of the plugin root holding plugins of kind k.
func (k Kind) Dir() string { return string(k) + "s" }

// Field declares one parameter of a plugin with its default.
type Field struct {
	Name     string
	Type     string
	Default  any
	Required bool
}

// Artifact is the loaded, executable part of a plugin.
type Artifact interface {
	Kind() Kind
	DeclaredFields() []Field
}

// InterfacePlugin builds interfaces.
type InterfacePlugin struct {
	Fields []Field
	New    func(params map[string]any) (env.Interface, error)
}

func (p *InterfacePlugin) Kind() Kind              { return KindInterface }
func (p *InterfacePlugin) DeclaredFields() []Field { return p.Fields }

// EnvironmentPlugin builds environments on top of an (optional) interface.
type EnvironmentPlugin struct {
	Fields      []Field
	Variables   []string
	Observables []string
	New         func(intf env.Interface, params map[string]any) (env.Environment, error)
}

func (p *EnvironmentPlugin) Kind() Kind              { return KindEnvironment }
func (p *EnvironmentPlugin) DeclaredFields() []Field { return p.Fields }

// GeneratorPlugin builds generators for a VOCS.
type GeneratorPlugin struct {
	Fields []Field
	New    func(v *vocs.VOCS, params map[string]any) (generator.Generator, error)
}

func (p *GeneratorPlugin) Kind() Kind              { return KindGenerator }
func (p *GeneratorPlugin) DeclaredFields() []Field { return p.Fields }

// Defaults maps declared field names to their defaults, skipping names in
// exclude. Fields without a default map to nil.
func Defaults(fields []Field, exclude ...string) map[string]any {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	params := make(map[string]any, len(fields))
	for _, f := range fields {
		if skip[f.Name] {
			continue
		}
		params[f.Name] = cloneValue(f.Default)
	}
	return params
}

// MissingRequired returns the first required field that has no value in params.
func MissingRequired(fields []Field, params map[string]any) (string, bool) {
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if v, ok := params[f.Name]; !ok || v == nil {
			return f.Name, true
		}
	}
	return "", false
}

func (k Kind) String() string { return string(k) }
