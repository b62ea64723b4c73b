package plugin

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is the declaration of a plugin, completed by the loader with
// derived params, variable bounds and observables.
type Config struct {
	Name         string                 `yaml:"name" json:"name"`
	Description  string                 `yaml:"description" json:"description"`
	Version      string                 `yaml:"version" json:"version"`
	Dependencies []string               `yaml:"dependencies" json:"dependencies"`
	Interface    Names                  `yaml:"interface" json:"interface"`
	Params       map[string]any         `yaml:"params" json:"params"`
	Variables    []map[string][]float64 `yaml:"variables,omitempty" json:"variables,omitempty"`
	Observations []string               `yaml:"observations,omitempty" json:"observations,omitempty"`
}

// Names is a list of names that may be declared as a single scalar.
type Names []string

// UnmarshalYAML accepts both `interface: sim` and `interface: [sim]`.
func (n *Names) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			*n = nil
			return nil
		}
		*n = Names{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	}
	return fmt.Errorf("line %d: expected a name or a list of names", node.Line)
}

// parseConfig decodes a declaration. An empty document is an error.
func parseConfig(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty declaration")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Clone returns a deep copy. A nil config clones to nil.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{
		Name:         c.Name,
		Description:  c.Description,
		Version:      c.Version,
		Dependencies: cloneStrings(c.Dependencies),
		Interface:    Names(cloneStrings(c.Interface)),
		Observations: cloneStrings(c.Observations),
	}
	if c.Params != nil {
		out.Params = cloneValue(c.Params).(map[string]any)
	}
	if c.Variables != nil {
		out.Variables = make([]map[string][]float64, len(c.Variables))
		for i, v := range c.Variables {
			m := make(map[string][]float64, len(v))
			for name, bounds := range v {
				m[name] = append([]float64(nil), bounds...)
			}
			out.Variables[i] = m
		}
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// cloneValue deep-copies the maps and slices YAML decoding produces.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []float64:
		return append([]float64(nil), t...)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
