package routine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/michaellans/Badger/internal/vocs"
)

// Spec is the user-authored, serializable definition of a routine.
type Spec struct {
	ID              string         `yaml:"id,omitempty" json:"id,omitempty"`
	Name            string         `yaml:"name" json:"name"`
	Description     string         `yaml:"description,omitempty" json:"description,omitempty"`
	Tags            []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Env             string         `yaml:"env" json:"env"`
	EnvParams       map[string]any `yaml:"env_params,omitempty" json:"env_params,omitempty"`
	Generator       string         `yaml:"generator" json:"generator"`
	GeneratorParams map[string]any `yaml:"generator_params,omitempty" json:"generator_params,omitempty"`
	Config          Config         `yaml:"config" json:"config"`
	Created         time.Time      `yaml:"created,omitempty" json:"created,omitempty"`
}

// Config holds the problem declaration and run options of a routine.
type Config struct {
	vocs.Declaration `yaml:",inline"`

	// InitPoints maps each variable to the values of the first rows to
	// evaluate. Empty means start from the environment's current values.
	InitPoints  map[string][]float64 `yaml:"init_points,omitempty" json:"init_points,omitempty"`
	Termination Termination          `yaml:"termination,omitempty" json:"termination,omitempty"`
}

// Termination lists optional criteria that end a run without a stop signal.
// Zero values disable a criterion.
type Termination struct {
	// MaxEvaluations stops once the routine holds this many rows
	MaxEvaluations int `yaml:"max_evaluations,omitempty" json:"max_evaluations,omitempty"`
	// Patience stops after this many evaluations without improvement
	Patience int `yaml:"patience,omitempty" json:"patience,omitempty"`
	// Threshold is the minimum change that counts as improvement
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
}

// Validate checks the fields Compose cannot do without.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	if s.Env == "" {
		return &ValidationError{Field: "env", Reason: "cannot be empty"}
	}
	if s.Generator == "" {
		return &ValidationError{Field: "generator", Reason: "cannot be empty"}
	}
	if len(s.Config.Variables) == 0 {
		return &ValidationError{Field: "config.variables", Reason: "cannot be empty"}
	}
	if len(s.Config.Objectives) == 0 {
		return &ValidationError{Field: "config.objectives", Reason: "cannot be empty"}
	}
	if s.Config.Termination.MaxEvaluations < 0 {
		return &ValidationError{Field: "config.termination.max_evaluations", Reason: "cannot be negative"}
	}
	if s.Config.Termination.Patience < 0 {
		return &ValidationError{Field: "config.termination.patience", Reason: "cannot be negative"}
	}
	n := -1
	for name, values := range s.Config.InitPoints {
		if n >= 0 && len(values) != n {
			return &ValidationError{Field: "config.init_points." + name, Reason: "length differs from other variables"}
		}
		n = len(values)
	}
	return nil
}

// ParseSpec decodes a routine from YAML.
func ParseSpec(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse routine: %w", err)
	}
	return &s, nil
}

// LoadSpec reads a routine file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routine: %w", err)
	}
	return ParseSpec(data)
}

// ValidationError reports an invalid routine or run file field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
