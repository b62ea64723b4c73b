// Package routine composes environments and generators into routines and
// reads and writes their run files.
package routine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/michaellans/Badger/internal/config"
	"github.com/michaellans/Badger/internal/env"
	"github.com/michaellans/Badger/internal/generator"
	"github.com/michaellans/Badger/internal/plugin"
	"github.com/michaellans/Badger/internal/table"
	"github.com/michaellans/Badger/internal/vocs"
)

// Routine is one optimization task. It exclusively owns its environment and
// generator; Data only grows while a run is in progress.
type Routine struct {
	ID            string
	Name          string
	Environment   env.Environment
	Generator     generator.Generator
	InitialPoints *table.Table
	Data          *table.Table
	VOCS          *vocs.VOCS

	// Spec is the definition the routine was composed from.
	Spec *Spec
}

// Termination returns the routine's termination criteria.
func (r *Routine) Termination() Termination {
	if r.Spec == nil {
		return Termination{}
	}
	return r.Spec.Config.Termination
}

// HasData reports whether any rows were recorded.
func (r *Routine) HasData() bool {
	return r.Data.Len() > 0
}

// InstantiateEnv builds an environment from its plugin and a config whose
// params are already merged with the routine's. The first declared
// interface is built with its default params.
func InstantiateEnv(reg *plugin.Registry, p *plugin.EnvironmentPlugin, cfg *plugin.Config) (env.Environment, error) {
	params := generator.MergeParams(cfg.Params, nil)
	delete(params, "interface")

	if field, missing := plugin.MissingRequired(p.Fields, params); missing && field != "interface" {
		return nil, &config.ConfigError{
			Key:    field,
			Reason: fmt.Sprintf("environment %s requires param %s", cfg.Name, field),
		}
	}

	var intf env.Interface
	if len(cfg.Interface) > 0 {
		built, err := reg.NewInterface(cfg.Interface[0], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build interface %s: %w", cfg.Interface[0], err)
		}
		intf = built
	}

	e, err := p.New(intf, params)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate environment %s: %w", cfg.Name, err)
	}
	return e, nil
}

// Compose resolves the routine's plugins and builds a ready-to-run Routine
// with empty data.
func Compose(reg *plugin.Registry, spec *Spec) (*Routine, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ep, ecfg, err := reg.GetEnvironment(spec.Env)
	if err != nil {
		return nil, err
	}
	ecfg.Params = generator.MergeParams(ecfg.Params, spec.EnvParams)
	environment, err := InstantiateEnv(reg, ep, ecfg)
	if err != nil {
		return nil, err
	}

	v, err := vocs.FromDeclaration(spec.Config.Declaration)
	if err != nil {
		return nil, fmt.Errorf("routine %s: %w", spec.Name, err)
	}
	if err := checkNames(v.VariableNames(), environment.Variables(), "variable"); err != nil {
		return nil, fmt.Errorf("routine %s: %w", spec.Name, err)
	}

	gp, gcfg, err := reg.Generator(spec.Generator)
	if err != nil {
		return nil, err
	}
	gen, err := gp.New(v, generator.MergeParams(gcfg.Params, spec.GeneratorParams))
	if err != nil {
		return nil, fmt.Errorf("routine %s: %w", spec.Name, err)
	}

	initial, err := initialPoints(spec, v, environment)
	if err != nil {
		return nil, fmt.Errorf("routine %s: %w", spec.Name, err)
	}

	id := spec.ID
	if id == "" {
		id = uuid.New().String()
		spec.ID = id
	}
	if spec.Created.IsZero() {
		spec.Created = time.Now()
	}

	slog.Debug("Routine composed", "id", id, "name", spec.Name, "env", spec.Env, "generator", spec.Generator)
	return &Routine{
		ID:            id,
		Name:          spec.Name,
		Environment:   environment,
		Generator:     gen,
		InitialPoints: initial,
		Data:          table.New(),
		VOCS:          v,
		Spec:          spec,
	}, nil
}

// initialPoints uses the declared init_points verbatim, or reads the
// environment's current variable values into a single row.
func initialPoints(spec *Spec, v *vocs.VOCS, e env.Environment) (*table.Table, error) {
	names := v.VariableNames()

	if len(spec.Config.InitPoints) > 0 {
		t, err := table.FromColumns(spec.Config.InitPoints, names)
		if err != nil {
			return nil, fmt.Errorf("invalid init_points: %w", err)
		}
		if t.Len() > 0 {
			return t, nil
		}
	}

	current, err := e.GetVariables(names)
	if err != nil {
		return nil, fmt.Errorf("failed to read current variables: %w", err)
	}
	return table.FromRecords(names, current)
}

func checkNames(names, available []string, what string) error {
	known := make(map[string]bool, len(available))
	for _, n := range available {
		known[n] = true
	}
	for _, n := range names {
		if !known[n] {
			return fmt.Errorf("unknown %s %q", what, n)
		}
	}
	return nil
}
