package routine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/michaellans/Badger/internal/plugin"
	"github.com/michaellans/Badger/internal/table"
	"github.com/michaellans/Badger/internal/vocs"
)

// Checkpoint is the durable state of a routine: its definition, the
// resolved schema, the initial points and every recorded row.
//
// Generator internals (surrogate models, random state) are not saved. On
// restore a fresh generator is built and fed the recorded data, so a
// resumed run continues from the same data but not necessarily the same
// proposals.
type Checkpoint struct {
	Routine       Spec             `yaml:"routine" json:"routine"`
	VOCS          vocs.Declaration `yaml:"vocs" json:"vocs"`
	InitialPoints *table.Table     `yaml:"initial_points" json:"initial_points"`
	Data          *table.Table     `yaml:"data" json:"data"`
	Timestamp     time.Time        `yaml:"timestamp" json:"timestamp"`
}

// Checkpoint snapshots the routine.
func (r *Routine) Checkpoint() *Checkpoint {
	cp := &Checkpoint{
		VOCS:          r.VOCS.Declaration(),
		InitialPoints: r.InitialPoints.Clone(),
		Data:          r.Data.Clone(),
		Timestamp:     time.Now(),
	}
	if r.Spec != nil {
		cp.Routine = *r.Spec
	}
	cp.Routine.ID = r.ID
	cp.Routine.Name = r.Name
	return cp
}

// Validate checks a loaded checkpoint before it is restored.
func (c *Checkpoint) Validate() error {
	if c.Routine.ID == "" {
		return &ValidationError{Field: "routine.id", Reason: "cannot be empty"}
	}
	if err := c.Routine.Validate(); err != nil {
		return err
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "cannot be zero"}
	}
	if c.Data != nil {
		for i, row := range c.Data.Rows {
			if len(row) != len(c.Data.Columns) {
				return &ValidationError{Field: "data", Reason: fmt.Sprintf("row %d has %d values for %d columns", i, len(row), len(c.Data.Columns))}
			}
		}
	}
	return nil
}

// BestValue returns the best recorded value of the first objective and
// whether any feasible row exists.
func (c *Checkpoint) BestValue() (float64, bool) {
	v, err := vocs.FromDeclaration(c.VOCS)
	if err != nil || len(v.Objectives) == 0 {
		return 0, false
	}
	return v.BestValue(c.Data)
}

// SaveCheckpoint writes cp as YAML to path. The file is written to a
// temporary name first and renamed into place.
func SaveCheckpoint(path string, cp *Checkpoint) error {
	if path == "" {
		return fmt.Errorf("checkpoint path cannot be empty")
	}
	if cp == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	slog.Debug("Checkpoint saved", "routine", cp.Routine.ID, "path", path, "rows", cp.Data.Len())
	return nil
}

// LoadCheckpoint reads and validates a checkpoint file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}
	if err := cp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", path, err)
	}

	slog.Debug("Checkpoint loaded", "routine", cp.Routine.ID, "path", path)
	return &cp, nil
}

// Restore recomposes the routine of a checkpoint and replaces its data with
// the recorded rows, feeding them to the new generator.
func Restore(reg *plugin.Registry, cp *Checkpoint) (*Routine, error) {
	spec := cp.Routine
	r, err := Compose(reg, &spec)
	if err != nil {
		return nil, fmt.Errorf("failed to restore routine %s: %w", cp.Routine.ID, err)
	}
	if err := r.ReplaceData(cp.Data); err != nil {
		return nil, err
	}
	if cp.InitialPoints.Len() > 0 {
		r.InitialPoints = cp.InitialPoints.Clone()
	}
	return r, nil
}

// ReplaceData swaps the routine's data wholesale, as when a stored run is
// reloaded, and feeds the rows to the generator.
func (r *Routine) ReplaceData(data *table.Table) error {
	if data.Len() == 0 {
		r.Data = table.New()
		return nil
	}
	if err := r.Generator.AddData(data); err != nil {
		return fmt.Errorf("failed to feed recorded data to generator: %w", err)
	}
	r.Data = data.Clone()
	return nil
}
