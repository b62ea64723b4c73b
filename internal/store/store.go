// Package store persists routines, run files and evaluation traces on the
// filesystem.
package store

import (
	"time"

	"github.com/michaellans/Badger/internal/routine"
)

// RoutineStore defines the persistence operations for routine definitions.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a routine doesn't exist (for Load/Remove)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type RoutineStore interface {
	// Save writes a routine, assigning an ID when it has none. Saving an
	// existing ID overwrites it.
	Save(spec *routine.Spec) error

	// Load returns a routine and the time it was last saved.
	Load(id string) (*routine.Spec, time.Time, error)

	// List returns routines whose name matches keyword and that carry all
	// tags. Keyword is a case-insensitive glob, or a substring when it holds
	// no glob characters. Results are sorted newest first.
	List(keyword string, tags []string) ([]RoutineInfo, error)

	// Remove deletes a routine. Its runs are kept.
	Remove(id string) error

	// Export writes the given routines into one YAML file.
	Export(path string, ids []string) error

	// Import reads an export file and saves every routine whose ID is not
	// already present. It returns the imported IDs.
	Import(path string) ([]string, error)
}

// RunStore defines the persistence operations for run files.
// Filenames are relative to the run directory.
type RunStore interface {
	// ListAll returns every run, newest first.
	ListAll() ([]RunInfo, error)

	// ListForRoutine returns the runs of one routine, newest first.
	ListForRoutine(routineID string) ([]RunInfo, error)

	// Load reads a run file.
	Load(filename string) (*routine.Checkpoint, error)

	// Save writes a run file atomically.
	Save(filename string, cp *routine.Checkpoint) error

	// Delete removes a run file and its trace.
	Delete(filename string) error

	// BaseFilename maps a run display name to its dated relative filename.
	BaseFilename(displayName string) string
}

// RoutineInfo contains metadata about a stored routine.
type RoutineInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Env         string    `json:"env"`
	Generator   string    `json:"generator"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunInfo contains metadata about a run file without its data.
type RunInfo struct {
	Filename    string    `json:"filename"`
	RoutineID   string    `json:"routineId"`
	RoutineName string    `json:"routineName"`
	Env         string    `json:"env"`
	Generator   string    `json:"generator"`
	Evaluations int       `json:"evaluations"`
	Best        *float64  `json:"best,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrNotFound is returned when a requested routine or run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing routine or run.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "item"
	}
	if e.ID != "" {
		return kind + " not found: " + e.ID
	}
	return kind + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
