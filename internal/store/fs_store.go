package store

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/michaellans/Badger/internal/routine"
)

// RunPrefix starts every generated run name.
const RunPrefix = "BadgerOpt"

// FSRunStore implements RunStore on the filesystem. Run files are stored
// in a dated tree: <baseDir>/runs/YYYY/YYYY-MM/YYYY-MM-DD/<name>.yaml
//
// Thread-safety: writes use temp file + rename, so concurrent readers never
// see partial files.
type FSRunStore struct {
	baseDir string // Root directory for all persisted data (e.g., "./data")
}

// NewFSRunStore creates a new filesystem-based run store.
// The runs directory will be created if it doesn't exist.
func NewFSRunStore(baseDir string) (*FSRunStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "runs"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}
	return &FSRunStore{baseDir: baseDir}, nil
}

// BaseDir returns the data directory of the store.
func (s *FSRunStore) BaseDir() string { return s.baseDir }

// RunsDir returns the root of the dated run tree.
func (s *FSRunStore) RunsDir() string {
	return filepath.Join(s.baseDir, "runs")
}

// Path returns the absolute location of a run filename.
func (s *FSRunStore) Path(filename string) string {
	return filepath.Join(s.RunsDir(), filepath.FromSlash(filename))
}

// validFilename reports whether filename stays inside the runs directory.
func validFilename(filename string) bool {
	return filepath.IsLocal(filepath.FromSlash(filename))
}

// NewRunName returns a display name for a run started at t.
func NewRunName(t time.Time) string {
	return RunPrefix + "-" + t.Format("2006-01-02-150405")
}

// NewFilename returns a run filename for a run started at t that has no
// run file or trace yet and is not reserved by inUse (may be nil).
func (s *FSRunStore) NewFilename(t time.Time, inUse func(filename string) bool) string {
	name := NewRunName(t)
	filename := s.BaseFilename(name)
	for i := 2; s.taken(filename) || (inUse != nil && inUse(filename)); i++ {
		filename = s.BaseFilename(fmt.Sprintf("%s-%d", name, i))
	}
	return filename
}

func (s *FSRunStore) taken(filename string) bool {
	if _, err := os.Stat(s.Path(filename)); err == nil {
		return true
	}
	_, err := os.Stat(tracePath(s.baseDir, DisplayName(filename)))
	return err == nil
}

var runDate = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

// BaseFilename places a run display name in the dated tree using the date
// embedded in the name. Names without a date are stored at the top level.
func (s *FSRunStore) BaseFilename(displayName string) string {
	name := strings.TrimSuffix(displayName, ".yaml") + ".yaml"

	m := runDate.FindStringSubmatch(displayName)
	if m == nil {
		return name
	}
	year, month, day := m[1], m[2], m[3]
	return strings.Join([]string{
		year,
		year + "-" + month,
		year + "-" + month + "-" + day,
		name,
	}, "/")
}

// DisplayName is the inverse of BaseFilename.
func DisplayName(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), ".yaml")
}

// Save writes a run file atomically.
func (s *FSRunStore) Save(filename string, cp *routine.Checkpoint) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if !validFilename(filename) {
		return fmt.Errorf("invalid run filename %q", filename)
	}
	if err := routine.SaveCheckpoint(s.Path(filename), cp); err != nil {
		return err
	}
	slog.Debug("Run saved", "filename", filename, "routine", cp.Routine.ID)
	return nil
}

// Load reads a run file.
func (s *FSRunStore) Load(filename string) (*routine.Checkpoint, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}
	if !validFilename(filename) {
		return nil, &NotFoundError{Kind: "run", ID: filename}
	}

	path := s.Path(filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{Kind: "run", ID: filename}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat run file: %w", err)
	}

	return routine.LoadCheckpoint(path)
}

// ListAll returns metadata for every readable run file, newest first.
func (s *FSRunStore) ListAll() ([]RunInfo, error) {
	return s.list(func(*routine.Checkpoint) bool { return true })
}

// ListForRoutine returns the runs of one routine, newest first.
func (s *FSRunStore) ListForRoutine(routineID string) ([]RunInfo, error) {
	return s.list(func(cp *routine.Checkpoint) bool { return cp.Routine.ID == routineID })
}

func (s *FSRunStore) list(keep func(*routine.Checkpoint) bool) ([]RunInfo, error) {
	root := s.RunsDir()
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return []RunInfo{}, nil
	}

	infos := []RunInfo{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		cp, err := routine.LoadCheckpoint(path)
		if err != nil {
			slog.Warn("Failed to load run for listing", "filename", rel, "error", err)
			return nil // Skip corrupted runs
		}
		if keep(cp) {
			infos = append(infos, runInfo(filepath.ToSlash(rel), cp))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan runs directory: %w", err)
	}

	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Timestamp.After(infos[j].Timestamp) })
	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

func runInfo(filename string, cp *routine.Checkpoint) RunInfo {
	info := RunInfo{
		Filename:    filename,
		RoutineID:   cp.Routine.ID,
		RoutineName: cp.Routine.Name,
		Env:         cp.Routine.Env,
		Generator:   cp.Routine.Generator,
		Evaluations: cp.Data.Len(),
		Timestamp:   cp.Timestamp,
	}
	if best, ok := cp.BestValue(); ok {
		info.Best = &best
	}
	return info
}

// Delete removes a run file and its evaluation trace.
func (s *FSRunStore) Delete(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if !validFilename(filename) {
		return &NotFoundError{Kind: "run", ID: filename}
	}

	path := s.Path(filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &NotFoundError{Kind: "run", ID: filename}
	} else if err != nil {
		return fmt.Errorf("failed to stat run file: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove run file: %w", err)
	}
	if err := DeleteTrace(s.baseDir, DisplayName(filename)); err != nil {
		return err
	}

	slog.Debug("Run deleted", "filename", filename)
	return nil
}
