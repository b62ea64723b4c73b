package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/michaellans/Badger/internal/routine"
)

// FSRoutineStore implements RoutineStore with one YAML file per routine:
// <baseDir>/routines/<id>.yaml
type FSRoutineStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFSRoutineStore creates a routine store. The routines directory is
// created if it doesn't exist.
func NewFSRoutineStore(baseDir string) (*FSRoutineStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "routines"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create routines directory: %w", err)
	}
	return &FSRoutineStore{baseDir: baseDir}, nil
}

func (s *FSRoutineStore) routinePath(id string) string {
	return filepath.Join(s.baseDir, "routines", id+".yaml")
}

// validID reports whether id names a file directly inside the routines
// directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && filepath.IsLocal(id) && id != "."
}

// Save writes the routine atomically, assigning an ID if needed.
func (s *FSRoutineStore) Save(spec *routine.Spec) error {
	if spec == nil {
		return fmt.Errorf("routine cannot be nil")
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if spec.ID == "" {
		spec.ID = uuid.New().String()
	} else if !validID(spec.ID) {
		return fmt.Errorf("invalid routine id %q", spec.ID)
	}
	if spec.Created.IsZero() {
		spec.Created = time.Now()
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to serialize routine: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.routinePath(spec.ID), data); err != nil {
		return err
	}

	slog.Debug("Routine saved", "id", spec.ID, "name", spec.Name)
	return nil
}

// Load reads a routine and its modification time.
func (s *FSRoutineStore) Load(id string) (*routine.Spec, time.Time, error) {
	if id == "" {
		return nil, time.Time{}, fmt.Errorf("routine id cannot be empty")
	}
	if !validID(id) {
		return nil, time.Time{}, &NotFoundError{Kind: "routine", ID: id}
	}

	path := s.routinePath(id)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, time.Time{}, &NotFoundError{Kind: "routine", ID: id}
	} else if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to stat routine file: %w", err)
	}

	spec, err := routine.LoadSpec(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	if spec.ID == "" {
		spec.ID = id
	}
	return spec, info.ModTime(), nil
}

// List returns matching routines, newest first.
func (s *FSRoutineStore) List(keyword string, tags []string) ([]RoutineInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "routines"))
	if err != nil {
		return nil, fmt.Errorf("failed to read routines directory: %w", err)
	}

	infos := []RoutineInfo{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".yaml")
		spec, ts, err := s.Load(id)
		if err != nil {
			slog.Warn("Failed to load routine for listing", "id", id, "error", err)
			continue
		}

		ok, err := matchKeyword(keyword, spec.Name)
		if err != nil {
			return nil, err
		}
		if !ok || !hasTags(spec.Tags, tags) {
			continue
		}

		infos = append(infos, RoutineInfo{
			ID:          spec.ID,
			Name:        spec.Name,
			Env:         spec.Env,
			Generator:   spec.Generator,
			Description: spec.Description,
			Tags:        spec.Tags,
			Timestamp:   ts,
		})
	}

	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Timestamp.After(infos[j].Timestamp) })
	slog.Debug("Listed routines", "count", len(infos), "keyword", keyword, "tags", tags)
	return infos, nil
}

// Remove deletes a routine file.
func (s *FSRoutineStore) Remove(id string) error {
	if id == "" {
		return fmt.Errorf("routine id cannot be empty")
	}
	if !validID(id) {
		return &NotFoundError{Kind: "routine", ID: id}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.routinePath(id))
	if os.IsNotExist(err) {
		return &NotFoundError{Kind: "routine", ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to remove routine: %w", err)
	}

	slog.Debug("Routine removed", "id", id)
	return nil
}

// exportFile is the layout of an export.
type exportFile struct {
	Exported time.Time      `yaml:"exported"`
	Routines []routine.Spec `yaml:"routines"`
}

// Export writes the given routines to path.
func (s *FSRoutineStore) Export(path string, ids []string) error {
	out := exportFile{Exported: time.Now()}
	for _, id := range ids {
		spec, _, err := s.Load(id)
		if err != nil {
			return err
		}
		out.Routines = append(out.Routines, *spec)
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to serialize export: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	slog.Info("Routines exported", "path", path, "count", len(out.Routines))
	return nil
}

// Import saves the routines of an export file, skipping IDs that exist.
func (s *FSRoutineStore) Import(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export file: %w", err)
	}

	var in exportFile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to parse export file: %w", err)
	}

	var imported []string
	for i := range in.Routines {
		spec := &in.Routines[i]
		if spec.ID != "" {
			_, _, err := s.Load(spec.ID)
			if err == nil {
				slog.Warn("Routine already exists, skipping", "id", spec.ID, "name", spec.Name)
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				return imported, err
			}
		}
		if err := s.Save(spec); err != nil {
			return imported, fmt.Errorf("failed to import routine %q: %w", spec.Name, err)
		}
		imported = append(imported, spec.ID)
	}

	slog.Info("Routines imported", "path", path, "count", len(imported))
	return imported, nil
}

// matchKeyword matches name case-insensitively against a glob, or checks
// for a substring when keyword holds no glob characters.
func matchKeyword(keyword, name string) (bool, error) {
	if keyword == "" {
		return true, nil
	}
	keyword, name = strings.ToLower(keyword), strings.ToLower(name)
	if !strings.ContainsAny(keyword, "*?[{") {
		return strings.Contains(name, keyword), nil
	}
	ok, err := doublestar.Match(keyword, name)
	if err != nil {
		return false, fmt.Errorf("invalid keyword pattern %q: %w", keyword, err)
	}
	return ok, nil
}

func hasTags(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

// writeFileAtomic writes to a temporary file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
