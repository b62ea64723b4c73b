package main

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"testing"

	"github.com/michaellans/Badger/internal/config"
	"github.com/michaellans/Badger/internal/plugin"
	"github.com/michaellans/Badger/internal/plugins/builtin"
	"github.com/michaellans/Badger/internal/store"
)

const cliTestRoutine = `
name: cli-test
tags: [cli]
env: test
generator: random
generator_params:
  seed: 3
config:
  variables:
    - x0: [-1, 1]
    - x1: [-1, 1]
  objectives:
    - f: MINIMIZE
  termination:
    max_evaluations: `

// useTestSettings points the commands at a fresh plugin root holding the
// bundled plugins and a fresh data directory, which it returns.
func useTestSettings(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	if _, err := builtin.Install(root, false); err != nil {
		t.Fatalf("Failed to install plugins: %v", err)
	}
	data := t.TempDir()

	s := config.Default()
	s.PluginRoot = root
	s.DataDir = data

	previous := settings
	settings = s
	t.Cleanup(func() {
		settings = previous
		maxEvaluations, saveRoutine, noRecord = 0, false, false
		resumeMore = 0
	})
	return data
}

func writeRoutineFile(t *testing.T, maxEvaluations int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routine.yaml")
	content := cliTestRoutine + strconv.Itoa(maxEvaluations) + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func onlyRun(t *testing.T, data string) store.RunInfo {
	t.Helper()
	runs, err := store.NewFSRunStore(data)
	if err != nil {
		t.Fatal(err)
	}
	infos, err := runs.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(infos))
	}
	return infos[0]
}

func traceLen(t *testing.T, data, filename string) int {
	t.Helper()
	r, err := store.NewTraceReader(data, store.DisplayName(filename))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	entries, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestRunCommand_RecordsRun(t *testing.T) {
	data := useTestSettings(t)

	if err := runRoutine(nil, []string{writeRoutineFile(t, 4)}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	info := onlyRun(t, data)
	if info.Evaluations != 4 {
		t.Errorf("Evaluations = %d, want 4", info.Evaluations)
	}
	if info.RoutineName != "cli-test" || info.Best == nil {
		t.Errorf("Unexpected run info: %+v", info)
	}
	if n := traceLen(t, data, info.Filename); n != 4 {
		t.Errorf("Trace has %d entries, want 4", n)
	}
}

func TestRunCommand_MaxEvaluationsFlag(t *testing.T) {
	data := useTestSettings(t)
	maxEvaluations = 2

	if err := runRoutine(nil, []string{writeRoutineFile(t, 10)}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if info := onlyRun(t, data); info.Evaluations != 2 {
		t.Errorf("Evaluations = %d, want 2", info.Evaluations)
	}
}

func TestRunCommand_NoRecord(t *testing.T) {
	data := useTestSettings(t)
	noRecord = true

	if err := runRoutine(nil, []string{writeRoutineFile(t, 2)}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	runs, _ := store.NewFSRunStore(data)
	infos, _ := runs.ListAll()
	if len(infos) != 0 {
		t.Errorf("Expected no run files, got %d", len(infos))
	}
}

func TestRunCommand_SaveAndRunByID(t *testing.T) {
	data := useTestSettings(t)
	saveRoutine = true

	if err := runRoutine(nil, []string{writeRoutineFile(t, 1)}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	saveRoutine = false

	routines, _ := store.NewFSRoutineStore(data)
	stored, err := routines.List("cli", nil)
	if err != nil || len(stored) != 1 {
		t.Fatalf("Expected the routine to be stored, got %v (%v)", stored, err)
	}

	if err := runRoutine(nil, []string{stored[0].ID}); err != nil {
		t.Fatalf("run by ID failed: %v", err)
	}
	runs, _ := store.NewFSRunStore(data)
	history, _ := runs.ListForRoutine(stored[0].ID)
	if len(history) != 2 {
		t.Errorf("Expected 2 runs of the stored routine, got %d", len(history))
	}
}

func TestRunCommand_UnknownRoutine(t *testing.T) {
	useTestSettings(t)

	if err := runRoutine(nil, []string{"no-such-routine"}); err == nil {
		t.Error("Expected error for unknown routine")
	}
}

func TestResumeCommand_AppendsToRun(t *testing.T) {
	data := useTestSettings(t)

	if err := runRoutine(nil, []string{writeRoutineFile(t, 3)}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	first := onlyRun(t, data)

	resumeMore = 2
	if err := runResume(nil, []string{first.Filename}); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	resumed := onlyRun(t, data)
	if resumed.Filename != first.Filename {
		t.Errorf("Resume wrote %s, want %s", resumed.Filename, first.Filename)
	}
	if resumed.Evaluations != 5 {
		t.Errorf("Evaluations = %d, want 5", resumed.Evaluations)
	}
	if n := traceLen(t, data, first.Filename); n != 5 {
		t.Errorf("Trace has %d entries, want 5", n)
	}
}

func TestResumeCommand_MissingRun(t *testing.T) {
	useTestSettings(t)

	if err := runResume(nil, []string{"2020/2020-01/2020-01-01/BadgerOpt-2020-01-01-000000.yaml"}); err == nil {
		t.Error("Expected error for missing run file")
	}
}

func TestRoutinesCommands(t *testing.T) {
	data := useTestSettings(t)

	if err := runAddRoutine(nil, []string{writeRoutineFile(t, 2)}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := runListRoutines(nil, nil); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	routines, _ := store.NewFSRoutineStore(data)
	infos, _ := routines.List("", nil)
	if len(infos) != 1 {
		t.Fatalf("Expected 1 routine, got %d", len(infos))
	}
	id := infos[0].ID

	export := filepath.Join(t.TempDir(), "export.yaml")
	if err := runExportRoutines(nil, []string{export, id}); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if err := runRemoveRoutine(nil, []string{id}); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := runImportRoutines(nil, []string{export}); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if _, _, err := routines.Load(id); err != nil {
		t.Errorf("Imported routine not found: %v", err)
	}
}

func TestRoutinesAdd_RejectsUnknownEnvironment(t *testing.T) {
	useTestSettings(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "name: bad\nenv: nowhere\ngenerator: random\nconfig:\n  variables:\n    - x: [0, 1]\n  objectives:\n    - f: MINIMIZE\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if err := runAddRoutine(nil, []string{path}); err == nil {
		t.Error("Expected error for unknown environment")
	}
}

func TestPluginsCommands(t *testing.T) {
	useTestSettings(t)

	if err := runListPlugins(nil, nil); err != nil {
		t.Errorf("list failed: %v", err)
	}
	if err := runListPlugins(nil, []string{"widget"}); err == nil {
		t.Error("Expected error for unknown kind")
	}
	if err := runShowPlugin(nil, []string{"environment", "test"}); err != nil {
		t.Errorf("show failed: %v", err)
	}
	if err := runDocsPlugin(nil, []string{"interface", "sim"}); err != nil {
		t.Errorf("docs failed: %v", err)
	}
}

func TestUndeclaredPlugins(t *testing.T) {
	names := undeclared(plugin.KindEnvironment, nil)
	if !slices.Contains(names, "test") {
		t.Errorf("Expected compiled-in test environment in %v", names)
	}

	names = undeclared(plugin.KindEnvironment, []plugin.Summary{{Kind: plugin.KindEnvironment, Name: "test"}})
	if slices.Contains(names, "test") {
		t.Errorf("Declared environment reported as undeclared: %v", names)
	}
}

func TestPluginsInit(t *testing.T) {
	useTestSettings(t)
	initRoot = t.TempDir()
	t.Cleanup(func() { initRoot = "" })

	if err := runInitPlugins(nil, nil); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(initRoot, "environments", "test")); err != nil {
		t.Errorf("test environment not installed: %v", err)
	}
}

func TestConfigSave(t *testing.T) {
	useTestSettings(t)
	path := filepath.Join(t.TempDir(), "settings.yaml")

	if err := runSaveConfig(nil, []string{path}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.PluginRoot != settings.PluginRoot {
		t.Errorf("PluginRoot = %q, want %q", loaded.PluginRoot, settings.PluginRoot)
	}
}
