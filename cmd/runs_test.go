package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaellans/Badger/internal/store"
)

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{Filename: "run1", RoutineID: "a", Timestamp: now.AddDate(0, 0, -10)}, // 10 days old
		{Filename: "run2", RoutineID: "a", Timestamp: now.AddDate(0, 0, -5)},  // 5 days old
		{Filename: "run3", RoutineID: "b", Timestamp: now.AddDate(0, 0, -1)},  // 1 day old
		{Filename: "run4", RoutineID: "b", Timestamp: now.AddDate(0, 0, -30)}, // 30 days old
	}

	toDelete := selectRunsForDeletion(infos, 0, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if toDelete[0].Filename != "run1" || toDelete[1].Filename != "run4" {
		t.Errorf("Expected run1 and run4 to be selected for deletion, got %v", toDelete)
	}
}

func TestSelectRunsForDeletion_KeepLastPerRoutine(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{Filename: "a-new", RoutineID: "a", Timestamp: now.Add(-time.Hour)},
		{Filename: "b-only", RoutineID: "b", Timestamp: now.AddDate(0, 0, -40)},
		{Filename: "a-mid", RoutineID: "a", Timestamp: now.Add(-2 * time.Hour)},
		{Filename: "a-old", RoutineID: "a", Timestamp: now.Add(-3 * time.Hour)},
	}

	toDelete := selectRunsForDeletion(infos, 2, 0, now)

	// b-only is the newest run of its routine and is kept despite its age
	if len(toDelete) != 1 || toDelete[0].Filename != "a-old" {
		t.Errorf("Expected only a-old to be deleted, got %v", toDelete)
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{Filename: "run1", RoutineID: "a", Timestamp: now.AddDate(0, 0, -10)},
		{Filename: "run2", RoutineID: "a", Timestamp: now.AddDate(0, 0, -5)},
		{Filename: "run3", RoutineID: "a", Timestamp: now.AddDate(0, 0, -1)},
		{Filename: "run4", RoutineID: "a", Timestamp: now.AddDate(0, 0, -30)},
		{Filename: "run5", RoutineID: "a", Timestamp: now.AddDate(0, 0, -2)},
	}

	// run1 and run4 are too old and also fall outside the last 3
	toDelete := selectRunsForDeletion(infos, 3, 7, now)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	seen := map[string]bool{}
	for _, info := range toDelete {
		if seen[info.Filename] {
			t.Errorf("%s selected twice", info.Filename)
		}
		seen[info.Filename] = true
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func TestRunsListCommand_NoRuns(t *testing.T) {
	useTestSettings(t)

	if err := runListRuns(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestRunsCleanCommand_NoFlags(t *testing.T) {
	useTestSettings(t)

	if err := runCleanRuns(nil, nil); err == nil {
		t.Error("Expected error when neither --keep-last nor --older-than is set")
	}
}

func TestRunsCleanCommand_KeepLast(t *testing.T) {
	data := useTestSettings(t)

	// runs of a stored routine share its ID
	saveRoutine = true
	if err := runRoutine(nil, []string{writeRoutineFile(t, 2)}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	saveRoutine = false
	first := onlyRun(t, data)
	for i := 0; i < 2; i++ {
		if err := runRoutine(nil, []string{first.RoutineID}); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}

	keepLast, forceClean = 1, true
	t.Cleanup(func() { keepLast, forceClean = 0, false })

	if err := runCleanRuns(nil, nil); err != nil {
		t.Fatalf("clean failed: %v", err)
	}

	runs, _ := store.NewFSRunStore(data)
	infos, err := runs.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected 1 run left, got %d", len(infos))
	}
	if infos[0].Filename == first.Filename {
		t.Error("The oldest run should have been deleted")
	}
}
