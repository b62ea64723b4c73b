package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michaellans/Badger/internal/core"
	"github.com/michaellans/Badger/internal/routine"
)

// RunState represents the current state of a run
type RunState string

const (
	StatePending   RunState = "pending"
	StateRunning   RunState = "running"
	StatePaused    RunState = "paused"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateStopped   RunState = "stopped"
)

// Finished reports whether the run can no longer change.
func (s RunState) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateStopped
}

// Run is the monitor's view of a routine being optimized.
type Run struct {
	ID          string         `json:"id"`
	RoutineID   string         `json:"routineId"`
	RoutineName string         `json:"routineName"`
	Filename    string         `json:"filename,omitempty"`
	State       RunState       `json:"state"`
	Exit        core.Exit      `json:"exit,omitempty"`
	Evaluations int            `json:"evaluations"`
	Best        *float64       `json:"best,omitempty"`
	Front       int            `json:"paretoFront"`
	States      map[string]any `json:"states,omitempty"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     *time.Time     `json:"endTime,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// runEntry holds a run and what the worker needs to drive it.
type runEntry struct {
	run     Run
	routine *routine.Routine
	control *controller
	done    chan struct{}
}

// RunManager manages the lifecycle of runs
type RunManager struct {
	mu          sync.RWMutex
	runs        map[string]*runEntry
	broadcaster *EventBroadcaster
}

// NewRunManager creates a new RunManager
func NewRunManager() *RunManager {
	return &RunManager{
		runs:        make(map[string]*runEntry),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateRun registers a pending run of r, written to filename on exit.
func (rm *RunManager) CreateRun(r *routine.Routine, filename string) Run {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	entry := &runEntry{
		run: Run{
			ID:          uuid.New().String(),
			RoutineID:   r.ID,
			RoutineName: r.Name,
			Filename:    filename,
			State:       StatePending,
			Evaluations: r.Data.Len(),
			StartTime:   time.Now(),
		},
		routine: r,
		control: newController(),
		done:    make(chan struct{}),
	}

	rm.runs[entry.run.ID] = entry
	return entry.run
}

// GetRun returns a snapshot of a run
func (rm *RunManager) GetRun(id string) (Run, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	entry, exists := rm.runs[id]
	if !exists {
		return Run{}, false
	}
	return entry.run, true
}

// ListRuns returns all runs, oldest first
func (rm *RunManager) ListRuns() []Run {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	runs := make([]Run, 0, len(rm.runs))
	for _, entry := range rm.runs {
		runs = append(runs, entry.run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartTime.Before(runs[j].StartTime) })
	return runs
}

// UpdateRun atomically updates a run using the provided function
func (rm *RunManager) UpdateRun(id string, updateFn func(*Run)) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	entry, exists := rm.runs[id]
	if !exists {
		return fmt.Errorf("run not found: %s", id)
	}

	updateFn(&entry.run)
	return nil
}

// RemoveRun forgets a finished run and drops its stream subscribers.
func (rm *RunManager) RemoveRun(id string) error {
	rm.mu.Lock()
	entry, exists := rm.runs[id]
	if !exists {
		rm.mu.Unlock()
		return fmt.Errorf("run not found: %s", id)
	}
	if !entry.run.State.Finished() {
		rm.mu.Unlock()
		return fmt.Errorf("run %s is still %s", id, entry.run.State)
	}
	delete(rm.runs, id)
	rm.mu.Unlock()

	rm.broadcaster.CleanupRun(id)
	return nil
}

// FilenameInUse reports whether an unfinished run writes to filename.
func (rm *RunManager) FilenameInUse(filename string) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for _, entry := range rm.runs {
		if entry.run.Filename == filename && !entry.run.State.Finished() {
			return true
		}
	}
	return false
}

// GetActiveRuns returns all runs that are running or paused
func (rm *RunManager) GetActiveRuns() []Run {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	active := make([]Run, 0)
	for _, entry := range rm.runs {
		if entry.run.State == StateRunning || entry.run.State == StatePaused {
			active = append(active, entry.run)
		}
	}
	return active
}

func (rm *RunManager) entry(id string) (*runEntry, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	entry, ok := rm.runs[id]
	return entry, ok
}

// Control applies a control action to a run. step runs n more iterations
// and pauses again.
func (rm *RunManager) Control(id, action string, n int) error {
	entry, ok := rm.entry(id)
	if !ok {
		return fmt.Errorf("run not found: %s", id)
	}
	if run, _ := rm.GetRun(id); run.State.Finished() {
		return &RunFinishedError{ID: id, State: run.State}
	}

	switch action {
	case "pause":
		entry.control.pause()
	case "resume":
		entry.control.resume()
	case "stop":
		entry.control.stop()
	case "step":
		if n < 1 {
			return fmt.Errorf("step count must be positive, got %d", n)
		}
		entry.control.step(n)
	default:
		return fmt.Errorf("unknown control action: %s", action)
	}
	return nil
}

// StopAll stops every unfinished run and waits for the workers to return
// or the timeout to pass.
func (rm *RunManager) StopAll(timeout time.Duration) {
	rm.mu.RLock()
	var pending []*runEntry
	for _, entry := range rm.runs {
		if !entry.run.State.Finished() {
			pending = append(pending, entry)
		}
	}
	rm.mu.RUnlock()

	deadline := time.After(timeout)
	for _, entry := range pending {
		entry.control.stop()
		select {
		case <-entry.done:
		case <-deadline:
			return
		}
	}
}

// RunFinishedError is returned when controlling a run that has ended.
type RunFinishedError struct {
	ID    string
	State RunState
}

func (e *RunFinishedError) Error() string {
	return fmt.Sprintf("run %s already %s", e.ID, e.State)
}
