package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/michaellans/Badger/internal/core"
	"github.com/michaellans/Badger/internal/store"
	"github.com/michaellans/Badger/internal/table"
)

// runRoutine drives a run in the background until it completes, fails or
// is stopped. Pausing ends the driver invocation, which writes the run
// file; resuming calls the driver again on the same routine.
// If runs is nil no run file or trace is written.
func runRoutine(ctx context.Context, rm *RunManager, runs *store.FSRunStore, metrics *Metrics, runID string) error {
	entry, exists := rm.entry(runID)
	if !exists {
		return fmt.Errorf("run not found: %s", runID)
	}
	defer close(entry.done)

	r, ctrl := entry.routine, entry.control
	run, _ := rm.GetRun(runID)
	var envName, generatorName string
	if r.Spec != nil {
		envName, generatorName = r.Spec.Env, r.Spec.Generator
	}

	stopWatch := context.AfterFunc(ctx, ctrl.stop)
	defer stopWatch()

	var trace *store.TraceWriter
	if runs != nil && run.Filename != "" {
		tw, err := store.NewTraceWriter(runs.BaseDir(), store.DisplayName(run.Filename), true)
		if err != nil {
			markRunFailed(rm, runID, err)
			return err
		}
		tw.StartAt(r.Data.Len())
		trace = tw
		defer trace.Close()
	}

	if metrics != nil {
		metrics.activeRuns.Inc()
		defer metrics.activeRuns.Dec()
	}

	setState(rm, runID, StateRunning)
	slog.Info("Starting run", "run_id", runID, "routine", r.ID, "env", envName, "generator", generatorName)

	var generated time.Time
	cb := core.Callbacks{
		ShouldContinue: ctrl.signal,
		OnGenerate: func(*table.Table) {
			generated = time.Now()
		},
		OnEvaluate: func(evaluated *table.Table) {
			if trace != nil {
				if err := trace.WriteTable(evaluated); err != nil {
					slog.Warn("Failed to write trace", "run_id", runID, "error", err)
				}
			}
			best, ok := r.VOCS.BestValue(r.Data)
			if metrics != nil {
				metrics.evaluations.WithLabelValues(envName).Add(float64(evaluated.Len()))
				metrics.evalDuration.Observe(time.Since(generated).Seconds())
				if ok {
					metrics.bestObjective.WithLabelValues(runID).Set(best)
				}
			}
			rm.UpdateRun(runID, func(run *Run) {
				run.Evaluations = r.Data.Len()
				if ok {
					run.Best = &best
				}
			})
			broadcastRun(rm, runID, evaluated)
		},
		OnParetoFront: func(front *table.Table) {
			rm.UpdateRun(runID, func(run *Run) { run.Front = front.Len() })
		},
		OnStates: func(states map[string]any) {
			rm.UpdateRun(runID, func(run *Run) { run.States = states })
		},
		OnCheckpoint: func() string {
			if runs == nil || run.Filename == "" {
				return ""
			}
			return runs.Path(run.Filename)
		},
	}

	start := time.Now()
	for {
		exit, err := core.Run(r, cb)
		if err != nil {
			markRunFailed(rm, runID, err)
			return err
		}

		if exit == core.ExitPaused {
			setState(rm, runID, StatePaused)
			slog.Info("Run paused", "run_id", runID, "evaluations", r.Data.Len())
			if ctrl.waitResume() {
				setState(rm, runID, StateRunning)
				continue
			}
			exit = core.ExitStopped
		}

		if metrics != nil {
			metrics.finishedRuns.WithLabelValues(string(exit)).Inc()
		}
		markRunFinished(rm, runID, exit)
		slog.Info("Run finished",
			"run_id", runID,
			"exit", exit,
			"evaluations", r.Data.Len(),
			"elapsed", time.Since(start),
		)
		return nil
	}
}

func setState(rm *RunManager, runID string, state RunState) {
	rm.UpdateRun(runID, func(run *Run) { run.State = state })
	broadcastRun(rm, runID, nil)
}

// markRunFinished records a clean exit. A stop signal ends the run as
// stopped, every other exit as completed.
func markRunFinished(rm *RunManager, runID string, exit core.Exit) {
	endTime := time.Now()
	rm.UpdateRun(runID, func(run *Run) {
		run.State = StateCompleted
		if exit == core.ExitStopped {
			run.State = StateStopped
		}
		run.Exit = exit
		run.EndTime = &endTime
	})
	broadcastRun(rm, runID, nil)
}

// markRunFailed marks a run as failed with an error message
func markRunFailed(rm *RunManager, runID string, err error) {
	endTime := time.Now()
	rm.UpdateRun(runID, func(run *Run) {
		run.State = StateFailed
		run.Error = err.Error()
		run.EndTime = &endTime
	})
	broadcastRun(rm, runID, nil)
	slog.Error("Run failed", "run_id", runID, "error", err)
}

// broadcastRun publishes the run's current state, with the evaluated rows
// when there are any.
func broadcastRun(rm *RunManager, runID string, evaluated *table.Table) {
	run, ok := rm.GetRun(runID)
	if !ok {
		return
	}
	rm.broadcaster.Broadcast(newProgressEvent(run, evaluated))
}
