// Package core drives routines: the generate, evaluate, record loop and the
// standalone point evaluation it is built on.
package core

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/michaellans/Badger/internal/env"
	"github.com/michaellans/Badger/internal/generator"
	"github.com/michaellans/Badger/internal/routine"
	"github.com/michaellans/Badger/internal/table"
	"github.com/michaellans/Badger/internal/vocs"
)

// Signal is the control value polled at every iteration boundary.
type Signal int

const (
	// Continue runs one more iteration.
	Continue Signal = iota
	// Pause ends this invocation; calling Run again on the same routine resumes.
	Pause
	// Stop ends the run.
	Stop
)

func (s Signal) String() string {
	switch s {
	case Continue:
		return "continue"
	case Pause:
		return "pause"
	case Stop:
		return "stop"
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// Exit tells why Run returned.
type Exit string

const (
	ExitStopped   Exit = "stopped"
	ExitPaused    Exit = "paused"
	ExitExhausted Exit = "max_evaluations"
	ExitConverged Exit = "converged"
)

// Callbacks observe and control a run. Every field is optional; a nil
// ShouldContinue always continues, so the run then ends only through the
// routine's termination criteria.
type Callbacks struct {
	ShouldContinue func() Signal
	OnGenerate     func(candidates *table.Table)
	OnEvaluate     func(evaluated *table.Table)
	OnParetoFront  func(front *table.Table)
	OnStates       func(states map[string]any)
	// OnCheckpoint returns the path of the checkpoint written at exit.
	// An empty path skips the checkpoint.
	OnCheckpoint func() string
}

// Run advances the routine until a Pause or Stop signal or a termination
// criterion. Each iteration takes candidates (the initial points if the
// routine has no data yet, one generated point otherwise), evaluates them,
// appends the rows to the routine's data and feeds them to the generator.
// On exit the Pareto front, states and a checkpoint are emitted.
//
// Run blocks for the whole loop and cannot interrupt an evaluation in
// progress. Generation and evaluation errors are returned immediately; rows
// recorded before the failure stay in the routine.
func Run(r *routine.Routine, cb Callbacks) (Exit, error) {
	term := r.Termination()
	var tracker *ConvergenceTracker
	if term.Patience > 0 {
		cfg := DefaultConvergenceConfig()
		cfg.Patience = term.Patience
		cfg.Threshold = term.Threshold
		tracker = NewConvergenceTracker(cfg)
		tracker.Update(bestScore(r.VOCS, r.Data))
	}

	slog.Info("Run started", "routine", r.ID, "name", r.Name, "rows", r.Data.Len())

	var exit Exit
	if exhausted(term, r) {
		exit = ExitExhausted
	}
	for exit == "" {
		signal := Continue
		if cb.ShouldContinue != nil {
			signal = cb.ShouldContinue()
		}
		switch signal {
		case Stop:
			exit = ExitStopped
			continue
		case Pause:
			exit = ExitPaused
			continue
		}

		var candidates *table.Table
		if !r.HasData() && r.InitialPoints.Len() > 0 {
			candidates = r.InitialPoints.Clone()
		} else {
			var err error
			candidates, err = r.Generator.Generate(1)
			if err != nil {
				return "", fmt.Errorf("failed to generate candidates: %w", err)
			}
		}
		if cb.OnGenerate != nil {
			cb.OnGenerate(candidates)
		}

		evaluated, err := EvaluatePoints(candidates, r, nil)
		if err != nil {
			return "", err
		}
		if err := r.Data.Append(evaluated); err != nil {
			return "", fmt.Errorf("failed to record evaluated points: %w", err)
		}
		if err := r.Generator.AddData(evaluated); err != nil {
			return "", fmt.Errorf("failed to add data to generator: %w", err)
		}
		if cb.OnEvaluate != nil {
			cb.OnEvaluate(evaluated)
		}

		switch {
		case exhausted(term, r):
			exit = ExitExhausted
		case tracker != nil && tracker.Update(bestScore(r.VOCS, evaluated)):
			exit = ExitConverged
		}
	}

	if err := finish(r, cb); err != nil {
		return exit, err
	}
	slog.Info("Run finished", "routine", r.ID, "exit", exit, "rows", r.Data.Len())
	return exit, nil
}

// exhausted reports whether the routine already holds its evaluation budget.
func exhausted(term routine.Termination, r *routine.Routine) bool {
	return term.MaxEvaluations > 0 && r.Data.Len() >= term.MaxEvaluations
}

// finish emits the Pareto front and states and writes the checkpoint.
func finish(r *routine.Routine, cb Callbacks) error {
	front, err := ParetoFront(r)
	if err != nil {
		return fmt.Errorf("failed to compute pareto front: %w", err)
	}
	if cb.OnParetoFront != nil {
		cb.OnParetoFront(front)
	}

	states, err := States(r)
	if err != nil {
		return err
	}
	if cb.OnStates != nil {
		cb.OnStates(states)
	}

	if cb.OnCheckpoint == nil {
		return nil
	}
	path := cb.OnCheckpoint()
	if path == "" {
		return nil
	}
	if err := routine.SaveCheckpoint(path, r.Checkpoint()); err != nil {
		return err
	}
	slog.Info("Run checkpoint written", "routine", r.ID, "path", path)
	return nil
}

// ParetoFront ranks the routine's data, preferring the generator's own ranking.
func ParetoFront(r *routine.Routine) (*table.Table, error) {
	if ranker, ok := r.Generator.(generator.ParetoRanker); ok {
		return ranker.ParetoFront()
	}
	return r.VOCS.ParetoFront(r.Data)
}

// States returns the environment's auxiliary states, or nil if it has none.
func States(r *routine.Routine) (map[string]any, error) {
	reporter, ok := r.Environment.(env.StateReporter)
	if !ok {
		return nil, nil
	}
	states, err := reporter.SystemStates()
	if err != nil {
		return nil, fmt.Errorf("failed to read system states: %w", err)
	}
	return states, nil
}

// bestScore returns the best minimization score of the first objective over
// the feasible rows of data, or +Inf if there are none. Non-finite values
// are skipped.
func bestScore(v *vocs.VOCS, data *table.Table) float64 {
	best := math.Inf(1)
	if len(v.Objectives) == 0 {
		return best
	}
	obj := v.Objectives[0]
	for i := 0; i < data.Len(); i++ {
		rec := data.Record(i)
		if !v.Feasible(rec) {
			continue
		}
		score := rec[obj.Name]
		if math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}
		if obj.Direction == vocs.Maximize {
			score = -score
		}
		best = math.Min(best, score)
	}
	return best
}
