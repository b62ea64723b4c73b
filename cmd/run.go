package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaellans/Badger/internal/core"
	"github.com/michaellans/Badger/internal/routine"
	"github.com/michaellans/Badger/internal/store"
	"github.com/michaellans/Badger/internal/table"
)

var (
	maxEvaluations int
	saveRoutine    bool
	noRecord       bool
)

var runCmd = &cobra.Command{
	Use:   "run <routine.yaml | routine-id>",
	Short: "Run a routine in the foreground",
	Long: `Composes a routine from a YAML file or a stored routine ID and runs it
until a termination criterion is met or the process is interrupted.

Every evaluated point is written to the run's trace; the run file with the
full data is written when the run ends.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoutine,
}

func init() {
	runCmd.Flags().IntVar(&maxEvaluations, "max-evaluations", 0, "Stop after N evaluations (overrides the routine)")
	runCmd.Flags().BoolVar(&saveRoutine, "save", false, "Save the routine to the routine store before running")
	runCmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not write a run file or trace")
	rootCmd.AddCommand(runCmd)
}

func runRoutine(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}

	spec, err := resolveRoutine(args[0])
	if err != nil {
		return err
	}
	if maxEvaluations > 0 {
		spec.Config.Termination.MaxEvaluations = maxEvaluations
	}

	if saveRoutine {
		routines, err := openRoutineStore()
		if err != nil {
			return err
		}
		if err := routines.Save(spec); err != nil {
			return fmt.Errorf("failed to save routine: %w", err)
		}
		fmt.Printf("Saved routine %s (%s)\n", spec.Name, spec.ID)
	}

	r, err := routine.Compose(reg, spec)
	if err != nil {
		return err
	}
	return execute(commandContext(cmd), r, "")
}

// resolveRoutine reads a routine file, or loads a stored routine when arg
// is not a file.
func resolveRoutine(arg string) (*routine.Spec, error) {
	if _, err := os.Stat(arg); err == nil {
		return routine.LoadSpec(arg)
	}

	routines, err := openRoutineStore()
	if err != nil {
		return nil, err
	}
	spec, _, err := routines.Load(arg)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s is neither a routine file nor a stored routine ID", arg)
	}
	return spec, err
}

// execute drives r in the foreground. SIGINT and SIGTERM stop the run at the
// next iteration boundary. An empty filename starts a new run file.
func execute(ctx context.Context, r *routine.Routine, filename string) error {
	runs, err := openRunStore()
	if err != nil {
		return err
	}
	if filename == "" && !noRecord {
		filename = runs.NewFilename(time.Now(), nil)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var trace *store.TraceWriter
	if filename != "" {
		trace, err = store.NewTraceWriter(runs.BaseDir(), store.DisplayName(filename), true)
		if err != nil {
			return err
		}
		trace.StartAt(r.Data.Len())
		defer trace.Close()
	}

	term := r.Termination()
	if term.MaxEvaluations == 0 && term.Patience == 0 {
		slog.Warn("Routine has no termination criterion, interrupt to stop", "routine", r.Name)
	}

	var front *table.Table
	cb := core.Callbacks{
		ShouldContinue: func() core.Signal {
			if ctx.Err() != nil {
				return core.Stop
			}
			return core.Continue
		},
		OnEvaluate: func(evaluated *table.Table) {
			if trace != nil {
				if err := trace.WriteTable(evaluated); err != nil {
					slog.Warn("Failed to write trace", "error", err)
				}
			}
			for _, rec := range evaluated.Records() {
				slog.Debug("Point evaluated", "evaluation", r.Data.Len(), "values", rec)
			}
		},
		OnParetoFront: func(t *table.Table) { front = t },
		OnCheckpoint: func() string {
			if filename == "" {
				return ""
			}
			return runs.Path(filename)
		},
	}

	start := time.Now()
	exit, err := core.Run(r, cb)
	if err != nil {
		return fmt.Errorf("run failed after %d evaluations: %w", r.Data.Len(), err)
	}

	slog.Info("Run complete", "routine", r.Name, "exit", exit, "evaluations", r.Data.Len(), "elapsed", time.Since(start))
	fmt.Printf("Run %s: %s after %d evaluations (%s)\n", r.Name, exit, r.Data.Len(), time.Since(start).Round(time.Millisecond))
	if filename != "" {
		fmt.Printf("Run file: %s\n", filename)
	}
	printTable(front, "Pareto front")
	return nil
}

// printTable writes a table with a heading, or nothing when it is empty.
func printTable(t *table.Table, heading string) {
	if t.Len() == 0 {
		return
	}

	fmt.Printf("\n%s:\n", heading)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for i, c := range t.Columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
	for _, row := range t.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprintf(w, "%.6g", v)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}
