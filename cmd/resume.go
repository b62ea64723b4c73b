package main

import (
	"github.com/spf13/cobra"

	"github.com/michaellans/Badger/internal/routine"
)

var resumeMore int

var resumeCmd = &cobra.Command{
	Use:   "resume <run-file>",
	Short: "Continue a run from its run file",
	Long: `Restores the routine recorded in a run file, feeds the recorded points
to a fresh generator and continues the run. New points are appended to the
same run file and trace.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().IntVar(&resumeMore, "more", 0, "Evaluate N more points (0 keeps the routine's criteria)")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	runs, err := openRunStore()
	if err != nil {
		return err
	}

	cp, err := runs.Load(args[0])
	if err != nil {
		return err
	}
	r, err := routine.Restore(reg, cp)
	if err != nil {
		return err
	}
	if resumeMore > 0 {
		r.Spec.Config.Termination.MaxEvaluations = r.Data.Len() + resumeMore
	}

	return execute(commandContext(cmd), r, args[0])
}
