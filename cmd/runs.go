package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaellans/Badger/internal/store"
)

var (
	runsRoutine   string
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage recorded runs",
	Long: `Manage recorded runs including listing, inspecting and cleaning old runs.
Run files hold every evaluated point and allow continuing a run with resume.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Long:  `Display recorded runs with routine, timestamp, evaluations, best objective and file sizes.`,
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-file>",
	Short: "Show the routine and data of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old runs",
	Long: `Delete old runs based on retention policy.
You can specify how many runs to keep per routine or delete runs older than N days.`,
	RunE: runCleanRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(cleanRunsCmd)

	listRunsCmd.Flags().StringVar(&runsRoutine, "routine", "", "Only list runs of this routine ID")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the last N runs per routine (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListRuns(cmd *cobra.Command, args []string) error {
	runs, err := openRunStore()
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}

	var infos []store.RunInfo
	if runsRoutine != "" {
		infos, err = runs.ListForRoutine(runsRoutine)
	} else {
		infos, err = runs.ListAll()
	}
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tROUTINE\tTIMESTAMP\tEVALUATIONS\tBEST\tSIZE")
	fmt.Fprintln(w, "---\t-------\t---------\t-----------\t----\t----")

	for _, info := range infos {
		sizeStr := "unknown"
		if fi, err := os.Stat(runs.Path(info.Filename)); err == nil {
			sizeStr = formatBytes(fi.Size())
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			store.DisplayName(info.Filename),
			info.RoutineName,
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Evaluations,
			formatBest(info.Best),
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal runs: %d", len(infos))
	if size, err := getDirSize(runs.BaseDir()); err == nil {
		fmt.Printf(" (data directory %s)", formatBytes(size))
	}
	fmt.Println()
	return nil
}

func runShowRun(cmd *cobra.Command, args []string) error {
	runs, err := openRunStore()
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}

	cp, err := runs.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Run: %s\n", store.DisplayName(args[0]))
	fmt.Printf("Routine: %s (%s)\n", cp.Routine.Name, cp.Routine.ID)
	fmt.Printf("Environment: %s\n", cp.Routine.Env)
	fmt.Printf("Generator: %s\n", cp.Routine.Generator)
	fmt.Printf("Timestamp: %s\n", cp.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("Evaluations: %d\n", cp.Data.Len())
	if best, ok := cp.BestValue(); ok {
		fmt.Printf("Best: %.6g\n", best)
	}

	printTable(cp.Data, "Data")
	return nil
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	runs, err := openRunStore()
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}

	infos, err := runs.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No runs to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())

	if len(toDelete) == 0 {
		fmt.Println("No runs match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (%s, %d evaluations)\n",
			store.DisplayName(info.Filename),
			info.RoutineName,
			info.Evaluations,
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := runs.Delete(info.Filename); err != nil {
			slog.Error("Failed to delete run", "filename", info.Filename, "error", err)
			failed++
		} else {
			slog.Info("Deleted run", "filename", info.Filename)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion applies the retention policy: runs older than
// olderThanDays, and all but the newest keepLast runs of each routine.
func selectRunsForDeletion(infos []store.RunInfo, keepLast int, olderThanDays int, now time.Time) []store.RunInfo {
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				selected[info.Filename] = true
			}
		}
	}

	if keepLast > 0 {
		byRoutine := make(map[string][]store.RunInfo)
		for _, info := range infos {
			byRoutine[info.RoutineID] = append(byRoutine[info.RoutineID], info)
		}
		for _, group := range byRoutine {
			sort.SliceStable(group, func(i, j int) bool { return group[i].Timestamp.After(group[j].Timestamp) })
			for _, info := range group[min(keepLast, len(group)):] {
				selected[info.Filename] = true
			}
		}
	}

	// keep the input order
	var toDelete []store.RunInfo
	for _, info := range infos {
		if selected[info.Filename] {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
