package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/michaellans/Badger/internal/routine"
)

var (
	routineKeyword string
	routineTags    []string
	exportAll      bool
)

var routinesCmd = &cobra.Command{
	Use:   "routines",
	Short: "Manage stored routines",
}

var listRoutinesCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored routines, newest first",
	Long: `Lists stored routines. --keyword matches names case-insensitively, as a
substring or as a glob when it holds glob characters. Every --tag must be
present on a routine for it to be listed.`,
	RunE: runListRoutines,
}

var addRoutineCmd = &cobra.Command{
	Use:   "add <routine.yaml>",
	Short: "Validate a routine file and store it",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddRoutine,
}

var removeRoutineCmd = &cobra.Command{
	Use:   "remove <routine-id>",
	Short: "Remove a stored routine",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoveRoutine,
}

var exportRoutinesCmd = &cobra.Command{
	Use:   "export <file> [routine-id...]",
	Short: "Export stored routines to a file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExportRoutines,
}

var importRoutinesCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import routines from an export file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportRoutines,
}

func init() {
	rootCmd.AddCommand(routinesCmd)
	routinesCmd.AddCommand(listRoutinesCmd, addRoutineCmd, removeRoutineCmd, exportRoutinesCmd, importRoutinesCmd)

	listRoutinesCmd.Flags().StringVarP(&routineKeyword, "keyword", "k", "", "Filter by name (substring or glob)")
	listRoutinesCmd.Flags().StringSliceVarP(&routineTags, "tag", "t", nil, "Only list routines carrying all of these tags")
	exportRoutinesCmd.Flags().BoolVar(&exportAll, "all", false, "Export every stored routine")
}

func runListRoutines(cmd *cobra.Command, args []string) error {
	routines, err := openRoutineStore()
	if err != nil {
		return err
	}

	infos, err := routines.List(routineKeyword, routineTags)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No routines found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENV\tGENERATOR\tTAGS\tSAVED")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.ID, info.Name, info.Env, info.Generator,
			strings.Join(info.Tags, ","),
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

func runAddRoutine(cmd *cobra.Command, args []string) error {
	reg, err := openRegistry()
	if err != nil {
		return err
	}
	spec, err := routine.LoadSpec(args[0])
	if err != nil {
		return err
	}

	// compose once so a broken routine never reaches the store
	if _, err := routine.Compose(reg, spec); err != nil {
		return fmt.Errorf("routine %q cannot be composed: %w", spec.Name, err)
	}

	routines, err := openRoutineStore()
	if err != nil {
		return err
	}
	if err := routines.Save(spec); err != nil {
		return err
	}
	fmt.Printf("Saved routine %s (%s)\n", spec.Name, spec.ID)
	return nil
}

func runRemoveRoutine(cmd *cobra.Command, args []string) error {
	routines, err := openRoutineStore()
	if err != nil {
		return err
	}
	if err := routines.Remove(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed routine %s\n", args[0])
	return nil
}

func runExportRoutines(cmd *cobra.Command, args []string) error {
	routines, err := openRoutineStore()
	if err != nil {
		return err
	}

	path, ids := args[0], args[1:]
	if exportAll {
		infos, err := routines.List("", nil)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, info := range infos {
			ids = append(ids, info.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no routines to export: name routine IDs or pass --all")
	}

	if err := routines.Export(path, ids); err != nil {
		return err
	}
	fmt.Printf("Exported %d routine(s) to %s\n", len(ids), path)
	return nil
}

func runImportRoutines(cmd *cobra.Command, args []string) error {
	routines, err := openRoutineStore()
	if err != nil {
		return err
	}
	ids, err := routines.Import(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d routine(s)\n", len(ids))
	return nil
}
