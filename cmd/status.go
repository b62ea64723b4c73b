package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaellans/Badger/internal/server"
)

var (
	serverURL string
	stepCount int
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query the run monitor for runs",
	Long: `Queries the run monitor for run status information.
If no run-id is provided, lists all runs.
If run-id is provided, shows detailed status for that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var controlCmd = &cobra.Command{
	Use:       "control <run-id> <pause|resume|stop|step>",
	Short:     "Pause, resume, stop or step a run on the run monitor",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"pause", "resume", "stop", "step"},
	RunE:      runControl,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	controlCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	controlCmd.Flags().IntVar(&stepCount, "n", 1, "Number of iterations for step")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(controlCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listRuns(serverURL + "/api/v1/runs")
	}
	runID := args[0]
	return getRunStatus(fmt.Sprintf("%s/api/v1/runs/%s", serverURL, url.PathEscape(runID)), runID)
}

func runControl(cmd *cobra.Command, args []string) error {
	runID, action := args[0], args[1]
	switch action {
	case "pause", "resume", "stop", "step":
	default:
		return fmt.Errorf("unknown action %q (want pause, resume, stop or step)", action)
	}

	u := fmt.Sprintf("%s/api/v1/runs/%s/%s", serverURL, url.PathEscape(runID), action)
	if action == "step" {
		u += "?n=" + strconv.Itoa(stepCount)
	}

	resp, err := http.Post(u, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
	case http.StatusNotFound:
		return fmt.Errorf("run not found: %s", runID)
	default:
		return serverError(resp)
	}

	var run server.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	fmt.Printf("Run %s: %s requested (state %s, %d evaluations)\n", run.ID, action, run.State, run.Evaluations)
	return nil
}

func listRuns(u string) error {
	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var runs []server.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("Found %d run(s):\n\n", len(runs))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROUTINE\tSTATE\tEVALUATIONS\tBEST")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", run.ID, run.RoutineName, run.State, run.Evaluations, formatBest(run.Best))
	}
	return w.Flush()
}

func getRunStatus(u, runID string) error {
	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("run not found: %s", runID)
	}
	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var status struct {
		server.Run
		Elapsed float64 `json:"elapsed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Run: %s\n", status.ID)
	fmt.Printf("Routine: %s (%s)\n", status.RoutineName, status.RoutineID)
	fmt.Printf("State: %s\n", status.State)
	if status.Exit != "" {
		fmt.Printf("Exit: %s\n", status.Exit)
	}
	if status.Filename != "" {
		fmt.Printf("Run file: %s\n", status.Filename)
	}
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Evaluations: %d\n", status.Evaluations)
	fmt.Printf("  Best: %s\n", formatBest(status.Best))
	fmt.Printf("  Pareto front: %d point(s)\n", status.Front)
	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))

	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}
	return nil
}

func formatBest(best *float64) string {
	if best == nil {
		return "-"
	}
	return strconv.FormatFloat(*best, 'g', 6, 64)
}

func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
}
