package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/philiporange/orac-sub000/app"
	"github.com/philiporange/orac-sub000/runtime"
	"github.com/philiporange/orac-sub000/store"
)

var (
	runInputs []string
	runDryRun bool
	runJSON   bool
	runOutput string
	runDBPath string
)

var runCmd = &cobra.Command{
	Use:   "run <flow>",
	Short: "Execute a flow",
	Long: `Run command loads the named flow, resolves its dependency graph and
executes every step in order.

Example:
  orac run summarize --input url=https://example.com
  orac run summarize --input url=https://example.com --dry-run
`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runInputs, "input", "i", nil, "Flow input as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate and print the execution plan without running steps")
	runCmd.Flags().BoolVar(&runJSON, "json-output", false, "Print the result as JSON")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write the result as JSON to a file")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "Record the run in a SQLite database at this path")
}

func runRun(cmd *cobra.Command, args []string) error {
	inputs, err := parseInputs(runInputs)
	if err != nil {
		return err
	}

	var progress runtime.ProgressCallback
	if !runJSON {
		progress = consoleProgress(cmd.OutOrStdout())
	}

	a, err := newApp(app.WithProgressCallback(progress))
	if err != nil {
		return err
	}

	engine, err := a.Engine(args[0])
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := engine.Execute(cmd.Context(), inputs, runDryRun)
	if runDBPath != "" && !runDryRun {
		recordRun(args[0], inputs, result, err, started)
	}
	if err != nil {
		return err
	}

	if runOutput != "" {
		if err := writeResultFile(runOutput, result); err != nil {
			return err
		}
	}

	if runJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.DryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "execution plan:")
		for i, step := range result.Order {
			fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, step)
		}
		return nil
	}

	for name, value := range result.Outputs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", name, value)
	}
	return nil
}

func writeResultFile(path string, result *runtime.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write result file: %w", err)
	}
	return nil
}

// parseInputs turns repeated key=value flags into a flow input map.
// Values stay strings; the engine coerces them to the declared types.
func parseInputs(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", pair)
		}
		inputs[key] = value
	}
	return inputs, nil
}

func recordRun(flow string, inputs map[string]any, result *runtime.Result, execErr error, started time.Time) {
	db, err := store.Open(runDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open run store: %v\n", err)
		return
	}
	defer db.Close()

	run := store.Run{
		Flow:       flow,
		Status:     store.StatusSucceeded,
		Inputs:     inputs,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if result != nil {
		run.ID = result.RunID
		run.Outputs = result.Outputs
	}
	if execErr != nil {
		run.Status = store.StatusFailed
		run.Error = execErr.Error()
	}
	if run.ID == "" {
		run.ID = flow + "-" + started.UTC().Format("20060102T150405.000000000")
	}

	if err := db.RecordRun(context.Background(), run); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot record run: %v\n", err)
	}
}
