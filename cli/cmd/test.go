package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test [flow]",
	Short: "Validate flows without executing any step",
	Long: `Test command loads flow definitions, builds their dependency graphs
and reports problems such as unknown step references or cycles. With no
argument every flow in the flows directory is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(a.Flows))
	if len(args) == 1 {
		if _, ok := a.Flows[args[0]]; !ok {
			return fmt.Errorf("unknown flow %q", args[0])
		}
		names = append(names, args[0])
	} else {
		for _, info := range a.ListFlows() {
			names = append(names, info.Name)
		}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, name := range names {
		engine, err := a.Engine(name)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(out, "ok    %s: %s\n", name, strings.Join(engine.ExecutionOrder(), " -> "))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d flows failed validation", failed, len(names))
	}
	return nil
}
