package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <flow>",
	Short: "Show a flow's structure and execution plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	spec, ok := a.Flows[args[0]]
	if !ok {
		return fmt.Errorf("unknown flow %q", args[0])
	}

	engine, err := a.Engine(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "flow: %s\n", spec.Name)
	if spec.Description != "" {
		fmt.Fprintf(out, "description: %s\n", spec.Description)
	}

	if len(spec.Inputs) > 0 {
		fmt.Fprintln(out, "inputs:")
		for _, in := range spec.Inputs {
			line := fmt.Sprintf("  %s (%s)", in.Name, in.Type)
			if in.Required {
				line += " required"
			} else if in.Default != nil {
				line += fmt.Sprintf(" default=%v", in.Default)
			}
			fmt.Fprintln(out, line)
		}
	}

	fmt.Fprintln(out, "steps:")
	graph := engine.Graph()
	for _, name := range spec.StepOrder {
		step := spec.Steps[name]
		target := step.Prompt
		kind := "prompt"
		if step.Skill != "" {
			target = step.Skill
			kind = "skill"
		}
		fmt.Fprintf(out, "  %s -> %s %q\n", name, kind, target)
		if deps := graph.DependenciesOf(name); len(deps) > 0 {
			fmt.Fprintf(out, "    after: %s\n", strings.Join(deps, ", "))
		}
	}

	fmt.Fprintf(out, "execution order: %s\n", strings.Join(engine.ExecutionOrder(), " -> "))

	if len(spec.Outputs) > 0 {
		fmt.Fprintln(out, "outputs:")
		for _, o := range spec.Outputs {
			fmt.Fprintf(out, "  %s <- %s\n", o.Name, o.Source)
		}
	}
	return nil
}
