package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available flows",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	flows := a.ListFlows()
	if len(flows) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no flows found in %s\n", flowsDir)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTEPS\tDESCRIPTION")
	for _, info := range flows {
		fmt.Fprintf(w, "%s\t%d\t%s\n", info.Name, info.Steps, info.Description)
	}
	return w.Flush()
}
