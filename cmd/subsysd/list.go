package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the hosted subsystems in start order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tID\tATTRIBUTES")
		for _, s := range subsystems() {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", s.Name(), s.ID(), s.Attributes().Len())
		}
		return w.Flush()
	},
}
