package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	subsys "github.com/axondata/go-subsys"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := subsys.GetVersion()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "subsysd %s (backends: %s)\n", info.Version, strings.Join(info.Backends, ", "))
	},
}
