// Command subsysd hosts subsystems in one process and drives their lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	subsys "github.com/axondata/go-subsys"
	"github.com/axondata/go-subsys/supervise"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "subsysd",
	Short: "subsysd - subsystem host",
	Long: `subsysd configures, starts and stops a fixed set of subsystems in
registration order and stops them in reverse on SIGINT or SIGTERM.

Use "subsysd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "host config file (yaml, toml or json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

// subsystems returns the subsystems this binary hosts, in start order
func subsystems() []subsys.Subsystem {
	return []subsys.Subsystem{
		supervise.New(),
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
