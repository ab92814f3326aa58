// Command lifely builds a year-in-review from a calendar export or a Google
// Calendar account.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "lifely",
		Short: "Lifely - your calendar year in review",
		Long: `Lifely turns a year of calendar events into a year-in-review: time spent,
the people you saw most, the places you went and, when an OpenAI key is
configured, inferred friends, activities and a short story of the year.

Results are written as JSON to stdout. Logs go to stderr.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("LIFELY_CONFIG", configPath)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides LIFELY_CONFIG)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(cacheCmd())
	rootCmd.AddCommand(callsCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lifely %s\n", version)
		},
	}
}
