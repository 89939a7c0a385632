package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sendgate",
	Short: "Sendgate - send quota service for outbound outreach",
	Long: `Sendgate enforces per-plan send ceilings for outbound email and LinkedIn
outreach.

It serves an HTTP API that campaign schedulers call before and after every
send, providing:
  - Admission checks against daily and monthly ceilings
  - Atomic usage counters shared across any number of instances
  - Threshold warnings before a workspace runs out of quota
  - Pluggable counter storage (memory, SQLite, PostgreSQL, Redis)`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
