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
	Use:   "mailrules",
	Short: "Mailrules - email rule evaluation engine",
	Long: `Mailrules decides which of a user's automation rules governs an
incoming email message.

Rules are checked in priority order:
  - Static conditions match sender, recipient, subject and body patterns
  - Group conditions match the sender against user-defined sender groups
  - Category conditions include or exclude senders by category
  - AI instructions are settled by a tie-breaker when nothing else decides

Configuration is read from --config (YAML) and MAILRULES_* environment
variables. Without --config the built-in defaults are used.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
