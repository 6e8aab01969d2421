package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// commandContext returns the command's context. Tests call RunE functions
// with a nil command.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd == nil || cmd.Context() == nil {
		return context.Background()
	}
	return cmd.Context()
}

// commandOutput returns where results are printed.
func commandOutput(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}
