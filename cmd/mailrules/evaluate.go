package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/mailrules/pkg/cli"
	"mercator-hq/mailrules/pkg/rules"
)

var evaluateFlags struct {
	store   string
	user    string
	message string
	thread  bool
	format  string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Decide which rule governs a message",
	Long: `Evaluate one message against a user's rules.

Deterministic conditions are checked first in rule priority order. When only
rules with AI instructions remain, the configured tie-breaker picks one.

The message file is YAML or JSON with the fields id, thread_id, from, to,
subject and body.

Examples:
  # Evaluate with the file store
  mailrules evaluate --store rules.yaml --user u1 --message msg.yaml

  # Treat the message as part of an existing thread
  mailrules evaluate --store rules.yaml --user u1 --message msg.yaml --thread

  # JSON output
  mailrules evaluate --store rules.yaml --user u1 --message msg.json --format json`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFlags.store, "store", "s", "", "rule store path (overrides store.path)")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.user, "user", "u", "", "user whose rules are evaluated")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.message, "message", "m", "", "message file (YAML or JSON)")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.thread, "thread", false, "message belongs to an existing thread")
	evaluateCmd.Flags().StringVar(&evaluateFlags.format, "format", "text", "output format: text, json")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if evaluateFlags.user == "" {
		return fmt.Errorf("--user must be specified")
	}
	if evaluateFlags.message == "" {
		return fmt.Errorf("--message must be specified")
	}
	format, err := cli.ParseFormat(evaluateFlags.format)
	if err != nil {
		return err
	}

	msg, err := readMessage(evaluateFlags.message)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	a, err := newApp(ctx, appOptions{storePath: evaluateFlags.store, withStore: true})
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	defer a.close()

	decision, err := a.evaluate(ctx, evaluateFlags.user, msg, evaluateFlags.thread)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	result := newDecisionResult(evaluateFlags.user, msg, decision, nil)
	return cli.NewFormatter(format).FormatTo(commandOutput(cmd), result)
}

// readMessage decodes a message file. Files ending in .json are decoded as
// JSON, everything else as YAML.
func readMessage(path string) (*rules.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}

	var msg rules.Message
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &msg)
	} else {
		err = yaml.Unmarshal(data, &msg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse message file %q: %w", path, err)
	}
	if msg.ID == "" {
		msg.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &msg, nil
}
