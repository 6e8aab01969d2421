package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/mailrules/pkg/cli"
	"mercator-hq/mailrules/pkg/rules"
	"mercator-hq/mailrules/pkg/rules/store"
)

var lintFlags struct {
	store  string
	user   string
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate a rule store file",
	Long: `Validate a YAML rule store file.

The lint command decodes the store document and checks every user's rules:
  - Unknown conditional operators and category filter types
  - Group references to groups that do not exist
  - Rules that declare no conditions
  - Duplicate rule and group IDs

Examples:
  # Lint a store file
  mailrules lint --store rules.yaml

  # Lint one user only
  mailrules lint --store rules.yaml --user u1

  # Strict mode (warnings as errors)
  mailrules lint --store rules.yaml --strict

  # JSON output for CI/CD
  mailrules lint --store rules.yaml --format json`,
	RunE: lintStore,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.store, "store", "s", "", "store file to validate (default: store.path)")
	lintCmd.Flags().StringVarP(&lintFlags.user, "user", "u", "", "only validate this user")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// LintResult is the validation result for one user of a store file.
type LintResult struct {
	File     string      `json:"file"`
	User     string      `json:"user,omitempty"`
	Valid    bool        `json:"valid"`
	Errors   []LintIssue `json:"errors,omitempty"`
	Warnings []LintIssue `json:"warnings,omitempty"`
}

// LintIssue is a single finding.
type LintIssue struct {
	Rule    string `json:"rule,omitempty"`
	Group   string `json:"group,omitempty"`
	Message string `json:"message"`
}

func lintStore(cmd *cobra.Command, args []string) error {
	path := lintFlags.store
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Store.Path
	}
	if path == "" {
		return fmt.Errorf("--store must be specified")
	}
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}

	results, err := lintFile(path, lintFlags.user)
	if err != nil {
		return err
	}

	w := commandOutput(cmd)
	if format == cli.FormatJSON {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(w, results); err != nil {
			return err
		}
	} else {
		printLintText(w, results, lintFlags.strict)
	}

	for _, r := range results {
		if !r.Valid || (lintFlags.strict && len(r.Warnings) > 0) {
			return fmt.Errorf("validation failed")
		}
	}
	return nil
}

// lintFile validates every user in the store file, or only userID when set.
// A document that fails to decode yields a single invalid result.
func lintFile(path, userID string) ([]LintResult, error) {
	doc, err := store.LoadDocument(path)
	if err != nil {
		return []LintResult{{
			File:   path,
			Valid:  false,
			Errors: []LintIssue{{Message: err.Error()}},
		}}, nil
	}

	users := doc.Users
	if userID != "" {
		u := doc.User(userID)
		if u == nil {
			return nil, fmt.Errorf("user %q not found in %s", userID, path)
		}
		users = []*store.UserData{u}
	}

	results := make([]LintResult, 0, len(users))
	for _, u := range users {
		issues := rules.Validate(u.Rules, u.Groups, u.Categories)
		result := LintResult{File: path, User: u.ID, Valid: !issues.HasErrors()}
		for _, is := range issues.Issues {
			li := LintIssue{Rule: is.RuleID, Group: is.GroupID, Message: is.Message}
			if is.Severity == rules.SeverityError {
				result.Errors = append(result.Errors, li)
			} else {
				result.Warnings = append(result.Warnings, li)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func printLintText(w io.Writer, results []LintResult, strict bool) {
	totalErrors, totalWarnings := 0, 0
	for _, r := range results {
		subject := r.File
		if r.User != "" {
			subject = fmt.Sprintf("%s (user %s)", r.File, r.User)
		}
		if r.Valid && len(r.Warnings) == 0 {
			fmt.Fprintf(w, "✓ %s\n", subject)
			continue
		}
		mark := "✗"
		if r.Valid && !strict {
			mark = "!"
		}
		fmt.Fprintf(w, "%s %s\n", mark, subject)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  error: %s\n", e.describe())
		}
		for _, wn := range r.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", wn.describe())
		}
		totalErrors += len(r.Errors)
		totalWarnings += len(r.Warnings)
	}
	fmt.Fprintf(w, "\n%d error(s), %d warning(s)\n", totalErrors, totalWarnings)
}

func (i LintIssue) describe() string {
	var parts []string
	if i.Rule != "" {
		parts = append(parts, "rule "+i.Rule)
	}
	if i.Group != "" {
		parts = append(parts, "group "+i.Group)
	}
	if len(parts) == 0 {
		return i.Message
	}
	return strings.Join(parts, ", ") + ": " + i.Message
}
