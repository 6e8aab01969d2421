package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/mailrules/pkg/cli"
	"mercator-hq/mailrules/pkg/rules/store"
)

var importFlags struct {
	from string
	user string
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a YAML store file into a database store",
	Long: `Load users, rules, groups, categories and sender assignments from a
YAML store file into the configured SQLite or PostgreSQL store. Each
imported user's existing data is replaced.

Examples:
  # Import into SQLite
  MAILRULES_STORE_BACKEND=sqlite MAILRULES_STORE_PATH=rules.db mailrules import --from rules.yaml

  # Import a single user into PostgreSQL
  mailrules import --config postgres.yaml --from rules.yaml --user u1`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFlags.from, "from", "f", "", "YAML store file to import")
	importCmd.Flags().StringVarP(&importFlags.user, "user", "u", "", "only import this user")
}

// importer is implemented by the database-backed stores.
type importer interface {
	Import(ctx context.Context, u *store.UserData) error
}

func runImport(cmd *cobra.Command, args []string) error {
	if importFlags.from == "" {
		return fmt.Errorf("--from must be specified")
	}
	doc, err := store.LoadDocument(importFlags.from)
	if err != nil {
		return err
	}
	users := doc.Users
	if importFlags.user != "" {
		u := doc.User(importFlags.user)
		if u == nil {
			return fmt.Errorf("user %q not found in %s", importFlags.user, importFlags.from)
		}
		users = []*store.UserData{u}
	}

	ctx := commandContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Backend != "sqlite" && cfg.Store.Backend != "postgres" {
		return fmt.Errorf("import needs a sqlite or postgres store, configured backend is %q", cfg.Store.Backend)
	}
	// The category cache is irrelevant for writes.
	cfg.Store.Cache.Backend = "none"

	a, err := buildApp(ctx, cfg, appOptions{withStore: true})
	if err != nil {
		return cli.NewCommandError("import", err)
	}
	defer a.close()

	dst, ok := a.store.(importer)
	if !ok {
		return fmt.Errorf("store backend %q does not support import", cfg.Store.Backend)
	}

	out := commandOutput(cmd)
	for _, u := range users {
		if err := dst.Import(ctx, u); err != nil {
			return cli.NewCommandError("import", fmt.Errorf("user %q: %w", u.ID, err))
		}
		fmt.Fprintf(out, "Imported user %s: %d rule(s), %d group(s), %d category(ies), %d sender(s)\n",
			u.ID, len(u.Rules), len(u.Groups), len(u.Categories), len(u.Senders))
	}
	return nil
}
