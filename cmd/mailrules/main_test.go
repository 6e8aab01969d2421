package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

const testStore = `
users:
  - id: u1
    rules:
      - id: vip
        name: VIP senders
        group_id: g1
      - id: newsletters
        name: Newsletters
        category_filter_type: INCLUDE
        category_filters: [news]
        instructions: Newsletters I never read
      - id: invoices
        name: Invoices
        subject: invoice
    groups:
      - id: g1
        name: VIPs
        items:
          - {type: FROM, value: boss@example.com}
    categories:
      - {id: news, name: Newsletter}
    senders:
      - {address: "Digest <digest@news.example.com>", category: news}
`

// testEnv writes a store file and a config file into a temp dir and points
// the global --config flag at it.
type testEnv struct {
	dir       string
	storePath string
	auditPath string
}

func newTestEnv(t *testing.T, tieBreakerMode string, auditEnabled bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:       dir,
		storePath: filepath.Join(dir, "rules.yaml"),
		auditPath: filepath.Join(dir, "audit.db"),
	}
	writeFile(t, env.storePath, testStore)

	cfg := fmt.Sprintf(`
store:
  backend: file
  path: %s
tiebreaker:
  mode: %s
audit:
  enabled: %t
  backend: sqlite
  path: %s
telemetry:
  logging:
    level: error
`, env.storePath, tieBreakerMode, auditEnabled, env.auditPath)
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, cfg)

	origCfg, origVerbose := cfgFile, verbose
	cfgFile, verbose = cfgPath, false
	t.Cleanup(func() { cfgFile, verbose = origCfg, origVerbose })
	return env
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// testCommand returns a command whose output is captured in buf.
func testCommand() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	return cmd, buf
}
