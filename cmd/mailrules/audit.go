package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/mailrules/pkg/audit"
	"mercator-hq/mailrules/pkg/cli"
)

var auditFlags struct {
	user    string
	rule    string
	message string
	since   string
	until   string
	limit   int
	offset  int
	format  string

	retentionDays int
	watch         bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune execution records",
	Long: `Inspect and prune the execution records written for matched messages.

Records are written by evaluate and batch when audit.enabled is set. The
audit commands open the configured audit backend even when recording is off.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List execution records",
	Long: `List execution records, newest first.

Examples:
  # Last 100 records for a user
  mailrules audit list --user u1

  # Records for one rule in the last day
  mailrules audit list --rule r1 --since 24h

  # CSV export
  mailrules audit list --since 2026-01-01T00:00:00Z --limit 1000 --format csv`,
	RunE: runAuditList,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records older than the retention period",
	Long: `Delete execution records older than audit.retention_days.

With --watch the command keeps running and prunes on audit.prune_schedule
until interrupted.

Examples:
  # Prune once with the configured retention
  mailrules audit prune

  # Keep 30 days
  mailrules audit prune --retention-days 30

  # Run the retention scheduler in the foreground
  mailrules audit prune --watch`,
	RunE: runAuditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditListCmd.Flags().StringVarP(&auditFlags.user, "user", "u", "", "filter by user")
	auditListCmd.Flags().StringVarP(&auditFlags.rule, "rule", "r", "", "filter by rule")
	auditListCmd.Flags().StringVar(&auditFlags.message, "message", "", "filter by message id")
	auditListCmd.Flags().StringVar(&auditFlags.since, "since", "", "only records at or after this time (RFC3339 or duration like 24h)")
	auditListCmd.Flags().StringVar(&auditFlags.until, "until", "", "only records before this time (RFC3339 or duration)")
	auditListCmd.Flags().IntVar(&auditFlags.limit, "limit", audit.DefaultQueryLimit, "maximum records to list")
	auditListCmd.Flags().IntVar(&auditFlags.offset, "offset", 0, "records to skip")
	auditListCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, csv")

	auditPruneCmd.Flags().IntVar(&auditFlags.retentionDays, "retention-days", 0, "override audit.retention_days")
	auditPruneCmd.Flags().BoolVar(&auditFlags.watch, "watch", false, "run the prune schedule until interrupted")
}

// AuditListing is the output of audit list.
type AuditListing struct {
	Total   int64           `json:"total"`
	Records []*audit.Record `json:"records"`
}

func (l *AuditListing) Header() []string {
	return []string{"id", "created_at", "user_id", "message_id", "rule_id", "matched_by", "reason", "candidates"}
}

func (l *AuditListing) Rows() [][]string {
	rows := make([][]string, 0, len(l.Records))
	for _, r := range l.Records {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Format(time.RFC3339),
			r.UserID,
			r.MessageID,
			r.RuleID,
			r.MatchedBy,
			r.Reason,
			strings.Join(r.Candidates, " "),
		})
	}
	return rows
}

func (l *AuditListing) String() string {
	var sb strings.Builder
	for _, r := range l.Records {
		fmt.Fprintf(&sb, "%s  %s  user=%s message=%s rule=%s matched_by=%s\n    %s\n",
			r.CreatedAt.Format(time.RFC3339), r.ID, r.UserID, r.MessageID, r.RuleID, r.MatchedBy, r.Reason)
	}
	fmt.Fprintf(&sb, "%d of %d record(s)", len(l.Records), l.Total)
	return sb.String()
}

func runAuditList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}
	query, err := buildAuditQuery(time.Now())
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{withAudit: true})
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}
	defer a.close()

	records, err := a.audit.Query(ctx, query)
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}
	total, err := a.audit.Count(ctx, query)
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}

	return cli.NewFormatter(format).FormatTo(commandOutput(cmd), &AuditListing{Total: total, Records: records})
}

func buildAuditQuery(now time.Time) (*audit.Query, error) {
	q := &audit.Query{
		UserID:    auditFlags.user,
		RuleID:    auditFlags.rule,
		MessageID: auditFlags.message,
		Limit:     auditFlags.limit,
		Offset:    auditFlags.offset,
	}
	if auditFlags.since != "" {
		t, err := parseTimeFlag(auditFlags.since, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		q.Since = &t
	}
	if auditFlags.until != "" {
		t, err := parseTimeFlag(auditFlags.until, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --until: %w", err)
		}
		q.Until = &t
	}
	if q.Since != nil && q.Until != nil && !q.Until.After(*q.Since) {
		return nil, fmt.Errorf("--until must be after --since")
	}
	return q, nil
}

// parseTimeFlag accepts an RFC3339 timestamp or a duration counted back
// from now.
func parseTimeFlag(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor a duration", s)
	}
	if d < 0 {
		return time.Time{}, fmt.Errorf("duration %q must be positive", s)
	}
	return now.Add(-d), nil
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	if auditFlags.retentionDays < 0 {
		return fmt.Errorf("--retention-days must not be negative")
	}

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	a, err := newApp(ctx, appOptions{withAudit: true})
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	defer a.close()

	if auditFlags.retentionDays > 0 {
		a.config.Audit.RetentionDays = auditFlags.retentionDays
	}
	pruner := a.pruner()
	out := commandOutput(cmd)

	if !auditFlags.watch {
		deleted, err := pruner.Prune(ctx)
		if err != nil {
			return cli.NewCommandError("audit prune", err)
		}
		fmt.Fprintf(out, "Deleted %d record(s) older than %d day(s)\n", deleted, a.config.Audit.RetentionDays)
		return nil
	}

	scheduler := audit.NewScheduler(pruner)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	if !scheduler.IsRunning() {
		return fmt.Errorf("audit.prune_schedule is empty; nothing to watch")
	}
	if next := scheduler.NextRun(); next != nil {
		fmt.Fprintf(out, "Retention scheduler running, next prune at %s\n", next.Format(time.RFC3339))
	}

	<-ctx.Done()
	scheduler.Stop()
	return nil
}
