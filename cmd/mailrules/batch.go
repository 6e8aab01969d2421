package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/mailrules/pkg/cli"
	"mercator-hq/mailrules/pkg/rules"
)

var batchFlags struct {
	store       string
	user        string
	messages    string
	workers     int
	format      string
	metricsAddr string
	progress    bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate a file of messages concurrently",
	Long: `Evaluate every message in a JSONL file using a pool of workers.

Each line is a JSON message. A line may carry "user_id" and "is_thread" to
override --user and mark thread replies. Messages are independent, so the
order of evaluation does not affect the results; output keeps input order.

When audit.enabled is set every matched message writes an execution record.

Examples:
  # Evaluate with 8 workers
  mailrules batch --store rules.yaml --user u1 --messages msgs.jsonl --workers 8

  # Expose Prometheus metrics while the batch runs
  mailrules batch --messages msgs.jsonl --user u1 --metrics-addr 127.0.0.1:9090

  # CSV report
  mailrules batch --messages msgs.jsonl --user u1 --format csv > report.csv`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchFlags.store, "store", "s", "", "rule store path (overrides store.path)")
	batchCmd.Flags().StringVarP(&batchFlags.user, "user", "u", "", "default user for lines without user_id")
	batchCmd.Flags().StringVar(&batchFlags.messages, "messages", "", "JSONL message file (- for stdin)")
	batchCmd.Flags().IntVarP(&batchFlags.workers, "workers", "w", 4, "number of concurrent workers")
	batchCmd.Flags().StringVar(&batchFlags.format, "format", "text", "output format: text, json, csv")
	batchCmd.Flags().StringVar(&batchFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	batchCmd.Flags().BoolVar(&batchFlags.progress, "progress", false, "show progress on stderr")
}

// batchMessage is one JSONL line.
type batchMessage struct {
	rules.Message
	UserID   string `json:"user_id"`
	IsThread bool   `json:"is_thread"`
}

// BatchReport is the result of a batch run.
type BatchReport struct {
	BatchID   string          `json:"batch_id"`
	Total     int             `json:"total"`
	Matched   int             `json:"matched"`
	Unmatched int             `json:"unmatched"`
	Failed    int             `json:"failed"`
	Duration  string          `json:"duration"`
	Results   DecisionResults `json:"results"`
}

func (r *BatchReport) Header() []string { return r.Results.Header() }
func (r *BatchReport) Rows() [][]string { return r.Results.Rows() }

func (r *BatchReport) String() string {
	summary := fmt.Sprintf("\nBatch %s: %d messages, %d matched, %d unmatched, %d failed in %s",
		r.BatchID, r.Total, r.Matched, r.Unmatched, r.Failed, r.Duration)
	if len(r.Results) == 0 {
		return summary[1:]
	}
	return r.Results.String() + "\n" + summary
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchFlags.messages == "" {
		return fmt.Errorf("--messages must be specified")
	}
	if batchFlags.workers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}
	format, err := cli.ParseFormat(batchFlags.format)
	if err != nil {
		return err
	}

	messages, err := readBatch(batchFlags.messages)
	if err != nil {
		return err
	}
	for i, m := range messages {
		if m.UserID == "" {
			m.UserID = batchFlags.user
		}
		if m.UserID == "" {
			return fmt.Errorf("message %d (%s) has no user_id and --user is not set", i+1, m.ID)
		}
	}

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	a, err := newApp(ctx, appOptions{
		storePath:     batchFlags.store,
		withStore:     true,
		enableMetrics: batchFlags.metricsAddr != "",
	})
	if err != nil {
		return cli.NewCommandError("batch", err)
	}
	defer a.close()

	if batchFlags.metricsAddr != "" {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()
		go func() {
			if err := a.collector.Serve(metricsCtx, batchFlags.metricsAddr, a.config.Telemetry.Metrics.Path, a.logger); err != nil {
				a.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	var progress cli.ProgressReporter = cli.NopProgress{}
	if batchFlags.progress {
		progress = cli.NewProgressReporter(os.Stderr)
	}

	report := runBatchWorkers(ctx, a, messages, batchFlags.workers, progress)
	if err := ctx.Err(); err != nil {
		return cli.NewCommandError("batch", err)
	}

	if err := cli.NewFormatter(format).FormatTo(commandOutput(cmd), report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d messages failed", report.Failed, report.Total)
	}
	return nil
}

// runBatchWorkers evaluates messages with a fixed pool of workers. Results
// are stored by input index so the report keeps input order.
func runBatchWorkers(ctx context.Context, a *app, messages []*batchMessage, workers int, progress cli.ProgressReporter) *BatchReport {
	report := &BatchReport{
		BatchID: uuid.NewString(),
		Total:   len(messages),
		Results: make(DecisionResults, len(messages)),
	}
	logger := a.logger.With("batch_id", report.BatchID)
	logger.Info("batch started", "messages", len(messages), "workers", workers)

	start := time.Now()
	progress.Start(len(messages))

	jobs := make(chan int)
	var wg sync.WaitGroup
	var active sync.Mutex
	running := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			active.Lock()
			running++
			a.collector.SetActiveWorkers(running)
			active.Unlock()
			defer func() {
				active.Lock()
				running--
				a.collector.SetActiveWorkers(running)
				active.Unlock()
			}()

			for i := range jobs {
				m := messages[i]
				decision, err := a.evaluate(ctx, m.UserID, &m.Message, m.IsThread)
				report.Results[i] = newDecisionResult(m.UserID, &m.Message, decision, err)

				outcome := cli.OutcomeUnmatched
				switch {
				case err != nil:
					outcome = cli.OutcomeError
					logger.Warn("message evaluation failed", "message_id", m.ID, "error", err)
				case decision != nil:
					outcome = cli.OutcomeMatched
				}
				a.collector.RecordMessage(string(outcome))
				progress.Record(outcome)
			}
		}()
	}

feed:
	for i := range messages {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	progress.Finish()

	for _, r := range report.Results {
		switch {
		case r.Error != "":
			report.Failed++
		case r.Matched:
			report.Matched++
		default:
			report.Unmatched++
		}
	}
	report.Duration = time.Since(start).Round(time.Millisecond).String()

	logger.Info("batch finished",
		"matched", report.Matched,
		"unmatched", report.Unmatched,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report
}

// readBatch decodes a JSONL file. Blank lines are skipped.
func readBatch(path string) ([]*batchMessage, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open messages file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return decodeBatch(r)
}

func decodeBatch(r io.Reader) ([]*batchMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var out []*batchMessage
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		var m batchMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if m.ID == "" {
			m.ID = fmt.Sprintf("line-%d", line)
		}
		out = append(out, &m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return out, nil
}
