// Package audit stores execution records of chosen rules.
//
// Only the final rule chosen for a message gets a record; rules that were
// deferred and lost the tie-break are listed as candidates on that record.
// A message with no matching rule produces no record.
//
// # Backends
//
//   - MemoryStorage: in-process, for tests and one-shot CLI runs
//   - SQLiteStorage: durable, github.com/mattn/go-sqlite3
//
// # Retention
//
// Pruner deletes records older than RetentionDays; Scheduler runs it on a
// cron schedule (github.com/robfig/cron/v3):
//
//	pruner := audit.NewPruner(storage, &audit.RetentionConfig{
//	    RetentionDays: 30,
//	    PruneSchedule: "0 3 * * *",
//	}, logger)
//	scheduler := audit.NewScheduler(pruner)
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
package audit
