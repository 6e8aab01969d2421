package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    thread_id TEXT,
    is_thread BOOLEAN NOT NULL,
    rule_id TEXT NOT NULL,
    rule_name TEXT,
    matched_by TEXT NOT NULL,
    reason TEXT NOT NULL,
    candidates TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_user ON executions(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_executions_rule ON executions(rule_id);
CREATE INDEX IF NOT EXISTS idx_executions_created ON executions(created_at);
`

// SQLiteConfig contains configuration for the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStorage opens the database and creates the schema.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	if config.WALMode {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, newStorageError("sqlite", "enable_wal", err)
		}
	}
	if config.BusyTimeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
			db.Close()
			return nil, newStorageError("sqlite", "set_busy_timeout", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, newStorageError("sqlite", "create_schema", err)
	}

	logger.Info("SQLite audit storage initialized", "path", config.Path, "wal_mode", config.WALMode)
	return &SQLiteStorage{db: db, logger: logger}, nil
}

// Store implements Storage.
func (s *SQLiteStorage) Store(ctx context.Context, r *Record) error {
	if r == nil {
		return ErrNilRecord
	}
	var candidates any
	if len(r.Candidates) > 0 {
		data, err := json.Marshal(r.Candidates)
		if err != nil {
			return newStorageError("sqlite", "store", err)
		}
		candidates = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (
			id, run_id, user_id, message_id, thread_id, is_thread,
			rule_id, rule_name, matched_by, reason, candidates, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.UserID, r.MessageID, r.ThreadID, r.IsThread,
		r.RuleID, r.RuleName, r.MatchedBy, r.Reason, candidates, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return newStorageError("sqlite", "store", err)
	}
	return nil
}

// Query implements Storage.
func (s *SQLiteStorage) Query(ctx context.Context, query *Query) ([]*Record, error) {
	where, args := buildWhereClause(query)

	q := `SELECT id, run_id, user_id, message_id, thread_id, is_thread,
		rule_id, rule_name, matched_by, reason, candidates, created_at
		FROM executions`
	if where != "" {
		q += " WHERE " + where
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", query.limit())
	if query != nil && query.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, newStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, newStorageError("sqlite", "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count implements Storage.
func (s *SQLiteStorage) Count(ctx context.Context, query *Query) (int64, error) {
	where, args := buildWhereClause(query)
	q := "SELECT COUNT(*) FROM executions"
	if where != "" {
		q += " WHERE " + where
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, newStorageError("sqlite", "count", err)
	}
	return n, nil
}

// DeleteBefore implements Storage.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM executions WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, newStorageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError("sqlite", "delete", err)
	}
	return n, nil
}

// Close implements Storage.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func buildWhereClause(q *Query) (string, []any) {
	if q == nil {
		return "", nil
	}
	var conds []string
	var args []any

	if q.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, q.UserID)
	}
	if q.RuleID != "" {
		conds = append(conds, "rule_id = ?")
		args = append(args, q.RuleID)
	}
	if q.MessageID != "" {
		conds = append(conds, "message_id = ?")
		args = append(args, q.MessageID)
	}
	if q.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Until != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, q.Until.UnixNano())
	}
	return strings.Join(conds, " AND "), args
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		r          Record
		threadID   sql.NullString
		ruleName   sql.NullString
		candidates sql.NullString
		createdAt  int64
	)
	if err := rows.Scan(&r.ID, &r.RunID, &r.UserID, &r.MessageID, &threadID, &r.IsThread,
		&r.RuleID, &ruleName, &r.MatchedBy, &r.Reason, &candidates, &createdAt); err != nil {
		return nil, err
	}
	r.ThreadID = threadID.String
	r.RuleName = ruleName.String
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if candidates.Valid && candidates.String != "" {
		if err := json.Unmarshal([]byte(candidates.String), &r.Candidates); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
	}
	return &r, nil
}
