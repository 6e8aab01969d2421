package audit

import (
	"context"
	"time"
)

// Record is the execution record of the single rule chosen for a message.
// Candidates that lost the tie-break are listed but never get records of
// their own.
type Record struct {
	// ID is the unique record identifier (UUID).
	ID string `json:"id"`

	// RunID links the record to the evaluation run that produced it.
	RunID string `json:"run_id"`

	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id,omitempty"`
	IsThread  bool   `json:"is_thread"`

	// RuleID and RuleName identify the matched rule.
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name,omitempty"`

	// MatchedBy is the condition kind that produced the match.
	MatchedBy string `json:"matched_by"`

	// Reason is the human-readable match justification.
	Reason string `json:"reason"`

	// Candidates lists the rule IDs offered to the tie-breaker, if any.
	Candidates []string `json:"candidates,omitempty"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`
}

// Query filters records. Zero values match everything.
type Query struct {
	UserID    string     `json:"user_id,omitempty"`
	RuleID    string     `json:"rule_id,omitempty"`
	MessageID string     `json:"message_id,omitempty"`
	Since     *time.Time `json:"since,omitempty"` // Inclusive
	Until     *time.Time `json:"until,omitempty"` // Exclusive

	// Limit caps the result size. Default: 100
	Limit int `json:"limit,omitempty"`

	// Offset skips records after sorting (newest first).
	Offset int `json:"offset,omitempty"`
}

// DefaultQueryLimit is applied when Query.Limit is zero.
const DefaultQueryLimit = 100

// Storage persists execution records.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns matching records, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of matching records, ignoring Limit and Offset.
	Count(ctx context.Context, query *Query) (int64, error)

	// DeleteBefore removes records created before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}

func (q *Query) limit() int {
	if q == nil || q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

func (q *Query) matches(r *Record) bool {
	if q == nil {
		return true
	}
	if q.UserID != "" && r.UserID != q.UserID {
		return false
	}
	if q.RuleID != "" && r.RuleID != q.RuleID {
		return false
	}
	if q.MessageID != "" && r.MessageID != q.MessageID {
		return false
	}
	if q.Since != nil && r.CreatedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && !r.CreatedAt.Before(*q.Until) {
		return false
	}
	return true
}
