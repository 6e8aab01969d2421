package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/mailrules/pkg/rules"
	"mercator-hq/mailrules/pkg/rules/engine"
)

// Recorder writes the execution record for a decision.
type Recorder struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder creates a recorder backed by storage.
func NewRecorder(storage Storage, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		storage: storage,
		logger:  logger.With("component", "audit.recorder"),
		now:     time.Now,
	}
}

// NewRecord builds the execution record of decision for msg.
func NewRecord(userID string, msg *rules.Message, isThread bool, d *engine.Decision) *Record {
	r := &Record{
		ID:        uuid.NewString(),
		RunID:     d.RunID,
		UserID:    userID,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		IsThread:  isThread,
		MatchedBy: string(d.MatchedBy),
		Reason:    d.Reason,
	}
	if d.Rule != nil {
		r.RuleID = d.Rule.ID
		r.RuleName = d.Rule.Name
		if userID == "" {
			r.UserID = d.Rule.UserID
		}
	}
	for _, c := range d.Candidates {
		r.Candidates = append(r.Candidates, c.ID)
	}
	return r
}

// Record persists the decision. A nil decision (no rule matched) writes
// nothing and returns nil.
func (rec *Recorder) Record(ctx context.Context, userID string, msg *rules.Message, isThread bool, d *engine.Decision) (*Record, error) {
	if d == nil || d.Rule == nil {
		return nil, nil
	}

	r := NewRecord(userID, msg, isThread, d)
	r.CreatedAt = rec.now().UTC()
	if err := rec.storage.Store(ctx, r); err != nil {
		rec.logger.Error("failed to store execution record",
			"run_id", r.RunID,
			"rule_id", r.RuleID,
			"error", err,
		)
		return nil, err
	}

	rec.logger.Debug("execution record stored", "id", r.ID, "run_id", r.RunID, "rule_id", r.RuleID)
	return r, nil
}
