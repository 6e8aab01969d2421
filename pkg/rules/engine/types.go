package engine

import (
	"time"

	"mercator-hq/mailrules/pkg/rules"
)

// State is the terminal state of a deterministic evaluation run.
type State string

const (
	// StateResolved means a rule matched definitively.
	StateResolved State = "resolved"

	// StateDeferred means no rule matched definitively and at least one
	// rule needs AI adjudication.
	StateDeferred State = "deferred"

	// StateExhausted means every rule was scanned with no match and nothing
	// to defer.
	StateExhausted State = "exhausted"
)

// Reason strings attached to definitive matches.
const (
	ReasonStatic = "Matched static conditions"

	// UncategorizedName is reported for EXCLUDE matches on senders that
	// have no category assignment.
	UncategorizedName = "Uncategorized"
)

// Input is a single evaluation request.
type Input struct {
	// UserID owns the rules. Empty means the UserID of the first rule.
	UserID string

	// Rules in priority order: the first definitive match wins.
	Rules []*rules.Rule

	// Message under evaluation.
	Message *rules.Message

	// IsThread is true when the message belongs to an existing thread.
	IsThread bool

	// Store supplies groups and sender categories. It is only consulted
	// when a GROUP or CATEGORY condition is evaluated.
	Store rules.Store

	// Cache optionally carries a RunCache created by the caller. When nil a
	// fresh cache is created for this run.
	Cache *RunCache
}

// Outcome is the result of the deterministic pass.
type Outcome struct {
	// RunID identifies this evaluation run in logs and traces.
	RunID string

	// State is the terminal state.
	State State

	// Match is the definitively matched rule (StateResolved only).
	Match *rules.Rule

	// Reason explains the definitive match.
	Reason string

	// MatchedBy is the condition kind that resolved the match.
	MatchedBy rules.ConditionType

	// MatchedItem is the group item that matched (GROUP matches only).
	MatchedItem *rules.GroupItem

	// PotentialMatches are rules awaiting AI adjudication (StateDeferred only).
	PotentialMatches []*rules.Rule

	// RulesScanned is the number of rules looked at before stopping.
	RulesScanned int

	// EvaluationTime is the time taken by the deterministic pass.
	EvaluationTime time.Duration

	// Trace contains per-rule steps (if tracing is enabled).
	Trace []*TraceStep
}

// TraceStep records one decision made while scanning rules.
type TraceStep struct {
	RuleID string
	Kind   rules.ConditionType
	Result string
	Detail string
}

// Decision is the final answer for a message after the AI step.
type Decision struct {
	RunID string

	// Rule is the governing rule.
	Rule *rules.Rule

	// Reason is the human-readable reason (deterministic or AI-supplied).
	Reason string

	// MatchedBy is the condition kind that settled the decision.
	MatchedBy rules.ConditionType

	// Candidates are the rules that were sent to the tie-breaker, if any.
	Candidates []*rules.Rule
}

// MatchOutcome is the result of evaluating one predicate.
type MatchOutcome struct {
	Matched bool
	Reason  string
	Item    *rules.GroupItem
}
