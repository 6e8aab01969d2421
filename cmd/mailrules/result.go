package main

import (
	"fmt"
	"strings"

	"mercator-hq/mailrules/pkg/rules"
	"mercator-hq/mailrules/pkg/rules/engine"
)

// DecisionResult is the printable outcome of evaluating one message.
type DecisionResult struct {
	UserID     string   `json:"user_id"`
	MessageID  string   `json:"message_id"`
	Matched    bool     `json:"matched"`
	RuleID     string   `json:"rule_id,omitempty"`
	RuleName   string   `json:"rule_name,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	MatchedBy  string   `json:"matched_by,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	RunID      string   `json:"run_id,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func newDecisionResult(userID string, msg *rules.Message, d *engine.Decision, err error) DecisionResult {
	r := DecisionResult{UserID: userID, MessageID: msg.ID}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	if d == nil || d.Rule == nil {
		return r
	}
	r.Matched = true
	r.RuleID = d.Rule.ID
	r.RuleName = d.Rule.Name
	r.Reason = d.Reason
	r.MatchedBy = string(d.MatchedBy)
	r.RunID = d.RunID
	for _, c := range d.Candidates {
		r.Candidates = append(r.Candidates, c.ID)
	}
	return r
}

func (r DecisionResult) String() string {
	switch {
	case r.Error != "":
		return fmt.Sprintf("%s: error: %s", r.MessageID, r.Error)
	case !r.Matched:
		return fmt.Sprintf("%s: no match", r.MessageID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: rule %s", r.MessageID, r.RuleID)
	if r.RuleName != "" {
		fmt.Fprintf(&sb, " (%s)", r.RuleName)
	}
	fmt.Fprintf(&sb, "\n  matched by: %s\n  reason:     %s", r.MatchedBy, r.Reason)
	if len(r.Candidates) > 0 {
		fmt.Fprintf(&sb, "\n  candidates: %s", strings.Join(r.Candidates, ", "))
	}
	return sb.String()
}

// DecisionResults implements cli.Tabular.
type DecisionResults []DecisionResult

func (rs DecisionResults) Header() []string {
	return []string{"user_id", "message_id", "matched", "rule_id", "matched_by", "reason", "error"}
}

func (rs DecisionResults) Rows() [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{
			r.UserID, r.MessageID, fmt.Sprint(r.Matched), r.RuleID, r.MatchedBy, r.Reason, r.Error,
		})
	}
	return rows
}

func (rs DecisionResults) String() string {
	lines := make([]string, 0, len(rs))
	for _, r := range rs {
		lines = append(lines, r.String())
	}
	return strings.Join(lines, "\n")
}
