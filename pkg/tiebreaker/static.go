package tiebreaker

import (
	"context"

	"mercator-hq/mailrules/pkg/rules"
	"mercator-hq/mailrules/pkg/rules/engine"
)

// Static answers without a model. With an empty RuleID it picks the first
// candidate; otherwise it picks the candidate with that ID, if present.
// Useful for offline runs and tests.
type Static struct {
	RuleID string
	Reason string
}

// ChooseRule implements engine.TieBreaker.
func (s Static) ChooseRule(ctx context.Context, candidates []*rules.Rule, msg *rules.Message) (*engine.Choice, error) {
	reason := s.Reason
	if reason == "" {
		reason = "Selected by static tie-breaker"
	}
	for _, r := range candidates {
		if s.RuleID == "" || r.ID == s.RuleID {
			return &engine.Choice{Rule: r, Reason: reason}, nil
		}
	}
	return nil, nil
}

// None never picks a rule: deferred candidates are dropped.
type None struct{}

// ChooseRule implements engine.TieBreaker.
func (None) ChooseRule(ctx context.Context, candidates []*rules.Rule, msg *rules.Message) (*engine.Choice, error) {
	return nil, nil
}

var (
	_ engine.TieBreaker = Static{}
	_ engine.TieBreaker = None{}
)
