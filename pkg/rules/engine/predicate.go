package engine

import (
	"context"

	"mercator-hq/mailrules/pkg/rules"
)

// Predicate evaluates one deterministic condition kind of a rule.
type Predicate interface {
	// Kind returns the condition kind this predicate evaluates.
	Kind() rules.ConditionType

	// Evaluate evaluates the predicate for the rule and message.
	Evaluate(ctx context.Context, rule *rules.Rule, msg *rules.Message, run *RunCache) (MatchOutcome, error)
}

// deterministicPredicates returns the deterministic predicates in
// evaluation order. AI has no predicate: it is deferred, never evaluated.
func deterministicPredicates() []Predicate {
	return []Predicate{
		staticPredicate{},
		groupPredicate{},
		categoryPredicate{},
	}
}

type staticPredicate struct{}

func (staticPredicate) Kind() rules.ConditionType { return rules.ConditionStatic }

func (staticPredicate) Evaluate(_ context.Context, rule *rules.Rule, msg *rules.Message, _ *RunCache) (MatchOutcome, error) {
	if MatchesStatic(rule, msg) {
		return MatchOutcome{Matched: true, Reason: ReasonStatic}, nil
	}
	return MatchOutcome{}, nil
}

type groupPredicate struct{}

func (groupPredicate) Kind() rules.ConditionType { return rules.ConditionGroup }

func (groupPredicate) Evaluate(ctx context.Context, rule *rules.Rule, msg *rules.Message, run *RunCache) (MatchOutcome, error) {
	groups, err := run.Groups(ctx)
	if err != nil {
		return MatchOutcome{}, err
	}
	item := MatchesGroup(*rule.GroupID, groups, msg)
	if item == nil {
		return MatchOutcome{}, nil
	}
	return MatchOutcome{Matched: true, Reason: groupReason(item), Item: item}, nil
}

type categoryPredicate struct{}

func (categoryPredicate) Kind() rules.ConditionType { return rules.ConditionCategory }

func (categoryPredicate) Evaluate(ctx context.Context, rule *rules.Rule, msg *rules.Message, run *RunCache) (MatchOutcome, error) {
	if !rule.HasCategory() {
		return MatchOutcome{Matched: true, Reason: categoryReason(nil)}, nil
	}
	assigned, err := run.SenderCategory(ctx, msg.From)
	if err != nil {
		return MatchOutcome{}, err
	}
	if !CategoryFilterHolds(rule, assigned) {
		return MatchOutcome{}, nil
	}
	return MatchOutcome{Matched: true, Reason: categoryReason(assigned)}, nil
}
