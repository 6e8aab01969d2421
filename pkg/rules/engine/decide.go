package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/mailrules/pkg/rules"
)

// Choice is a tie-breaker answer. A nil Rule means none of the candidates apply.
type Choice struct {
	Rule   *rules.Rule
	Reason string
}

// TieBreaker adjudicates AI-conditioned rules. It is called at most once per
// message, only with a non-empty candidate list, after the deterministic
// pass has completed.
type TieBreaker interface {
	ChooseRule(ctx context.Context, candidates []*rules.Rule, msg *rules.Message) (*Choice, error)
}

// TieBreakerFunc adapts a function to the TieBreaker interface.
type TieBreakerFunc func(ctx context.Context, candidates []*rules.Rule, msg *rules.Message) (*Choice, error)

// ChooseRule calls f.
func (f TieBreakerFunc) ChooseRule(ctx context.Context, candidates []*rules.Rule, msg *rules.Message) (*Choice, error) {
	return f(ctx, candidates, msg)
}

// Decide runs the deterministic pass and, when it defers, asks the
// tie-breaker to pick among the potential matches. It returns a nil Decision
// when no rule governs the message. Tie-breaker failures are reported as no
// match; store failures during the deterministic pass are returned.
func (e *Evaluator) Decide(ctx context.Context, in Input, tb TieBreaker) (*Decision, error) {
	out, err := e.FindPotentialMatchingRules(ctx, in)
	if err != nil {
		return nil, err
	}

	switch out.State {
	case StateResolved:
		return &Decision{
			RunID:     out.RunID,
			Rule:      out.Match,
			Reason:    out.Reason,
			MatchedBy: out.MatchedBy,
		}, nil
	case StateExhausted:
		return nil, nil
	}

	logger := e.logger.With("run_id", out.RunID, "message_id", in.Message.ID)
	if tb == nil {
		logger.Debug("no tie-breaker configured, deferred rules dropped",
			"candidates", len(out.PotentialMatches),
		)
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "rules.ChooseRule")
	defer span.End()
	span.SetAttributes(attribute.Int("mailrules.candidates", len(out.PotentialMatches)))

	start := time.Now()
	choice, err := tb.ChooseRule(ctx, out.PotentialMatches, in.Message)
	elapsed := time.Since(start)
	if err != nil {
		tbErr := &TieBreakerError{Candidates: len(out.PotentialMatches), Cause: err}
		span.RecordError(tbErr)
		logger.Warn("tie-breaker failed, treating as no match", "error", tbErr)
		e.recordTieBreak("error", len(out.PotentialMatches), elapsed)
		return nil, nil
	}
	if choice == nil || choice.Rule == nil {
		logger.Debug("tie-breaker chose no rule", "candidates", len(out.PotentialMatches))
		e.recordTieBreak("no_match", len(out.PotentialMatches), elapsed)
		return nil, nil
	}

	chosen := findCandidate(out.PotentialMatches, choice.Rule)
	if chosen == nil {
		logger.Warn("tie-breaker returned a rule that was not a candidate",
			"rule_id", choice.Rule.ID,
		)
		e.recordTieBreak("invalid", len(out.PotentialMatches), elapsed)
		return nil, nil
	}

	e.recordTieBreak("match", len(out.PotentialMatches), elapsed)
	if e.recorder != nil {
		e.recorder.RecordMatch(string(rules.ConditionAI))
	}
	span.SetAttributes(attribute.String("mailrules.rule_id", chosen.ID))
	logger.Info("tie-breaker chose rule", "rule_id", chosen.ID, "reason", choice.Reason)

	return &Decision{
		RunID:      out.RunID,
		Rule:       chosen,
		Reason:     choice.Reason,
		MatchedBy:  rules.ConditionAI,
		Candidates: out.PotentialMatches,
	}, nil
}

func (e *Evaluator) recordTieBreak(result string, candidates int, d time.Duration) {
	if e.recorder != nil {
		e.recorder.RecordTieBreak(result, candidates, d)
	}
}

// findCandidate maps the tie-breaker's rule back to the candidate list by
// ID, so the caller always receives its own rule value.
func findCandidate(candidates []*rules.Rule, picked *rules.Rule) *rules.Rule {
	for _, c := range candidates {
		if c == picked || (picked.ID != "" && c.ID == picked.ID) {
			return c
		}
	}
	return nil
}
