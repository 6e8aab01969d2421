package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/mailrules/pkg/rules"
)

const tracerName = "mercator-hq/mailrules/pkg/rules/engine"

// Recorder receives evaluation metrics. Implemented by the telemetry
// metrics package; a nil Recorder disables recording.
type Recorder interface {
	// RecordEvaluation records one deterministic pass and its terminal state.
	RecordEvaluation(state string, rulesScanned int, duration time.Duration)

	// RecordMatch records a definitive match by condition kind.
	RecordMatch(kind string)

	// RecordTieBreak records a tie-breaker call ("match", "no_match", "error", "invalid").
	RecordTieBreak(result string, candidates int, duration time.Duration)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Evaluator) {
		e.recorder = r
	}
}

// WithTracer sets the OpenTelemetry tracer. The global tracer is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(e *Evaluator) {
		e.tracer = t
	}
}

// Evaluator decides which single rule governs a message. It is safe for
// concurrent use: all per-run state lives in the RunCache of each call.
type Evaluator struct {
	config     *EngineConfig
	logger     *slog.Logger
	recorder   Recorder
	tracer     trace.Tracer
	predicates []Predicate
}

// NewEvaluator creates a new rule evaluator.
func NewEvaluator(config *EngineConfig, logger *slog.Logger, opts ...Option) (*Evaluator, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Evaluator{
		config:     config,
		logger:     logger.With("component", "rules.engine"),
		predicates: deterministicPredicates(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e, nil
}

// verdict is the per-rule result of the condition combinator.
type verdict int

const (
	verdictSkip verdict = iota
	verdictDefer
	verdictMatch
)

type ruleResult struct {
	verdict verdict
	outcome MatchOutcome
	kind    rules.ConditionType
}

// FindPotentialMatchingRules runs the deterministic pass. It scans rules in
// order and stops at the first definitive match; otherwise it returns the
// rules whose AI condition still needs adjudication.
func (e *Evaluator) FindPotentialMatchingRules(ctx context.Context, in Input) (*Outcome, error) {
	if in.Message == nil {
		return nil, ErrNilMessage
	}
	if len(in.Rules) > e.config.MaxRules {
		return nil, fmt.Errorf("%w: %d (max: %d)", ErrTooManyRules, len(in.Rules), e.config.MaxRules)
	}

	userID := resolveUserID(in)
	run := in.Cache
	if run == nil {
		run = NewRunCache(userID, in.Store)
	} else if run.UserID() != userID {
		return nil, fmt.Errorf("%w: cache %q, input %q", ErrCacheUserMismatch, run.UserID(), userID)
	}

	start := time.Now()
	out := &Outcome{RunID: uuid.NewString()}
	if e.config.EnableTrace {
		out.Trace = []*TraceStep{}
	}

	ctx, span := e.tracer.Start(ctx, "rules.FindPotentialMatchingRules",
		trace.WithAttributes(
			attribute.String("mailrules.run_id", out.RunID),
			attribute.Int("mailrules.rule_count", len(in.Rules)),
			attribute.Bool("mailrules.is_thread", in.IsThread),
		),
	)
	defer span.End()

	logger := e.logger.With("run_id", out.RunID, "user_id", userID, "message_id", in.Message.ID)

	for _, rule := range in.Rules {
		if rule == nil {
			continue
		}
		out.RulesScanned++

		if rule.UserID != "" && userID != "" && rule.UserID != userID {
			logger.Warn("skipping rule owned by another user", "rule_id", rule.ID, "rule_user_id", rule.UserID)
			out.addTrace(rule.ID, "", "skip", "owner mismatch")
			continue
		}
		if in.IsThread && !rule.RunOnThreads {
			out.addTrace(rule.ID, "", "skip", "rule does not run on threads")
			continue
		}

		res, err := e.evaluateRule(ctx, rule, in.Message, run, out)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		switch res.verdict {
		case verdictMatch:
			out.State = StateResolved
			out.Match = rule
			out.Reason = res.outcome.Reason
			out.MatchedBy = res.kind
			out.MatchedItem = res.outcome.Item
			out.PotentialMatches = nil
			e.finish(span, out, start)
			if e.recorder != nil {
				e.recorder.RecordMatch(string(res.kind))
			}
			logger.Info("rule matched",
				"rule_id", rule.ID,
				"matched_by", res.kind,
				"reason", out.Reason,
			)
			return out, nil
		case verdictDefer:
			out.PotentialMatches = append(out.PotentialMatches, rule)
			logger.Debug("rule deferred to tie-breaker", "rule_id", rule.ID)
		default:
			logger.Debug("rule did not match", "rule_id", rule.ID)
		}
	}

	if len(out.PotentialMatches) > 0 {
		out.State = StateDeferred
	} else {
		out.State = StateExhausted
	}
	e.finish(span, out, start)
	return out, nil
}

// evaluateRule applies the condition combinator to one rule.
func (e *Evaluator) evaluateRule(ctx context.Context, rule *rules.Rule, msg *rules.Message, run *RunCache, out *Outcome) (ruleResult, error) {
	declared := rule.ConditionTypes()
	if len(declared) == 0 {
		out.addTrace(rule.ID, "", "skip", "no conditions declared")
		return ruleResult{verdict: verdictSkip}, nil
	}

	anyOf := rule.EffectiveOperator() == rules.OperatorOr
	unmatched := declared.Clone()

	for _, p := range e.predicates {
		kind := p.Kind()
		if !declared.Has(kind) {
			continue
		}

		mo, err := p.Evaluate(ctx, rule, msg, run)
		if err != nil {
			return ruleResult{}, err
		}

		if mo.Matched {
			delete(unmatched, kind)
			if e.resolves(kind, anyOf, unmatched) {
				out.addTrace(rule.ID, kind, "match", mo.Reason)
				return ruleResult{verdict: verdictMatch, outcome: mo, kind: kind}, nil
			}
			out.addTrace(rule.ID, kind, "pass", mo.Reason)
			continue
		}

		if !anyOf {
			out.addTrace(rule.ID, kind, "skip", "AND condition failed")
			return ruleResult{verdict: verdictSkip}, nil
		}
		out.addTrace(rule.ID, kind, "fail", "OR branch failed")
	}

	if declared.Has(rules.ConditionAI) {
		out.addTrace(rule.ID, rules.ConditionAI, "defer", "")
		return ruleResult{verdict: verdictDefer}, nil
	}
	return ruleResult{verdict: verdictSkip}, nil
}

// resolves reports whether a matched kind settles the rule.
func (e *Evaluator) resolves(kind rules.ConditionType, anyOf bool, unmatched rules.ConditionSet) bool {
	if anyOf {
		return true
	}
	if kind == rules.ConditionCategory && e.config.LegacyCategoryShortCircuit {
		return len(unmatched) > 0
	}
	return len(unmatched) == 0
}

func (e *Evaluator) finish(span trace.Span, out *Outcome, start time.Time) {
	out.EvaluationTime = time.Since(start)
	span.SetAttributes(
		attribute.String("mailrules.state", string(out.State)),
		attribute.Int("mailrules.rules_scanned", out.RulesScanned),
		attribute.Int("mailrules.potential_matches", len(out.PotentialMatches)),
	)
	if out.Match != nil {
		span.SetAttributes(attribute.String("mailrules.rule_id", out.Match.ID))
	}
	if e.recorder != nil {
		e.recorder.RecordEvaluation(string(out.State), out.RulesScanned, out.EvaluationTime)
	}
}

func (o *Outcome) addTrace(ruleID string, kind rules.ConditionType, result, detail string) {
	if o.Trace == nil {
		return
	}
	o.Trace = append(o.Trace, &TraceStep{
		RuleID: ruleID,
		Kind:   kind,
		Result: result,
		Detail: detail,
	})
}

func resolveUserID(in Input) string {
	if in.UserID != "" {
		return in.UserID
	}
	for _, r := range in.Rules {
		if r != nil && r.UserID != "" {
			return r.UserID
		}
	}
	return ""
}
