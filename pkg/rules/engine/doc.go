// Package engine decides which single rule, if any, governs an inbound
// message.
//
// A rule declares up to four condition kinds joined by one AND/OR operator:
// static header patterns, group membership, sender category, and free-text
// AI instructions. The first three are cheap and deterministic. The AI kind
// needs a language model and is never evaluated here; rules that depend on
// it are deferred to a TieBreaker.
//
// # Evaluation Flow
//
//	Rules (priority order)
//	       ↓
//	For each rule:
//	  skip if thread message and rule does not run on threads
//	  STATIC → GROUP → CATEGORY (declared kinds only)
//	    match:   OR, or nothing left unmatched → Resolved (stop)
//	    no match under AND → next rule
//	  AI declared and not disqualified → add to potential matches
//	       ↓
//	Resolved(rule) | Deferred(candidates) | Exhausted
//
// Decide wraps the deterministic pass and calls the TieBreaker at most once,
// only for Deferred outcomes. A failing tie-breaker means "no rule matched".
//
// # Basic Usage
//
//	eval, err := engine.NewEvaluator(engine.DefaultEngineConfig(), logger)
//	if err != nil {
//	    return err
//	}
//
//	decision, err := eval.Decide(ctx, engine.Input{
//	    UserID:  userID,
//	    Rules:   userRules,
//	    Message: msg,
//	    Store:   store,
//	}, tieBreaker)
//	if err != nil {
//	    return err // store failure, e.g. category lookup
//	}
//	if decision != nil {
//	    log.Info("rule chosen", "rule", decision.Rule.ID, "reason", decision.Reason)
//	}
//
// # Thread Safety
//
// An Evaluator holds no per-run state and may be shared across goroutines.
// Each run gets its own RunCache, so group and category data never leak
// between users or messages.
package engine
