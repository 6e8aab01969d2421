// Package metrics provides Prometheus metrics for mailrules.
//
// Collector implements engine.Recorder and store.CacheRecorder, so it plugs
// into the evaluator and the category cache directly:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	evaluator, err := engine.NewEvaluator(engineCfg, logger, engine.WithRecorder(collector))
//	cached := store.NewCachedStore(s, cache, logger).WithRecorder(collector)
//
// # Metrics
//
//	mailrules_engine_evaluations_total{state}
//	mailrules_engine_evaluation_duration_seconds{state}
//	mailrules_engine_rules_scanned
//	mailrules_engine_matches_total{kind}
//	mailrules_engine_tiebreaks_total{result}
//	mailrules_engine_tiebreak_duration_seconds
//	mailrules_engine_tiebreak_candidates
//	mailrules_cache_hits_total{cache}
//	mailrules_cache_misses_total{cache}
//	mailrules_batch_messages_total{status}
//	mailrules_batch_active_workers
package metrics
