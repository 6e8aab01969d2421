package metrics

import (
	"time"

	"mercator-hq/mailrules/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks rule evaluation.
//
// Metrics:
//   - mailrules_engine_evaluations_total: deterministic passes by terminal state
//   - mailrules_engine_evaluation_duration_seconds: pass duration
//   - mailrules_engine_rules_scanned: rules examined per pass
//   - mailrules_engine_matches_total: definitive matches by condition kind
//   - mailrules_engine_tiebreaks_total: tie-breaker calls by result
//   - mailrules_engine_tiebreak_duration_seconds: tie-breaker latency
//   - mailrules_engine_tiebreak_candidates: candidates per tie-breaker call
type EngineMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	rulesScanned       prometheus.Histogram
	matchesTotal       *prometheus.CounterVec
	tieBreaksTotal     *prometheus.CounterVec
	tieBreakDuration   prometheus.Histogram
	tieBreakCandidates prometheus.Histogram
}

// NewEngineMetrics creates and registers engine metrics with the provided registry.
func NewEngineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "evaluations_total",
				Help:      "Total number of deterministic evaluation passes",
			},
			[]string{"state"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a deterministic evaluation pass in seconds",
				// Store round-trips dominate; in-memory passes finish in microseconds
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to 2.6s
			},
			[]string{"state"},
		),

		rulesScanned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "rules_scanned",
				Help:      "Number of rules examined per evaluation pass",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
		),

		matchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "matches_total",
				Help:      "Total number of definitive matches by condition kind",
			},
			[]string{"kind"},
		),

		tieBreaksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "tiebreaks_total",
				Help:      "Total number of tie-breaker calls by result",
			},
			[]string{"result"},
		),

		tieBreakDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "tiebreak_duration_seconds",
				Help:      "Duration of tie-breaker calls in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
		),

		tieBreakCandidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "engine",
				Name:      "tiebreak_candidates",
				Help:      "Number of candidate rules passed to the tie-breaker",
				Buckets:   []float64{1, 2, 3, 5, 10, 20},
			},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.rulesScanned,
		em.matchesTotal,
		em.tieBreaksTotal,
		em.tieBreakDuration,
		em.tieBreakCandidates,
	)

	return em
}

// RecordEvaluation records one deterministic pass.
func (em *EngineMetrics) RecordEvaluation(state string, rulesScanned int, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(state).Inc()
	em.evaluationDuration.WithLabelValues(state).Observe(duration.Seconds())
	em.rulesScanned.Observe(float64(rulesScanned))
}

// RecordMatch records a definitive match of the given condition kind.
func (em *EngineMetrics) RecordMatch(kind string) {
	em.matchesTotal.WithLabelValues(kind).Inc()
}

// RecordTieBreak records a tie-breaker call.
func (em *EngineMetrics) RecordTieBreak(result string, candidates int, duration time.Duration) {
	em.tieBreaksTotal.WithLabelValues(result).Inc()
	em.tieBreakDuration.Observe(duration.Seconds())
	em.tieBreakCandidates.Observe(float64(candidates))
}
