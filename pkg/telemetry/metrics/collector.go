package metrics

import (
	"time"

	"mercator-hq/mailrules/pkg/config"
	"mercator-hq/mailrules/pkg/rules/engine"
	"mercator-hq/mailrules/pkg/rules/store"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ engine.Recorder     = (*Collector)(nil)
	_ store.CacheRecorder = (*Collector)(nil)
)

// Collector owns every Prometheus metric of mailrules. It implements
// engine.Recorder and store.CacheRecorder.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	engineMetrics *EngineMetrics
	cacheMetrics  *CacheMetrics
	batchMetrics  *BatchMetrics
}

// NewCollector creates a collector registered on registry. If registry is
// nil a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true, Namespace: "mailrules"}
//	collector := metrics.NewCollector(cfg, nil)
//	evaluator, _ := engine.NewEvaluator(nil, logger, engine.WithRecorder(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:        cfg,
		registry:      registry,
		engineMetrics: NewEngineMetrics(cfg, registry),
		cacheMetrics:  NewCacheMetrics(cfg, registry),
		batchMetrics:  NewBatchMetrics(cfg, registry),
	}
}

// RecordEvaluation implements engine.Recorder.
func (c *Collector) RecordEvaluation(state string, rulesScanned int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordEvaluation(state, rulesScanned, duration)
}

// RecordMatch implements engine.Recorder.
func (c *Collector) RecordMatch(kind string) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordMatch(kind)
}

// RecordTieBreak implements engine.Recorder.
func (c *Collector) RecordTieBreak(result string, candidates int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordTieBreak(result, candidates, duration)
}

// RecordCacheHit implements store.CacheRecorder.
func (c *Collector) RecordCacheHit(cache string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordHit(cache)
}

// RecordCacheMiss implements store.CacheRecorder.
func (c *Collector) RecordCacheMiss(cache string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordMiss(cache)
}

// RecordMessage records one message processed by a batch run.
// status is "matched", "no_match" or "error".
func (c *Collector) RecordMessage(status string) {
	if !c.config.Enabled {
		return
	}
	c.batchMetrics.RecordMessage(status)
}

// SetActiveWorkers updates the active batch worker gauge.
func (c *Collector) SetActiveWorkers(n int) {
	if !c.config.Enabled {
		return
	}
	c.batchMetrics.SetActiveWorkers(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
