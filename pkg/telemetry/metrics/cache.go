package metrics

import (
	"mercator-hq/mailrules/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks cross-run cache effectiveness.
type CacheMetrics struct {
	hitsTotal   *prometheus.CounterVec
	missesTotal *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),
		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(cm.hitsTotal, cm.missesTotal)
	return cm
}

// RecordHit records a cache hit.
func (cm *CacheMetrics) RecordHit(cache string) {
	cm.hitsTotal.WithLabelValues(cache).Inc()
}

// RecordMiss records a cache miss.
func (cm *CacheMetrics) RecordMiss(cache string) {
	cm.missesTotal.WithLabelValues(cache).Inc()
}
