package metrics

import (
	"mercator-hq/mailrules/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// BatchMetrics tracks batch evaluation runs.
type BatchMetrics struct {
	messagesTotal *prometheus.CounterVec
	activeWorkers prometheus.Gauge
}

// NewBatchMetrics creates and registers batch metrics with the provided registry.
func NewBatchMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BatchMetrics {
	bm := &BatchMetrics{
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "batch",
				Name:      "messages_total",
				Help:      "Total number of messages processed by batch runs",
			},
			[]string{"status"},
		),
		activeWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "batch",
				Name:      "active_workers",
				Help:      "Number of batch workers currently evaluating a message",
			},
		),
	}

	registry.MustRegister(bm.messagesTotal, bm.activeWorkers)
	return bm
}

// RecordMessage records one processed message.
func (bm *BatchMetrics) RecordMessage(status string) {
	bm.messagesTotal.WithLabelValues(status).Inc()
}

// SetActiveWorkers sets the active worker gauge.
func (bm *BatchMetrics) SetActiveWorkers(n int) {
	bm.activeWorkers.Set(float64(n))
}
