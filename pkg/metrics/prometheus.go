package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	opportunities *prometheus.CounterVec
	profit        *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	queueDepth    prometheus.Gauge
	endpointLat   *prometheus.GaugeVec
	endpointConns *prometheus.GaugeVec
	endpointBack  *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		opportunities: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainwatch_opportunities_total",
				Help: "Total number of opportunities detected",
			},
			[]string{"category"},
		),
		profit: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainwatch_profit_total",
				Help: "Cumulative realized profit per category",
			},
			[]string{"category"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainwatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chainwatch_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chainwatch_opportunity_queue_depth",
				Help: "Current depth of the opportunity queue",
			},
		),
		endpointLat: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chainwatch_endpoint_latency_seconds",
				Help: "Last probe round-trip per endpoint",
			},
			[]string{"endpoint"},
		),
		endpointConns: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chainwatch_endpoint_connections",
				Help: "Peer connections reported by the endpoint",
			},
			[]string{"endpoint"},
		),
		endpointBack: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chainwatch_endpoint_backlog_size",
				Help: "Pending backlog size reported by the endpoint",
			},
			[]string{"endpoint"},
		),
	}
}

// RecordOpportunity counts one detected opportunity.
func (r *Recorder) RecordOpportunity(category string) {
	r.opportunities.WithLabelValues(category).Inc()
}

// RecordProfit adds realized profit for a category.
func (r *Recorder) RecordProfit(category string, profit float64) {
	if profit > 0 {
		r.profit.WithLabelValues(category).Add(profit)
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetQueueDepth records the current opportunity queue depth.
func (r *Recorder) SetQueueDepth(n int) {
	r.queueDepth.Set(float64(n))
}

// SetEndpointHealth records the latest probe result for an endpoint.
func (r *Recorder) SetEndpointHealth(id string, latencySeconds float64, connections, backlog int) {
	r.endpointLat.WithLabelValues(id).Set(latencySeconds)
	r.endpointConns.WithLabelValues(id).Set(float64(connections))
	r.endpointBack.WithLabelValues(id).Set(float64(backlog))
}
