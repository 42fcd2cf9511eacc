package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"policyportal/internal/notifications/core"
	"policyportal/internal/types"
)

// PrometheusMetrics owns its registry so several instances can coexist in
// tests.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	deliveries      *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	remindersSent   *prometheus.CounterVec
	sweepErrors     *prometheus.CounterVec
	rejected        prometheus.Counter
	lastRun         prometheus.Gauge
}

func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyportal_notification_deliveries_total",
			Help: "Notification deliveries by channel and result",
		}, []string{"channel", "result"}),
		deliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "policyportal_notification_delivery_duration_seconds",
			Help:    "Duration of channel deliveries",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyportal_escalation_runs_total",
			Help: "Completed escalation runs by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "policyportal_escalation_run_duration_seconds",
			Help:    "Duration of escalation runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		remindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyportal_reminders_sent_total",
			Help: "Reminders sent by sweep category",
		}, []string{"category"}),
		sweepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policyportal_sweep_errors_total",
			Help: "Per-item sweep errors by category",
		}, []string{"category"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "policyportal_escalation_runs_rejected_total",
			Help: "Runs rejected because another run was in progress",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "policyportal_escalation_last_run_timestamp_seconds",
			Help: "End time of the last completed run",
		}),
	}
	m.registry.MustRegister(m.deliveries, m.deliveryLatency, m.runs, m.runDuration,
		m.remindersSent, m.sweepErrors, m.rejected, m.lastRun)
	return m
}

func (m *PrometheusMetrics) RecordDelivery(_ context.Context, channel types.ChannelType, result core.MetricResult) {
	m.deliveries.WithLabelValues(string(channel), string(result)).Inc()
}

func (m *PrometheusMetrics) RecordLatency(_ context.Context, channel types.ChannelType, d time.Duration) {
	m.deliveryLatency.WithLabelValues(string(channel)).Observe(d.Seconds())
}

func (m *PrometheusMetrics) ObserveRun(_ context.Context, res *types.EscalationRunResult) {
	m.runs.WithLabelValues(outcome(res)).Inc()
	m.runDuration.Observe(float64(res.DurationMs) / 1000)
	for cat, sr := range res.Categories {
		m.remindersSent.WithLabelValues(string(cat)).Add(float64(sr.Sent))
		m.sweepErrors.WithLabelValues(string(cat)).Add(float64(len(sr.Errors)))
	}
	if !res.EndTime.IsZero() {
		m.lastRun.Set(float64(res.EndTime.Unix()))
	}
}

func (m *PrometheusMetrics) ObserveRejected(context.Context) {
	m.rejected.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
