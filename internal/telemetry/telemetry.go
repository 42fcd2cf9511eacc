// Package telemetry records dispatch and run metrics. CloudWatch suits the
// Lambda trigger; Prometheus suits the long-running worker, which exposes
// Handler at /metrics. Recording never fails the caller.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"policyportal/internal/config"
	"policyportal/internal/notifications/core"
	"policyportal/internal/scheduler"
	"policyportal/internal/types"
)

// Metrics is the full recorder surface wired into the dispatcher and the
// coordinator.
type Metrics interface {
	core.DispatchMetrics
	scheduler.RunObserver
	// Handler serves the scrape endpoint, or nil for push backends.
	Handler() http.Handler
}

// New selects the backend named by cfg.MetricsBackend. cw is only used for
// the cloudwatch backend.
func New(cfg config.ObservabilityConfig, cw CloudWatchClient, logger types.Logger) (Metrics, error) {
	switch cfg.MetricsBackend {
	case "cloudwatch":
		if cw == nil {
			return nil, fmt.Errorf("telemetry: cloudwatch backend requires a client")
		}
		return NewCloudWatchMetrics(cw, cfg.MetricNamespace, logger), nil
	case "prometheus":
		return NewPrometheusMetrics(), nil
	case "none", "":
		return Noop{}, nil
	}
	return nil, fmt.Errorf("telemetry: unknown metrics backend %q", cfg.MetricsBackend)
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordDelivery(context.Context, types.ChannelType, core.MetricResult) {}
func (Noop) RecordLatency(context.Context, types.ChannelType, time.Duration)      {}
func (Noop) ObserveRun(context.Context, *types.EscalationRunResult)               {}
func (Noop) ObserveRejected(context.Context)                                      {}
func (Noop) Handler() http.Handler                                                { return nil }

func outcome(res *types.EscalationRunResult) string {
	if res.Success {
		return "success"
	}
	return "failed"
}

var (
	_ Metrics = Noop{}
	_ Metrics = (*CloudWatchMetrics)(nil)
	_ Metrics = (*PrometheusMetrics)(nil)
)
