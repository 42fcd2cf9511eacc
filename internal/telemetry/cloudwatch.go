package telemetry

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"policyportal/internal/notifications/core"
	"policyportal/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits:
//   - DeliverySuccess / DeliveryFailed: Dims {Channel}
//   - DeliveryLatency: Dims {Channel}, milliseconds
//   - EscalationRunCompleted: Dims {Outcome}
//   - EscalationRunDuration: milliseconds
//   - RemindersSent / SweepErrors: Dims {Category}
//   - EscalationRunRejected
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = types.NewLogger(nil)
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordDelivery(ctx context.Context, channel types.ChannelType, result core.MetricResult) {
	name := types.MetricDeliverySuccess
	if result != core.MetricSuccess {
		name = types.MetricDeliveryFailed
	}
	m.put(ctx, "delivery", datum(name, 1, cwtypes.StandardUnitCount, types.DimChannel, string(channel)))
}

func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, channel types.ChannelType, d time.Duration) {
	m.put(ctx, "latency", datum("DeliveryLatency", float64(d.Milliseconds()),
		cwtypes.StandardUnitMilliseconds, types.DimChannel, string(channel)))
}

// ObserveRun sends the whole run summary in one PutMetricData call.
func (m *CloudWatchMetrics) ObserveRun(ctx context.Context, res *types.EscalationRunResult) {
	data := []cwtypes.MetricDatum{
		datum(types.MetricRunCompleted, 1, cwtypes.StandardUnitCount, types.DimOutcome, outcome(res)),
		datum(types.MetricRunDuration, float64(res.DurationMs), cwtypes.StandardUnitMilliseconds, "", ""),
	}

	names := make([]string, 0, len(res.Categories))
	for cat := range res.Categories {
		names = append(names, string(cat))
	}
	sort.Strings(names)
	for _, name := range names {
		sr := res.Categories[types.SweepCategory(name)]
		data = append(data, datum(types.MetricRemindersSent, float64(sr.Sent), cwtypes.StandardUnitCount, types.DimCategory, name))
		if len(sr.Errors) > 0 {
			data = append(data, datum(types.MetricSweepErrors, float64(len(sr.Errors)), cwtypes.StandardUnitCount, types.DimCategory, name))
		}
	}

	m.put(ctx, "run", data...)
}

func (m *CloudWatchMetrics) ObserveRejected(ctx context.Context) {
	m.put(ctx, "rejected", datum(types.MetricRunRejected, 1, cwtypes.StandardUnitCount, "", ""))
}

func (m *CloudWatchMetrics) Handler() http.Handler { return nil }

func (m *CloudWatchMetrics) put(ctx context.Context, kind string, data ...cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.Error("failed to record metric", "kind", kind, "error", err.Error())
	}
}

func datum(name string, value float64, unit cwtypes.StandardUnit, dimName, dimValue string) cwtypes.MetricDatum {
	d := cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
	}
	if dimName != "" {
		d.Dimensions = []cwtypes.Dimension{{Name: aws.String(dimName), Value: aws.String(dimValue)}}
	}
	return d
}
