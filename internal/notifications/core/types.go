// Package core turns notification intents into deliveries. The Dispatcher
// resolves the recipient, renders the closed template set, sends through the
// primary channel and optionally mirrors to a secondary channel. Secondary
// delivery, audit writes and metrics are advisory: their failures are logged
// and never change the outcome of a send.
package core

import (
	"context"
	"time"

	"policyportal/internal/types"
)

// RecipientDirectory resolves a recipient ID to contact details.
// *db.RecipientRepository implements it.
type RecipientDirectory interface {
	GetByID(ctx context.Context, id string) (*types.Recipient, error)
}

// AuditWriter appends dispatch audit records. *db.AuditRepository implements it.
type AuditWriter interface {
	AppendNotification(ctx context.Context, rec *types.NotificationAuditRecord) error
}

// MetricResult is the outcome dimension of a delivery metric.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailure MetricResult = "failure"
)

// DispatchMetrics receives per-channel delivery outcomes. Implementations
// must not block and must swallow their own errors.
type DispatchMetrics interface {
	RecordDelivery(ctx context.Context, channel types.ChannelType, result MetricResult)
	RecordLatency(ctx context.Context, channel types.ChannelType, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordDelivery(context.Context, types.ChannelType, MetricResult) {}
func (noopMetrics) RecordLatency(context.Context, types.ChannelType, time.Duration) {}

const (
	statusSent    = "sent"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)
