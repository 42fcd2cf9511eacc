package core

import (
	"context"
	"fmt"
	"strings"

	"policyportal/internal/types"
)

// DispatcherConfig holds the Dispatcher dependencies. Secondary, Audit and
// Metrics are optional.
type DispatcherConfig struct {
	Primary    types.NotificationChannel
	Secondary  types.NotificationChannel
	Recipients RecipientDirectory
	Audit      AuditWriter
	Metrics    DispatchMetrics
	Clock      types.Clock
	Logger     types.Logger
}

// Dispatcher implements scheduler.Dispatcher.
type Dispatcher struct {
	primary    types.NotificationChannel
	secondary  types.NotificationChannel
	recipients RecipientDirectory
	audit      AuditWriter
	metrics    DispatchMetrics
	clock      types.Clock
	logger     types.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		primary:    cfg.Primary,
		secondary:  cfg.Secondary,
		recipients: cfg.Recipients,
		audit:      cfg.Audit,
		metrics:    cfg.Metrics,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	if d.metrics == nil {
		d.metrics = noopMetrics{}
	}
	if d.clock == nil {
		d.clock = types.RealClock{}
	}
	if d.logger == nil {
		d.logger = types.NewLogger(nil)
	}
	return d
}

// Send delivers intent through the primary channel and, when requested and
// configured, mirrors it to the secondary channel. The returned error is
// non-nil only when the primary delivery did not happen.
func (d *Dispatcher) Send(ctx context.Context, intent *types.NotificationIntent) (*types.DispatchOutcome, error) {
	if intent == nil {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "notification intent is nil", nil)
	}
	if strings.TrimSpace(intent.RecipientID) == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "recipient id is required", nil)
	}

	// Channels see a copy with resolved contact details and rendered content.
	out := *intent
	log := d.logger.With(
		"recipient_id", out.RecipientID,
		"notification_type", string(out.NotificationType),
		"related_subject_id", out.RelatedSubjectID,
	)

	outcome := &types.DispatchOutcome{SecondaryStatus: statusSkipped}
	if d.primary != nil {
		outcome.Channel = d.primary.Type()
	}

	if err := d.prepare(ctx, &out); err != nil {
		d.record(ctx, log, &out, outcome, err)
		return nil, err
	}

	if out.SendPrimary {
		if d.primary == nil {
			err := types.NewAppError(types.ErrCodeInternalUnexpected, "no primary channel configured", nil)
			d.record(ctx, log, &out, outcome, err)
			return nil, err
		}
		res, err := d.deliver(ctx, d.primary, &out)
		if err != nil {
			err = fmt.Errorf("primary %s delivery: %w", d.primary.Type(), err)
			d.record(ctx, log, &out, outcome, err)
			return nil, err
		}
		outcome.ProviderMessageID = res.ProviderMessageID
	}

	if out.SendSecondary && d.secondary != nil {
		if _, err := d.deliver(ctx, d.secondary, &out); err != nil {
			outcome.SecondaryStatus = statusFailed
			log.Warn("secondary delivery failed",
				"channel", string(d.secondary.Type()),
				"error", err.Error(),
			)
		} else {
			outcome.SecondaryStatus = statusSent
		}
	}

	d.record(ctx, log, &out, outcome, nil)
	log.Info("notification dispatched",
		"channel", string(outcome.Channel),
		"provider_message_id", outcome.ProviderMessageID,
		"secondary_status", outcome.SecondaryStatus,
	)
	return outcome, nil
}

// prepare resolves the recipient and renders the content.
func (d *Dispatcher) prepare(ctx context.Context, intent *types.NotificationIntent) error {
	if intent.Recipient == nil {
		if d.recipients == nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "no recipient directory configured", nil)
		}
		r, err := d.recipients.GetByID(ctx, intent.RecipientID)
		if err != nil {
			return fmt.Errorf("resolving recipient: %w", err)
		}
		intent.Recipient = r
	}

	rendered, err := Render(intent)
	if err != nil {
		return err
	}
	intent.Subject = rendered.Subject
	intent.Body = rendered.Body
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, ch types.NotificationChannel, intent *types.NotificationIntent) (*types.DeliveryResult, error) {
	start := d.clock.Now()
	res, err := ch.Deliver(ctx, intent)
	d.metrics.RecordLatency(ctx, ch.Type(), d.clock.Now().Sub(start))
	if err != nil {
		d.metrics.RecordDelivery(ctx, ch.Type(), MetricFailure)
		return nil, err
	}
	d.metrics.RecordDelivery(ctx, ch.Type(), MetricSuccess)
	if res == nil {
		res = &types.DeliveryResult{Status: statusSent}
	}
	return res, nil
}

// record writes the audit entry. A failed write is logged only.
func (d *Dispatcher) record(ctx context.Context, log types.Logger, intent *types.NotificationIntent, outcome *types.DispatchOutcome, sendErr error) {
	if d.audit == nil {
		return
	}
	rec := &types.NotificationAuditRecord{
		RecipientID:      intent.RecipientID,
		NotificationType: intent.NotificationType,
		RelatedSubjectID: intent.RelatedSubjectID,
		Channel:          outcome.Channel,
		Status:           statusSent,
		ProviderMsgID:    outcome.ProviderMessageID,
		SecondaryStatus:  outcome.SecondaryStatus,
	}
	if sendErr != nil {
		rec.Status = statusFailed
		rec.Error = sendErr.Error()
	}
	if err := d.audit.AppendNotification(ctx, rec); err != nil {
		log.Warn("failed to write notification audit", "error", err.Error())
	}
}
