package db

import (
	"context"
	"encoding/json"

	"policyportal/internal/types"
)

// AuditRepository appends notification_audit and escalation_runs rows. Both
// are observability records; callers treat write failures as non-fatal.
type AuditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// AppendNotification writes one dispatch attempt. The run ID is taken from ctx
// when present.
func (r *AuditRepository) AppendNotification(ctx context.Context, rec *types.NotificationAuditRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_audit
		 (run_id, recipient_id, notification_type, related_subject_id, channel,
		  status, provider_message_id, secondary_status, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		nilIfEmpty(types.GetRunID(ctx)),
		rec.RecipientID,
		string(rec.NotificationType),
		rec.RelatedSubjectID,
		string(rec.Channel),
		rec.Status,
		nilIfEmpty(rec.ProviderMsgID),
		nilIfEmpty(rec.SecondaryStatus),
		nilIfEmpty(rec.Error),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append notification audit", err)
	}
	return nil
}

// runCounts is the JSONB shape stored in escalation_runs.counts.
type runCounts struct {
	TasksProcessed                         int                                       `json:"tasks_processed"`
	TaskNotificationsSent                  int                                       `json:"task_notifications_sent"`
	TaskDueDateRemindersSent               int                                       `json:"task_due_date_reminders_sent"`
	ApprovalsProcessed                     int                                       `json:"approvals_processed"`
	ApprovalNotificationsSent              int                                       `json:"approval_notifications_sent"`
	PolicyAcknowledgementsProcessed        int                                       `json:"policy_acknowledgements_processed"`
	PolicyAcknowledgementNotificationsSent int                                       `json:"policy_acknowledgement_notifications_sent"`
	Categories                             map[types.SweepCategory]types.SweepResult `json:"categories,omitempty"`
}

// RecordRun writes the run summary. Re-recording the same run ID is a no-op.
func (r *AuditRepository) RecordRun(ctx context.Context, res *types.EscalationRunResult) error {
	counts, err := json.Marshal(runCounts{
		TasksProcessed:                         res.TasksProcessed,
		TaskNotificationsSent:                  res.TaskNotificationsSent,
		TaskDueDateRemindersSent:               res.TaskDueDateRemindersSent,
		ApprovalsProcessed:                     res.ApprovalsProcessed,
		ApprovalNotificationsSent:              res.ApprovalNotificationsSent,
		PolicyAcknowledgementsProcessed:        res.PolicyAcknowledgementsProcessed,
		PolicyAcknowledgementNotificationsSent: res.PolicyAcknowledgementNotificationsSent,
		Categories:                             res.Categories,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode run counts", err)
	}
	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode run errors", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO escalation_runs
		 (run_id, started_at, finished_at, duration_ms, success, counts, errors)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (run_id) DO NOTHING`,
		res.RunID,
		res.StartTime.UTC(),
		res.EndTime.UTC(),
		res.DurationMs,
		res.Success,
		counts,
		errJSON,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record escalation run", err)
	}
	return nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
