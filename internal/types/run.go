package types

import "time"

// SweepCategory names one obligation category swept by a run.
type SweepCategory string

const (
	CategoryTaskEscalations        SweepCategory = "task_escalations"
	CategoryTaskDueDates           SweepCategory = "task_due_dates"
	CategoryApprovals              SweepCategory = "approvals"
	CategoryPolicyAcknowledgements SweepCategory = "policy_acknowledgements"
)

// SweepResult aggregates one sweep: candidates checked, notifications sent and
// per-item error entries.
type SweepResult struct {
	Checked int      `json:"checked"`
	Sent    int      `json:"sent"`
	Errors  []string `json:"errors,omitempty"`
}

// EscalationRunResult is produced by every coordinator invocation, including
// rejected ones.
type EscalationRunResult struct {
	RunID      string    `json:"run_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	DurationMs int64     `json:"duration_ms"`

	TasksProcessed                         int `json:"tasks_processed"`
	TaskNotificationsSent                  int `json:"task_notifications_sent"`
	TaskDueDateRemindersSent               int `json:"task_due_date_reminders_sent"`
	ApprovalsProcessed                     int `json:"approvals_processed"`
	ApprovalNotificationsSent              int `json:"approval_notifications_sent"`
	PolicyAcknowledgementsProcessed        int `json:"policy_acknowledgements_processed"`
	PolicyAcknowledgementNotificationsSent int `json:"policy_acknowledgement_notifications_sent"`

	Categories map[SweepCategory]SweepResult `json:"categories,omitempty"`

	Errors  []string `json:"errors"`
	Success bool     `json:"success"`
}

// TotalSent sums notifications sent across all categories.
func (r *EscalationRunResult) TotalSent() int {
	return r.TaskNotificationsSent + r.TaskDueDateRemindersSent +
		r.ApprovalNotificationsSent + r.PolicyAcknowledgementNotificationsSent
}
