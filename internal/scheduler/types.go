// Package scheduler implements the escalation engine: threshold evaluation,
// per-category reminder sweeps, the run coordinator with its reentrancy
// guard, and the periodic driver that invokes it.
package scheduler

import (
	"context"
	"errors"
	"time"

	"policyportal/internal/types"
)

// ErrAlreadyRunning is the error recorded on a rejected run.
var ErrAlreadyRunning = errors.New("already running")

// Rejected reports whether res was turned away by the reentrancy guard.
func Rejected(res *types.EscalationRunResult) bool {
	return res != nil && res.Categories == nil &&
		len(res.Errors) == 1 && res.Errors[0] == ErrAlreadyRunning.Error()
}

// ScheduleStore is the subset of the reminder schedule repository a sweep uses.
type ScheduleStore interface {
	ListPending(ctx context.Context, f types.PendingFilter) ([]*types.ReminderSchedule, error)
	MarkSent(ctx context.Context, id string, stage types.Stage, sentOn time.Time) error
	Delete(ctx context.Context, id string) error
}

// ObligationSource loads the obligation a schedule points at. A missing
// obligation is reported with types.ErrCodeNotFoundObligation.
type ObligationSource interface {
	Get(ctx context.Context, subjectType types.SubjectType, id string) (*types.Obligation, error)
}

// Dispatcher sends one notification intent. An error means the primary
// channel did not accept it.
type Dispatcher interface {
	Send(ctx context.Context, intent *types.NotificationIntent) (*types.DispatchOutcome, error)
}

// RunRecorder persists the run summary. Failures are logged only.
type RunRecorder interface {
	RecordRun(ctx context.Context, res *types.EscalationRunResult) error
}

// RunObserver receives run outcomes for metrics.
type RunObserver interface {
	ObserveRun(ctx context.Context, res *types.EscalationRunResult)
	ObserveRejected(ctx context.Context)
}

// TriggerPayload is the JSON sent by EventBridge to the escalation trigger:
//
//	{
//	  "reference_time": "2026-03-09T08:00:00Z",  // optional
//	  "categories": ["approvals"]                 // optional, default all enabled
//	}
type TriggerPayload struct {
	ReferenceTime *time.Time            `json:"reference_time,omitempty"`
	Categories    []types.SweepCategory `json:"categories,omitempty"`
}

// Apply narrows cfg to the payload. Categories not listed are disabled;
// listed categories keep their configured toggle.
func (p TriggerPayload) Apply(cfg RunConfig) RunConfig {
	if p.ReferenceTime != nil {
		cfg.Now = p.ReferenceTime.UTC()
	}
	if len(p.Categories) == 0 {
		return cfg
	}
	want := make(map[types.SweepCategory]bool, len(p.Categories))
	for _, c := range p.Categories {
		want[c] = true
	}
	cfg.ProcessTaskEscalations = cfg.ProcessTaskEscalations && want[types.CategoryTaskEscalations]
	cfg.ProcessTaskDueDateReminders = cfg.ProcessTaskDueDateReminders && want[types.CategoryTaskDueDates]
	cfg.ProcessApprovalReminders = cfg.ProcessApprovalReminders && want[types.CategoryApprovals]
	cfg.ProcessPolicyAcknowledgements = cfg.ProcessPolicyAcknowledgements && want[types.CategoryPolicyAcknowledgements]
	return cfg
}
