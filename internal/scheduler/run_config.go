package scheduler

import (
	"time"

	"policyportal/internal/config"
	"policyportal/internal/types"
)

// reminderWindow is the earliest point the three-day stage can fire.
const reminderWindow = 3 * day

// overdueAfter is how long past due a schedule must be before DaysToDue
// drops below zero.
const overdueAfter = day

// RunConfig are the options for one coordinator run.
type RunConfig struct {
	ProcessTaskEscalations        bool
	ProcessApprovalReminders      bool
	ProcessTaskDueDateReminders   bool
	ProcessPolicyAcknowledgements bool

	DueDateReminderHours int
	MaxTasksPerRun       int
	MaxApprovalsPerRun   int
	MaxPolicyAcksPerRun  int

	// Now overrides the coordinator clock when non-zero.
	Now time.Time
}

// DefaultRunConfig enables every category with the stock limits.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		ProcessTaskEscalations:        true,
		ProcessApprovalReminders:      true,
		ProcessTaskDueDateReminders:   true,
		ProcessPolicyAcknowledgements: true,
		DueDateReminderHours:          24,
		MaxTasksPerRun:                500,
		MaxApprovalsPerRun:            200,
		MaxPolicyAcksPerRun:           500,
	}
}

// RunConfigFromEnv builds a RunConfig from loaded configuration.
func RunConfigFromEnv(c config.EscalationConfig) RunConfig {
	return RunConfig{
		ProcessTaskEscalations:        c.ProcessTaskEscalations,
		ProcessApprovalReminders:      c.ProcessApprovalReminders,
		ProcessTaskDueDateReminders:   c.ProcessTaskDueDateReminders,
		ProcessPolicyAcknowledgements: c.ProcessPolicyAcknowledgements,
		DueDateReminderHours:          c.DueDateReminderHours,
		MaxTasksPerRun:                c.MaxTasksPerRun,
		MaxApprovalsPerRun:            c.MaxApprovalsPerRun,
		MaxPolicyAcksPerRun:           c.MaxPolicyAcksPerRun,
	}
}

// CategorySpec tells a sweep what to fetch and which stages it may send.
type CategorySpec struct {
	Category    types.SweepCategory
	SubjectType types.SubjectType
	Stages      []types.Stage
	// Horizon bounds the fetch to due dates up to now+Horizon.
	Horizon time.Duration
	// FutureOnly excludes schedules already past due.
	FutureOnly bool
	Limit      int
}

func (s CategorySpec) allows(stage types.Stage) bool {
	for _, st := range s.Stages {
		if st == stage {
			return true
		}
	}
	return false
}

// filter builds the listing for a sweep at now. today is the calendar day
// used for the once-per-day rule.
func (s CategorySpec) filter(now, today time.Time) types.PendingFilter {
	f := types.PendingFilter{
		SubjectType:   s.SubjectType,
		DueBefore:     now.Add(s.Horizon),
		Stages:        s.Stages,
		Windows:       make([]types.StageWindow, 0, len(s.Stages)),
		NotRemindedOn: today,
		Limit:         s.Limit,
	}
	if s.FutureOnly {
		f.DueAfter = now
	}
	for _, st := range s.Stages {
		f.Windows = append(f.Windows, stageWindow(st, now))
	}
	return f
}

// stageWindow is the due-date range over which Evaluate returns st at now.
func stageWindow(st types.Stage, now time.Time) types.StageWindow {
	w := types.StageWindow{Stage: st}
	switch st {
	case types.StageThreeDay:
		w.DueAfter, w.DueBefore = now.Add(day), now.Add(reminderWindow)
	case types.StageOneDay:
		w.DueAfter, w.DueBefore = now, now.Add(day)
	case types.StageOverdue:
		w.DueBefore = now.Add(-overdueAfter)
	}
	return w
}

// dueDateStages drops the three-day stage when the fetch horizon cannot
// reach its window.
func dueDateStages(horizon time.Duration) []types.Stage {
	if horizon > day {
		return []types.Stage{types.StageThreeDay, types.StageOneDay}
	}
	return []types.Stage{types.StageOneDay}
}

// Categories returns the enabled sweeps in execution order.
func (c RunConfig) Categories() []CategorySpec {
	var specs []CategorySpec
	if c.ProcessTaskEscalations {
		specs = append(specs, CategorySpec{
			Category:    types.CategoryTaskEscalations,
			SubjectType: types.SubjectTaskAssignment,
			Stages:      []types.Stage{types.StageOverdue},
			Horizon:     -overdueAfter,
			Limit:       c.MaxTasksPerRun,
		})
	}
	if c.ProcessTaskDueDateReminders {
		horizon := time.Duration(c.DueDateReminderHours) * time.Hour
		specs = append(specs, CategorySpec{
			Category:    types.CategoryTaskDueDates,
			SubjectType: types.SubjectTaskAssignment,
			Stages:      dueDateStages(horizon),
			Horizon:     horizon,
			FutureOnly:  true,
			Limit:       c.MaxTasksPerRun,
		})
	}
	if c.ProcessApprovalReminders {
		specs = append(specs, CategorySpec{
			Category:    types.CategoryApprovals,
			SubjectType: types.SubjectApproval,
			Stages:      types.ReminderStages,
			Horizon:     reminderWindow,
			Limit:       c.MaxApprovalsPerRun,
		})
	}
	if c.ProcessPolicyAcknowledgements {
		specs = append(specs, CategorySpec{
			Category:    types.CategoryPolicyAcknowledgements,
			SubjectType: types.SubjectPolicyAcknowledgement,
			Stages:      types.ReminderStages,
			Horizon:     reminderWindow,
			Limit:       c.MaxPolicyAcksPerRun,
		})
	}
	return specs
}
