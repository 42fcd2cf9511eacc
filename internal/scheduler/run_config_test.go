package scheduler

import (
	"testing"
	"time"

	"policyportal/internal/config"
	"policyportal/internal/types"
)

func TestRunConfig_Categories(t *testing.T) {
	cfg := DefaultRunConfig()
	specs := cfg.Categories()

	want := []types.SweepCategory{
		types.CategoryTaskEscalations,
		types.CategoryTaskDueDates,
		types.CategoryApprovals,
		types.CategoryPolicyAcknowledgements,
	}
	if len(specs) != len(want) {
		t.Fatalf("got %d categories, want %d", len(specs), len(want))
	}
	for i, w := range want {
		if specs[i].Category != w {
			t.Errorf("specs[%d] = %s, want %s", i, specs[i].Category, w)
		}
	}

	if specs[0].Limit != 500 || specs[2].Limit != 200 {
		t.Errorf("limits = %d/%d, want 500/200", specs[0].Limit, specs[2].Limit)
	}
	if specs[1].Horizon != 24*time.Hour || !specs[1].FutureOnly {
		t.Errorf("due-date spec = %+v, want 24h future-only horizon", specs[1])
	}

	cfg.ProcessApprovalReminders = false
	cfg.ProcessTaskDueDateReminders = false
	if got := len(cfg.Categories()); got != 2 {
		t.Errorf("with two toggles off got %d categories, want 2", got)
	}
}

func TestCategorySpec_Filter(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	specs := DefaultRunConfig().Categories()

	today := calendarDay(now, time.UTC)

	esc := specs[0].filter(now, today)
	if !esc.DueBefore.Equal(now.Add(-24*time.Hour)) || !esc.DueAfter.IsZero() {
		t.Errorf("escalation filter = %+v", esc)
	}
	due := specs[1].filter(now, today)
	if !due.DueAfter.Equal(now) || !due.DueBefore.Equal(now.Add(24*time.Hour)) {
		t.Errorf("due-date filter = %+v", due)
	}
	if due.SubjectType != types.SubjectTaskAssignment {
		t.Errorf("due-date subject = %s", due.SubjectType)
	}
	if !due.NotRemindedOn.Equal(today) {
		t.Errorf("NotRemindedOn = %v, want %v", due.NotRemindedOn, today)
	}
	if len(esc.Windows) != 1 || esc.Windows[0].Stage != types.StageOverdue || !esc.Windows[0].DueBefore.Equal(now.Add(-24*time.Hour)) {
		t.Errorf("escalation windows = %+v", esc.Windows)
	}
}

func TestRunConfig_DueDateStagesFollowHorizon(t *testing.T) {
	cfg := DefaultRunConfig()
	dueDates := cfg.Categories()[1]
	if len(dueDates.Stages) != 1 || dueDates.Stages[0] != types.StageOneDay {
		t.Errorf("24h horizon stages = %v, want one_day only", dueDates.Stages)
	}

	cfg.DueDateReminderHours = 72
	dueDates = cfg.Categories()[1]
	if len(dueDates.Stages) != 2 || dueDates.Stages[0] != types.StageThreeDay {
		t.Errorf("72h horizon stages = %v, want three_day and one_day", dueDates.Stages)
	}
}

func TestRunConfigFromEnv(t *testing.T) {
	got := RunConfigFromEnv(config.EscalationConfig{
		ProcessTaskEscalations: true,
		DueDateReminderHours:   48,
		MaxTasksPerRun:         10,
		MaxApprovalsPerRun:     5,
		MaxPolicyAcksPerRun:    7,
	})
	if !got.ProcessTaskEscalations || got.ProcessApprovalReminders {
		t.Errorf("toggles not copied: %+v", got)
	}
	if got.DueDateReminderHours != 48 || got.MaxPolicyAcksPerRun != 7 {
		t.Errorf("limits not copied: %+v", got)
	}
}

func TestTriggerPayload_Apply(t *testing.T) {
	ref := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	cfg := DefaultRunConfig()

	got := TriggerPayload{ReferenceTime: &ref, Categories: []types.SweepCategory{types.CategoryApprovals}}.Apply(cfg)
	if !got.Now.Equal(ref) {
		t.Errorf("Now = %v, want %v", got.Now, ref)
	}
	if !got.ProcessApprovalReminders || got.ProcessTaskEscalations || got.ProcessTaskDueDateReminders || got.ProcessPolicyAcknowledgements {
		t.Errorf("only approvals should remain enabled: %+v", got)
	}

	cfg.ProcessApprovalReminders = false
	got = TriggerPayload{Categories: []types.SweepCategory{types.CategoryApprovals}}.Apply(cfg)
	if got.ProcessApprovalReminders {
		t.Error("payload must not enable a category disabled in config")
	}

	if got := (TriggerPayload{}).Apply(DefaultRunConfig()); len(got.Categories()) != 4 || !got.Now.IsZero() {
		t.Errorf("empty payload should not change config: %+v", got)
	}
}
