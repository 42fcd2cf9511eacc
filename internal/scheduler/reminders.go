package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"policyportal/internal/types"
)

// ReminderStore is the write side of the reminder schedule repository.
type ReminderStore interface {
	Upsert(ctx context.Context, subjectType types.SubjectType, subjectID string, dueDate time.Time) (*types.ReminderSchedule, error)
	Find(ctx context.Context, subjectType types.SubjectType, subjectID string) (*types.ReminderSchedule, error)
	Delete(ctx context.Context, id string) error
}

// ReminderScheduler is how the portal registers and cancels reminders when
// obligations are assigned, rescheduled or resolved.
type ReminderScheduler struct {
	store  ReminderStore
	logger *slog.Logger
}

func NewReminderScheduler(store ReminderStore, logger *slog.Logger) *ReminderScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderScheduler{store: store, logger: logger}
}

// ScheduleReminders creates or reschedules the reminder cascade for a subject.
// A reschedule clears all sent flags.
func (s *ReminderScheduler) ScheduleReminders(ctx context.Context, subjectType types.SubjectType, subjectID string, dueDate time.Time) (*types.ReminderSchedule, error) {
	if err := validateSubject(subjectType, subjectID); err != nil {
		return nil, err
	}
	if dueDate.IsZero() {
		return nil, types.NewAppError(types.ErrCodeValidationDueDate, "due date is required", nil)
	}

	rec, err := s.store.Upsert(ctx, subjectType, subjectID, dueDate)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "reminders scheduled",
		"subject_type", string(subjectType),
		"subject_id", subjectID,
		"due_date", dueDate.UTC().Format(time.RFC3339),
	)
	return rec, nil
}

// GetSchedule returns the schedule or a not_found_reminder_schedule error.
func (s *ReminderScheduler) GetSchedule(ctx context.Context, subjectType types.SubjectType, subjectID string) (*types.ReminderSchedule, error) {
	if err := validateSubject(subjectType, subjectID); err != nil {
		return nil, err
	}
	rec, err := s.store.Find(ctx, subjectType, subjectID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "no reminders scheduled for subject", nil)
	}
	return rec, nil
}

// CancelReminders deletes the schedule when an obligation resolves outside a
// sweep.
func (s *ReminderScheduler) CancelReminders(ctx context.Context, subjectType types.SubjectType, subjectID string) error {
	rec, err := s.GetSchedule(ctx, subjectType, subjectID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, rec.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "reminders cancelled",
		"subject_type", string(subjectType),
		"subject_id", subjectID,
	)
	return nil
}

func validateSubject(subjectType types.SubjectType, subjectID string) error {
	if !subjectType.Valid() {
		return types.NewAppError(types.ErrCodeValidationSubjectType, "unknown subject type "+string(subjectType), nil)
	}
	if strings.TrimSpace(subjectID) == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "subject id is required", nil)
	}
	return nil
}
