package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"policyportal/internal/types"
)

// ReminderScheduleRepository stores one reminder_schedules row per
// (subject_type, subject_id). It carries no reminder policy.
type ReminderScheduleRepository struct {
	db DBTX
}

func NewReminderScheduleRepository(db DBTX) *ReminderScheduleRepository {
	return &ReminderScheduleRepository{db: db}
}

const scheduleColumns = `id, subject_type, subject_id, due_date,
	reminder_3day_sent, reminder_1day_sent, overdue_sent,
	last_reminder_date, created_at, updated_at`

// stageColumns is the only source of column names interpolated into MarkSent.
var stageColumns = map[types.Stage]string{
	types.StageThreeDay: "reminder_3day_sent",
	types.StageOneDay:   "reminder_1day_sent",
	types.StageOverdue:  "overdue_sent",
}

// Upsert creates the schedule or replaces its due date. Either way all three
// sent flags end up false, restarting the cascade. last_reminder_date is kept
// so a reschedule cannot produce a second reminder on the same day.
func (r *ReminderScheduleRepository) Upsert(ctx context.Context, subjectType types.SubjectType, subjectID string, dueDate time.Time) (*types.ReminderSchedule, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO reminder_schedules (id, subject_type, subject_id, due_date)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (subject_type, subject_id) DO UPDATE
		   SET due_date = EXCLUDED.due_date,
		       reminder_3day_sent = FALSE,
		       reminder_1day_sent = FALSE,
		       overdue_sent = FALSE,
		       updated_at = NOW()
		 RETURNING `+scheduleColumns,
		types.ScheduleID(subjectType, subjectID),
		string(subjectType),
		subjectID,
		dueDate.UTC(),
	)
	s, err := scanSchedule(row)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert reminder schedule", err)
	}
	return s, nil
}

// Find returns the schedule for a subject, or (nil, nil) when none exists.
func (r *ReminderScheduleRepository) Find(ctx context.Context, subjectType types.SubjectType, subjectID string) (*types.ReminderSchedule, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+`
		 FROM reminder_schedules
		 WHERE subject_type = $1 AND subject_id = $2`,
		string(subjectType), subjectID,
	)
	s, err := scanSchedule(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to find reminder schedule", err)
	}
	return s, nil
}

// ListPending returns schedules where at least one flag is still false,
// earliest due date first.
//
// When f.Stages is set, only rows with at least one of those flags unset are
// returned. f.Windows narrows that further to stages whose window contains
// the due date, and f.NotRemindedOn drops rows already reminded that day, so
// rows that cannot send this pass do not take up the limit.
func (r *ReminderScheduleRepository) ListPending(ctx context.Context, f types.PendingFilter) ([]*types.ReminderSchedule, error) {
	var subjectType *string
	if f.SubjectType != "" {
		s := string(f.SubjectType)
		subjectType = &s
	}

	args := []any{subjectType, optionalTime(f.DueBefore), optionalTime(f.DueAfter), f.Limit, optionalTime(f.NotRemindedOn)}
	unsent, args, err := pendingCondition(f, args)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+scheduleColumns+`
		 FROM reminder_schedules
		 WHERE `+unsent+`
		   AND ($1::text IS NULL OR subject_type = $1)
		   AND ($2::timestamptz IS NULL OR due_date <= $2)
		   AND ($3::timestamptz IS NULL OR due_date > $3)
		   AND ($5::date IS NULL OR last_reminder_date IS NULL OR last_reminder_date <> $5::date)
		 ORDER BY due_date ASC, id ASC
		 LIMIT $4`,
		args...,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list pending reminder schedules", err)
	}
	defer rows.Close()

	var out []*types.ReminderSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reminder schedule", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate reminder schedules", err)
	}
	return out, nil
}

// MarkSent sets exactly one stage flag and last_reminder_date. The update
// touches only those columns so evaluators working different stages of the
// same row do not overwrite each other.
func (r *ReminderScheduleRepository) MarkSent(ctx context.Context, id string, stage types.Stage, sentOn time.Time) error {
	col, ok := stageColumns[stage]
	if !ok {
		return types.NewAppError(types.ErrCodeValidationStage, "cannot mark stage "+string(stage)+" as sent", nil)
	}
	day := time.Date(sentOn.Year(), sentOn.Month(), sentOn.Day(), 0, 0, 0, 0, time.UTC)

	tag, err := r.db.Exec(ctx,
		`UPDATE reminder_schedules
		 SET `+col+` = TRUE, last_reminder_date = $2, updated_at = NOW()
		 WHERE id = $1`,
		id, day,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark reminder sent", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "reminder schedule not found", nil)
	}
	return nil
}

// Delete removes a schedule. Deleting a missing row is not an error.
func (r *ReminderScheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM reminder_schedules WHERE id = $1`, id); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete reminder schedule", err)
	}
	return nil
}

// pendingCondition picks the flag condition for f, appending window bounds to
// args as numbered parameters.
func pendingCondition(f types.PendingFilter, args []any) (string, []any, error) {
	if len(f.Windows) == 0 {
		cond, err := unsentCondition(f.Stages)
		return cond, args, err
	}
	windows := make([]string, 0, len(f.Windows))
	for _, w := range f.Windows {
		col, ok := stageColumns[w.Stage]
		if !ok {
			return "", nil, types.NewAppError(types.ErrCodeValidationStage, "unknown stage "+string(w.Stage), nil)
		}
		parts := []string{"NOT " + col}
		if !w.DueAfter.IsZero() {
			args = append(args, w.DueAfter.UTC())
			parts = append(parts, fmt.Sprintf("due_date > $%d", len(args)))
		}
		if !w.DueBefore.IsZero() {
			args = append(args, w.DueBefore.UTC())
			parts = append(parts, fmt.Sprintf("due_date <= $%d", len(args)))
		}
		windows = append(windows, "("+strings.Join(parts, " AND ")+")")
	}
	return "(" + strings.Join(windows, " OR ") + ")", args, nil
}

// unsentCondition builds "(NOT a OR NOT b ...)" from stageColumns only.
func unsentCondition(stages []types.Stage) (string, error) {
	if len(stages) == 0 {
		stages = types.ReminderStages
	}
	parts := make([]string, 0, len(stages))
	for _, st := range stages {
		col, ok := stageColumns[st]
		if !ok {
			return "", types.NewAppError(types.ErrCodeValidationStage, "unknown stage "+string(st), nil)
		}
		parts = append(parts, "NOT "+col)
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func scanSchedule(row pgx.Row) (*types.ReminderSchedule, error) {
	var s types.ReminderSchedule
	var subjectType string
	if err := row.Scan(
		&s.ID,
		&subjectType,
		&s.SubjectID,
		&s.DueDate,
		&s.Reminder3DaySent,
		&s.Reminder1DaySent,
		&s.OverdueSent,
		&s.LastReminderDate,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.SubjectType = types.SubjectType(subjectType)
	return &s, nil
}
