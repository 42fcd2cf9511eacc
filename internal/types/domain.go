package types

import "time"

// SubjectType identifies the kind of obligation a reminder schedule tracks.
type SubjectType string

const (
	SubjectPolicyAcknowledgement SubjectType = "policy_acknowledgement"
	SubjectTaskAssignment        SubjectType = "task_assignment"
	SubjectApproval              SubjectType = "approval"
)

// SubjectTypes lists every recognized subject type.
var SubjectTypes = []SubjectType{
	SubjectPolicyAcknowledgement,
	SubjectTaskAssignment,
	SubjectApproval,
}

// Valid reports whether s is a recognized subject type.
func (s SubjectType) Valid() bool {
	switch s {
	case SubjectPolicyAcknowledgement, SubjectTaskAssignment, SubjectApproval:
		return true
	}
	return false
}

// Stage is a named threshold crossing relative to a due date.
type Stage string

const (
	StageNone     Stage = "none"
	StageThreeDay Stage = "three_day"
	StageOneDay   Stage = "one_day"
	StageOverdue  Stage = "overdue"
)

// ReminderStages lists the stages that produce a reminder, in cascade order.
var ReminderStages = []Stage{StageThreeDay, StageOneDay, StageOverdue}

// Valid reports whether s is a stage that can be marked as sent.
func (s Stage) Valid() bool {
	switch s {
	case StageThreeDay, StageOneDay, StageOverdue:
		return true
	}
	return false
}

// ReminderSchedule is the durable per-subject record of a due date and the
// per-stage "already sent" flags for the current due-date epoch.
//
// Flags only move from false to true until the schedule is upserted with a
// new due date, which clears all three.
type ReminderSchedule struct {
	ID               string      `json:"id"`
	SubjectID        string      `json:"subject_id"`
	SubjectType      SubjectType `json:"subject_type"`
	DueDate          time.Time   `json:"due_date"`
	Reminder3DaySent bool        `json:"reminder_3day_sent"`
	Reminder1DaySent bool        `json:"reminder_1day_sent"`
	OverdueSent      bool        `json:"overdue_sent"`
	// LastReminderDate is the calendar date (midnight UTC) of the most recent
	// reminder actually sent. Nil until the first send.
	LastReminderDate *time.Time `json:"last_reminder_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ScheduleID returns the deterministic record ID for a subject.
func ScheduleID(subjectType SubjectType, subjectID string) string {
	return "rs_" + string(subjectType) + "_" + subjectID
}

// Sent reports whether the flag for stage is already set.
func (r *ReminderSchedule) Sent(stage Stage) bool {
	switch stage {
	case StageThreeDay:
		return r.Reminder3DaySent
	case StageOneDay:
		return r.Reminder1DaySent
	case StageOverdue:
		return r.OverdueSent
	}
	return false
}

// Pending reports whether at least one stage flag is still unset.
func (r *ReminderSchedule) Pending() bool {
	return !r.Reminder3DaySent || !r.Reminder1DaySent || !r.OverdueSent
}

// PendingFilter narrows a pending-schedule listing. Zero values mean "no
// constraint", except Limit which must be positive.
type PendingFilter struct {
	SubjectType SubjectType
	// DueBefore is inclusive, DueAfter exclusive.
	DueBefore time.Time
	DueAfter  time.Time
	// Stages restricts results to rows with at least one of these flags unset.
	// Empty means all three. Ignored when Windows is set.
	Stages []Stage
	// Windows restricts results to rows where some window's flag is unset and
	// the due date falls inside that window.
	Windows []StageWindow
	// NotRemindedOn excludes rows whose last_reminder_date is this calendar
	// day (midnight UTC carrying the Y-M-D).
	NotRemindedOn time.Time
	Limit         int
}

// StageWindow is the due-date range in which a stage can fire. Bounds follow
// PendingFilter: DueAfter exclusive, DueBefore inclusive, zero unbounded.
type StageWindow struct {
	Stage     Stage
	DueAfter  time.Time
	DueBefore time.Time
}

// ObligationStatus is the lifecycle state of the underlying obligation as
// reported by the record store.
type ObligationStatus string

const (
	ObligationOpen      ObligationStatus = "open"
	ObligationCompleted ObligationStatus = "completed"
	ObligationCancelled ObligationStatus = "cancelled"
)

// Obligation is the subject a schedule points at: a policy acknowledgement,
// task assignment or approval owned by the external record store.
type Obligation struct {
	ID          string           `json:"id"`
	SubjectType SubjectType      `json:"subject_type"`
	Title       string           `json:"title"`
	AssigneeID  string           `json:"assignee_id"`
	Status      ObligationStatus `json:"status"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	URL         string           `json:"url,omitempty"`
}

// IsOpen reports whether the obligation still requires action.
func (o *Obligation) IsOpen() bool {
	return o != nil && o.Status == ObligationOpen
}

// Recipient holds the contact details a channel needs to reach a person.
type Recipient struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}
