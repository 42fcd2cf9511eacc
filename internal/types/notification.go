package types

// NotificationType is the closed set of reminder notifications the engine emits.
type NotificationType string

const (
	NotificationPolicyAckDueSoon NotificationType = "policy_ack_due_soon"
	NotificationPolicyAckOverdue NotificationType = "policy_ack_overdue"
	NotificationTaskDueSoon      NotificationType = "task_due_soon"
	NotificationTaskOverdue      NotificationType = "task_overdue"
	NotificationApprovalPending  NotificationType = "approval_pending"
	NotificationApprovalOverdue  NotificationType = "approval_overdue"
)

// NotificationTypeFor maps a subject type and stage to the notification emitted
// for that crossing.
func NotificationTypeFor(subject SubjectType, stage Stage) NotificationType {
	overdue := stage == StageOverdue
	switch subject {
	case SubjectPolicyAcknowledgement:
		if overdue {
			return NotificationPolicyAckOverdue
		}
		return NotificationPolicyAckDueSoon
	case SubjectTaskAssignment:
		if overdue {
			return NotificationTaskOverdue
		}
		return NotificationTaskDueSoon
	case SubjectApproval:
		if overdue {
			return NotificationApprovalOverdue
		}
		return NotificationApprovalPending
	}
	return NotificationType(string(subject) + "_" + string(stage))
}

// Priority is the delivery priority attached to a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// NotificationCategory groups notifications for recipients and dashboards.
type NotificationCategory string

const (
	CategoryInfo       NotificationCategory = "info"
	CategoryReminder   NotificationCategory = "reminder"
	CategoryEscalation NotificationCategory = "escalation"
)

// ChannelType identifies a notification delivery channel.
type ChannelType string

const (
	ChannelEmail  ChannelType = "email"
	ChannelQueue  ChannelType = "queue"
	ChannelMirror ChannelType = "mirror"
)

// NotificationIntent is the ephemeral request to notify one recipient about
// one obligation. It is never persisted beyond an audit entry.
type NotificationIntent struct {
	RecipientID      string           `json:"recipient_id"`
	NotificationType NotificationType `json:"notification_type"`
	Subject          string           `json:"subject"`
	Body             string           `json:"body"`
	RelatedSubjectID string           `json:"related_subject_id"`
	SendPrimary      bool             `json:"send_primary"`
	SendSecondary    bool             `json:"send_secondary"`

	// Recipient carries resolved contact details. The dispatcher resolves it
	// from RecipientID when nil.
	Recipient *Recipient `json:"recipient,omitempty"`

	// Template inputs for channel payloads.
	SubjectType SubjectType `json:"subject_type,omitempty"`
	Stage       Stage       `json:"stage,omitempty"`
	DaysToDue   int         `json:"days_to_due"`
	Obligation  *Obligation `json:"obligation,omitempty"`
}

// NotificationAuditRecord is the best-effort audit entry written for every
// dispatch attempt.
type NotificationAuditRecord struct {
	RecipientID      string           `json:"recipient_id"`
	NotificationType NotificationType `json:"notification_type"`
	RelatedSubjectID string           `json:"related_subject_id"`
	Channel          ChannelType      `json:"channel"`
	Status           string           `json:"status"` // sent | failed
	ProviderMsgID    string           `json:"provider_message_id,omitempty"`
	SecondaryStatus  string           `json:"secondary_status,omitempty"` // sent | failed | skipped
	Error            string           `json:"error,omitempty"`
}

// DispatchOutcome reports how a dispatched notification left the process.
type DispatchOutcome struct {
	Channel           ChannelType `json:"channel"`
	ProviderMessageID string      `json:"provider_message_id,omitempty"`
	// SecondaryStatus is "sent", "failed" or "skipped".
	SecondaryStatus string `json:"secondary_status"`
}
