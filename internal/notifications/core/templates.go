package core

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"policyportal/internal/types"
)

// priorities and categories are static lookups. Unknown types get Low/Info.
var priorities = map[types.NotificationType]types.Priority{
	types.NotificationPolicyAckOverdue: types.PriorityHigh,
	types.NotificationTaskOverdue:      types.PriorityHigh,
	types.NotificationApprovalOverdue:  types.PriorityHigh,
	types.NotificationPolicyAckDueSoon: types.PriorityNormal,
	types.NotificationTaskDueSoon:      types.PriorityNormal,
	types.NotificationApprovalPending:  types.PriorityNormal,
}

var categories = map[types.NotificationType]types.NotificationCategory{
	types.NotificationPolicyAckOverdue: types.CategoryEscalation,
	types.NotificationTaskOverdue:      types.CategoryEscalation,
	types.NotificationApprovalOverdue:  types.CategoryEscalation,
	types.NotificationPolicyAckDueSoon: types.CategoryReminder,
	types.NotificationTaskDueSoon:      types.CategoryReminder,
	types.NotificationApprovalPending:  types.CategoryReminder,
}

// PriorityFor returns the priority of an intent. Due-soon reminders three
// days out are Low; the one-day reminder keeps the type's priority.
func PriorityFor(nt types.NotificationType, stage types.Stage) types.Priority {
	p, ok := priorities[nt]
	if !ok {
		return types.PriorityLow
	}
	if stage == types.StageThreeDay && p == types.PriorityNormal {
		return types.PriorityLow
	}
	return p
}

// CategoryFor returns the category of a notification type.
func CategoryFor(nt types.NotificationType) types.NotificationCategory {
	if c, ok := categories[nt]; ok {
		return c
	}
	return types.CategoryInfo
}

// Rendered is the channel-neutral content of a notification.
type Rendered struct {
	Subject  string
	Body     string
	Priority types.Priority
	Category types.NotificationCategory
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

// templateData is what message templates see.
type templateData struct {
	Name      string
	Title     string
	DueDate   string
	Days      int
	DaysLate  int
	URL       string
	SubjectID string
}

func mustTemplate(nt types.NotificationType, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(string(nt) + ".subject").Parse(subject)),
		body:    template.Must(template.New(string(nt) + ".body").Parse(body)),
	}
}

const bodyFooter = `{{if .URL}}

Open it here: {{.URL}}{{end}}

You are receiving this because the item is assigned to you in the policy portal.`

var templates = map[types.NotificationType]messageTemplate{
	types.NotificationPolicyAckDueSoon: mustTemplate(types.NotificationPolicyAckDueSoon,
		`Reminder: please acknowledge "{{.Title}}"`,
		`Hi {{.Name}},

The policy "{{.Title}}" needs your acknowledgement by {{.DueDate}}{{if eq .Days 1}} (tomorrow){{else}} ({{.Days}} days from now){{end}}.`+bodyFooter),
	types.NotificationPolicyAckOverdue: mustTemplate(types.NotificationPolicyAckOverdue,
		`Overdue: acknowledgement of "{{.Title}}"`,
		`Hi {{.Name}},

Your acknowledgement of the policy "{{.Title}}" was due on {{.DueDate}} and is {{.DaysLate}} day(s) overdue.`+bodyFooter),
	types.NotificationTaskDueSoon: mustTemplate(types.NotificationTaskDueSoon,
		`Task due soon: {{.Title}}`,
		`Hi {{.Name}},

The task "{{.Title}}" is due on {{.DueDate}}{{if eq .Days 1}} (within a day){{else}} ({{.Days}} days from now){{end}}.`+bodyFooter),
	types.NotificationTaskOverdue: mustTemplate(types.NotificationTaskOverdue,
		`Task overdue: {{.Title}}`,
		`Hi {{.Name}},

The task "{{.Title}}" was due on {{.DueDate}} and is {{.DaysLate}} day(s) overdue. It has been escalated.`+bodyFooter),
	types.NotificationApprovalPending: mustTemplate(types.NotificationApprovalPending,
		`Approval pending: {{.Title}}`,
		`Hi {{.Name}},

"{{.Title}}" is waiting for your approval. The decision is due on {{.DueDate}}.`+bodyFooter),
	types.NotificationApprovalOverdue: mustTemplate(types.NotificationApprovalOverdue,
		`Approval overdue: {{.Title}}`,
		`Hi {{.Name}},

Your approval of "{{.Title}}" was due on {{.DueDate}} and is {{.DaysLate}} day(s) overdue.`+bodyFooter),
}

// Render fills Subject and Body from the template set. Explicit Subject or
// Body values on the intent are kept.
func Render(intent *types.NotificationIntent) (Rendered, error) {
	out := Rendered{
		Subject:  intent.Subject,
		Body:     intent.Body,
		Priority: PriorityFor(intent.NotificationType, intent.Stage),
		Category: CategoryFor(intent.NotificationType),
	}
	if out.Subject != "" && out.Body != "" {
		return out, nil
	}

	tmpl, ok := templates[intent.NotificationType]
	if !ok {
		return out, types.NewAppError(types.ErrCodeInternalTemplate,
			fmt.Sprintf("no template for notification type %q", intent.NotificationType), nil)
	}

	data := dataFor(intent)
	if out.Subject == "" {
		s, err := execute(tmpl.subject, data)
		if err != nil {
			return out, err
		}
		out.Subject = s
	}
	if out.Body == "" {
		b, err := execute(tmpl.body, data)
		if err != nil {
			return out, err
		}
		out.Body = b
	}
	return out, nil
}

func execute(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", types.NewAppError(types.ErrCodeInternalTemplate, "failed to render "+t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func dataFor(intent *types.NotificationIntent) templateData {
	d := templateData{
		Name:      "there",
		Title:     intent.RelatedSubjectID,
		Days:      intent.DaysToDue,
		SubjectID: intent.RelatedSubjectID,
	}
	if intent.DaysToDue < 0 {
		d.DaysLate = -intent.DaysToDue
	}
	if r := intent.Recipient; r != nil && r.DisplayName != "" {
		d.Name = r.DisplayName
	}
	if ob := intent.Obligation; ob != nil {
		if ob.Title != "" {
			d.Title = ob.Title
		}
		if ob.DueDate != nil {
			d.DueDate = ob.DueDate.UTC().Format("Mon, Jan 2 2006")
		}
		d.URL = ob.URL
	}
	if d.DueDate == "" {
		d.DueDate = "the due date"
	}
	return d
}

// dueDate returns the obligation due date for payloads, or nil.
func dueDate(intent *types.NotificationIntent) *time.Time {
	if intent.Obligation == nil || intent.Obligation.DueDate == nil {
		return nil
	}
	t := intent.Obligation.DueDate.UTC()
	return &t
}
