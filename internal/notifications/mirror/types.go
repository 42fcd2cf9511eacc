package mirror

import (
	"strings"

	"policyportal/internal/types"
)

// Platform identifies a team-chat webhook destination.
type Platform string

const (
	PlatformGeneric    Platform = "generic"
	PlatformSlack      Platform = "slack"
	PlatformDiscord    Platform = "discord"
	PlatformTeams      Platform = "teams"
	PlatformGoogleChat Platform = "google_chat"
)

// Message is the platform-neutral content of a mirrored notification.
type Message struct {
	Title            string
	Text             string
	NotificationType types.NotificationType
	Priority         types.Priority
	Category         types.NotificationCategory
	RecipientName    string
	RelatedSubjectID string
	SubjectType      types.SubjectType
	DueDate          string
	URL              string
	RunID            string
}

// Formatter renders a Message as a platform payload and interprets the
// platform's response.
type Formatter interface {
	Platform() Platform
	Format(msg Message) ([]byte, error)
	// ValidateResponse catches soft failures such as Slack answering 200
	// with "ok": false.
	ValidateResponse(statusCode int, body []byte) error
}

var formatters = map[Platform]Formatter{
	PlatformSlack:      SlackFormatter{},
	PlatformTeams:      TeamsFormatter{},
	PlatformDiscord:    DiscordFormatter{},
	PlatformGoogleChat: GoogleChatFormatter{},
	PlatformGeneric:    GenericFormatter{},
}

// Detect picks the platform for url. A known override wins over URL
// patterns; unknown URLs are generic.
func Detect(url, override string) Platform {
	if p := Platform(override); p != "" {
		if _, ok := formatters[p]; ok {
			return p
		}
	}

	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "hooks.slack.com"):
		return PlatformSlack
	case strings.Contains(lower, "discord.com/api/webhooks"):
		return PlatformDiscord
	case strings.Contains(lower, ".webhook.office.com"), strings.Contains(lower, ".logic.azure.com"):
		return PlatformTeams
	case strings.Contains(lower, "chat.googleapis.com"):
		return PlatformGoogleChat
	}
	return PlatformGeneric
}

// FormatterFor returns the formatter for p, or the generic one.
func FormatterFor(p Platform) Formatter {
	if f, ok := formatters[p]; ok {
		return f
	}
	return formatters[PlatformGeneric]
}

func label(msg Message) string {
	switch msg.Category {
	case types.CategoryEscalation:
		return "Escalation"
	case types.CategoryReminder:
		return "Reminder"
	}
	return "Notice"
}

func truncateBody(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
