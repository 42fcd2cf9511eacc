package mirror

import (
	"encoding/json"
	"fmt"
	"strings"

	"policyportal/internal/types"
)

// Discord embed colours per priority.
const (
	colorLow    = 0x2196F3
	colorNormal = 0xFFC107
	colorHigh   = 0xF44336
)

type DiscordPayload struct {
	Username string         `json:"username"`
	Content  string         `json:"content"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color"`
	Fields      []DiscordField `json:"fields"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordFormatter struct{}

func (DiscordFormatter) Platform() Platform { return PlatformDiscord }

func (DiscordFormatter) Format(msg Message) ([]byte, error) {
	fields := []DiscordField{{Name: "Priority", Value: string(msg.Priority), Inline: true}}
	if msg.RecipientName != "" {
		fields = append(fields, DiscordField{Name: "Assignee", Value: msg.RecipientName, Inline: true})
	}
	if msg.DueDate != "" {
		fields = append(fields, DiscordField{Name: "Due", Value: msg.DueDate, Inline: true})
	}

	return json.Marshal(DiscordPayload{
		Username: "Policy Portal",
		Content:  fmt.Sprintf("[%s] %s", strings.ToUpper(label(msg)), msg.Title),
		Embeds: []DiscordEmbed{{
			Title:       msg.Title,
			Description: msg.Text,
			URL:         msg.URL,
			Color:       priorityColor(msg.Priority),
			Fields:      fields,
			Footer:      &DiscordFooter{Text: "Policy Portal | " + string(msg.NotificationType)},
		}},
	})
}

// ValidateResponse accepts any 2xx; Discord answers 204.
func (DiscordFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Message != "" {
		return fmt.Errorf("discord: API error: %s", resp.Message)
	}
	return fmt.Errorf("discord: unexpected status %d: %s", statusCode, truncateBody(body))
}

func priorityColor(p types.Priority) int {
	switch p {
	case types.PriorityHigh:
		return colorHigh
	case types.PriorityNormal:
		return colorNormal
	}
	return colorLow
}
