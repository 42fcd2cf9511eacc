package mirror

import (
	"encoding/json"
	"fmt"

	"policyportal/internal/types"
)

// TeamsPayload targets the Power Automate workflow schema.
type TeamsPayload struct {
	Type        string            `json:"type"`
	Attachments []TeamsAttachment `json:"attachments"`
}

type TeamsAttachment struct {
	ContentType string       `json:"contentType"`
	Content     AdaptiveCard `json:"content"`
}

type AdaptiveCard struct {
	Type    string           `json:"type"`
	Version string           `json:"version"`
	Body    []AdaptiveItem   `json:"body"`
	Actions []AdaptiveAction `json:"actions,omitempty"`
}

type AdaptiveItem struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty"`
	Color  string `json:"color,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
	Facts  []Fact `json:"facts,omitempty"`
}

type AdaptiveAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Fact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type TeamsFormatter struct{}

func (TeamsFormatter) Platform() Platform { return PlatformTeams }

func (TeamsFormatter) Format(msg Message) ([]byte, error) {
	title := AdaptiveItem{Type: "TextBlock", Text: msg.Title, Size: "Large", Weight: "Bolder", Wrap: true}
	if msg.Category == types.CategoryEscalation {
		title.Color = "Attention"
	}
	body := []AdaptiveItem{title}

	if msg.Text != "" {
		body = append(body, AdaptiveItem{Type: "TextBlock", Text: msg.Text, Wrap: true})
	}

	facts := []Fact{{Title: "Type", Value: label(msg)}, {Title: "Priority", Value: string(msg.Priority)}}
	if msg.RecipientName != "" {
		facts = append(facts, Fact{Title: "Assignee", Value: msg.RecipientName})
	}
	if msg.DueDate != "" {
		facts = append(facts, Fact{Title: "Due", Value: msg.DueDate})
	}
	body = append(body, AdaptiveItem{Type: "FactSet", Facts: facts})

	card := AdaptiveCard{Type: "AdaptiveCard", Version: "1.4", Body: body}
	if msg.URL != "" {
		card.Actions = []AdaptiveAction{{Type: "Action.OpenUrl", Title: "Open in portal", URL: msg.URL}}
	}

	return json.Marshal(TeamsPayload{
		Type: "message",
		Attachments: []TeamsAttachment{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content:     card,
		}},
	})
}

// ValidateResponse accepts any 2xx; workflows answer 202.
func (TeamsFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("teams: unexpected status %d: %s", statusCode, truncateBody(body))
}
