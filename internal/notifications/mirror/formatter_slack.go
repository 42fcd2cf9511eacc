package mirror

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SlackPayload is a Block Kit message.
type SlackPayload struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

type SlackBlock struct {
	Type     string       `json:"type"`
	Text     *SlackText   `json:"text,omitempty"`
	Fields   []*SlackText `json:"fields,omitempty"`
	Elements []*SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type SlackFormatter struct{}

func (SlackFormatter) Platform() Platform { return PlatformSlack }

func (SlackFormatter) Format(msg Message) ([]byte, error) {
	payload := SlackPayload{
		Text: fmt.Sprintf("[%s] %s", strings.ToUpper(label(msg)), msg.Title),
		Blocks: []SlackBlock{
			{Type: "header", Text: &SlackText{Type: "plain_text", Text: msg.Title}},
		},
	}

	if msg.Text != "" {
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: msg.Text},
		})
	}

	var fields []*SlackText
	if msg.RecipientName != "" {
		fields = append(fields, &SlackText{Type: "mrkdwn", Text: "*Assignee*\n" + msg.RecipientName})
	}
	if msg.DueDate != "" {
		fields = append(fields, &SlackText{Type: "mrkdwn", Text: "*Due*\n" + msg.DueDate})
	}
	if msg.URL != "" {
		fields = append(fields, &SlackText{Type: "mrkdwn", Text: fmt.Sprintf("*Link*\n<%s|Open in portal>", msg.URL)})
	}
	if len(fields) > 0 {
		payload.Blocks = append(payload.Blocks, SlackBlock{Type: "section", Fields: fields})
	}

	payload.Blocks = append(payload.Blocks, SlackBlock{
		Type: "context",
		Elements: []*SlackText{{
			Type: "mrkdwn",
			Text: fmt.Sprintf("*Priority*: %s | *Type*: %s | Policy Portal", msg.Priority, msg.NotificationType),
		}},
	})

	return json.Marshal(payload)
}

// ValidateResponse treats a 2xx with "ok": false or a known plain-text error
// body as a failure.
func (SlackFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d: %s", statusCode, truncateBody(body))
	}

	var resp struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.OK != nil && !*resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown error"
		}
		return fmt.Errorf("slack: API error: %s", resp.Error)
	}

	switch s := strings.TrimSpace(string(body)); s {
	case "no_text", "channel_not_found", "channel_is_archived", "invalid_payload", "no_service":
		return fmt.Errorf("slack: API error: %s", s)
	}
	return nil
}
