package mirror

import (
	"encoding/json"
	"fmt"
)

type GoogleChatPayload struct {
	Text  string       `json:"text,omitempty"`
	Cards []GoogleCard `json:"cards"`
}

type GoogleCard struct {
	Header   GoogleHeader    `json:"header"`
	Sections []GoogleSection `json:"sections"`
}

type GoogleHeader struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
}

type GoogleSection struct {
	Widgets []GoogleWidget `json:"widgets"`
}

type GoogleWidget struct {
	KeyValue      *GoogleKeyValue      `json:"keyValue,omitempty"`
	TextParagraph *GoogleTextParagraph `json:"textParagraph,omitempty"`
}

type GoogleKeyValue struct {
	TopLabel string `json:"topLabel"`
	Content  string `json:"content"`
}

type GoogleTextParagraph struct {
	Text string `json:"text"`
}

type GoogleChatFormatter struct{}

func (GoogleChatFormatter) Platform() Platform { return PlatformGoogleChat }

func (GoogleChatFormatter) Format(msg Message) ([]byte, error) {
	var widgets []GoogleWidget
	if msg.Text != "" {
		widgets = append(widgets, GoogleWidget{TextParagraph: &GoogleTextParagraph{Text: msg.Text}})
	}
	if msg.RecipientName != "" {
		widgets = append(widgets, GoogleWidget{KeyValue: &GoogleKeyValue{TopLabel: "Assignee", Content: msg.RecipientName}})
	}
	if msg.DueDate != "" {
		widgets = append(widgets, GoogleWidget{KeyValue: &GoogleKeyValue{TopLabel: "Due", Content: msg.DueDate}})
	}
	if msg.URL != "" {
		widgets = append(widgets, GoogleWidget{TextParagraph: &GoogleTextParagraph{
			Text: fmt.Sprintf(`<a href="%s">Open in portal</a>`, msg.URL),
		}})
	}

	return json.Marshal(GoogleChatPayload{
		Cards: []GoogleCard{{
			Header: GoogleHeader{
				Title:    msg.Title,
				Subtitle: fmt.Sprintf("%s | priority %s", label(msg), msg.Priority),
			},
			Sections: []GoogleSection{{Widgets: widgets}},
		}},
	})
}

func (GoogleChatFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error.Message != "" {
		return fmt.Errorf("google chat: API error: %s", resp.Error.Message)
	}
	return fmt.Errorf("google chat: unexpected status %d: %s", statusCode, truncateBody(body))
}
