package mirror

import (
	"encoding/json"
	"fmt"
)

// GenericPayload is the stable JSON contract for endpoints that are not a
// known chat platform.
type GenericPayload struct {
	NotificationType string `json:"notification_type"`
	Title            string `json:"title"`
	Text             string `json:"text"`
	Priority         string `json:"priority"`
	Category         string `json:"category"`
	RecipientName    string `json:"recipient_name,omitempty"`
	RelatedSubjectID string `json:"related_subject_id"`
	SubjectType      string `json:"subject_type,omitempty"`
	DueDate          string `json:"due_date,omitempty"`
	URL              string `json:"url,omitempty"`
	RunID            string `json:"run_id,omitempty"`
}

type GenericFormatter struct{}

func (GenericFormatter) Platform() Platform { return PlatformGeneric }

func (GenericFormatter) Format(msg Message) ([]byte, error) {
	return json.Marshal(GenericPayload{
		NotificationType: string(msg.NotificationType),
		Title:            msg.Title,
		Text:             msg.Text,
		Priority:         string(msg.Priority),
		Category:         string(msg.Category),
		RecipientName:    msg.RecipientName,
		RelatedSubjectID: msg.RelatedSubjectID,
		SubjectType:      string(msg.SubjectType),
		DueDate:          msg.DueDate,
		URL:              msg.URL,
		RunID:            msg.RunID,
	})
}

func (GenericFormatter) ValidateResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return fmt.Errorf("generic webhook: unexpected status %d: %s", statusCode, truncateBody(body))
}
