package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"policyportal/internal/config"
	"policyportal/internal/external"
	"policyportal/internal/notifications/core"
	"policyportal/internal/types"
)

// EmailChannel implements types.NotificationChannel for email delivery.
type EmailChannel struct {
	provider    external.EmailProvider
	renderer    *Renderer
	from        external.SenderIdentity
	templateIDs map[types.NotificationType]string
	logger      types.Logger
}

// EmailChannelConfig holds the dependencies needed to create an EmailChannel.
type EmailChannelConfig struct {
	Provider external.EmailProvider
	Email    config.EmailConfig
	Logger   types.Logger
}

// NewEmailChannel parses the template mapping and the HTML layout.
func NewEmailChannel(cfg EmailChannelConfig) (*EmailChannel, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("email channel: provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NewLogger(nil)
	}

	ids := map[types.NotificationType]string{}
	if raw := strings.TrimSpace(cfg.Email.Templates); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("email channel: invalid template mapping: %w", err)
		}
	}

	renderer, err := NewRenderer(cfg.Email.FromName)
	if err != nil {
		return nil, err
	}

	return &EmailChannel{
		provider:    cfg.Provider,
		renderer:    renderer,
		from:        external.SenderIdentity{Name: cfg.Email.FromName, Address: cfg.Email.FromAddress},
		templateIDs: ids,
		logger:      logger,
	}, nil
}

func (e *EmailChannel) Type() types.ChannelType {
	return types.ChannelEmail
}

// Deliver sends one email to the intent's resolved recipient. Provider
// errors are returned unchanged so the sweep leaves the stage pending.
func (e *EmailChannel) Deliver(ctx context.Context, intent *types.NotificationIntent) (*types.DeliveryResult, error) {
	if intent.Recipient == nil || !validAddress(intent.Recipient.Email) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidEmail,
			fmt.Sprintf("recipient %s has no deliverable email address", intent.RecipientID), nil)
	}
	to := intent.Recipient.Email
	log := e.logger.With("dest", RedactEmail(to), "notification_type", string(intent.NotificationType))
	log.Info("attempting email delivery")

	input, err := e.buildInput(intent)
	if err != nil {
		return nil, err
	}

	msgID, err := e.provider.Send(ctx, input)
	if err != nil {
		if IsBlocklistError(err) {
			log.Warn("recipient blocked by provider", "related_subject_id", intent.RelatedSubjectID)
		}
		return nil, err
	}

	return &types.DeliveryResult{ProviderMessageID: msgID, Status: "sent"}, nil
}

func (e *EmailChannel) buildInput(intent *types.NotificationIntent) (external.SendInput, error) {
	priority := core.PriorityFor(intent.NotificationType, intent.Stage)
	category := core.CategoryFor(intent.NotificationType)
	var url string
	if intent.Obligation != nil {
		url = intent.Obligation.URL
	}

	input := external.SendInput{
		To:          intent.Recipient.Email,
		ToName:      intent.Recipient.DisplayName,
		From:        e.from,
		ReferenceID: referenceID(intent),
		Categories:  []string{string(intent.NotificationType), string(category)},
	}

	if id, ok := e.templateIDs[intent.NotificationType]; ok && id != "" {
		input.TemplateID = id
		input.TemplateData = templateData(intent, priority, category, url)
		return input, nil
	}

	html, err := e.renderer.RenderHTML(intent.Subject, intent.Body, url, priority, category)
	if err != nil {
		return external.SendInput{}, err
	}
	input.Subject = intent.Subject
	input.BodyText = intent.Body
	input.BodyHTML = html
	return input, nil
}

// referenceID ties provider events back to the obligation and stage.
func referenceID(intent *types.NotificationIntent) string {
	if intent.Stage == "" {
		return intent.RelatedSubjectID
	}
	return intent.RelatedSubjectID + ":" + string(intent.Stage)
}

func templateData(intent *types.NotificationIntent, priority types.Priority, category types.NotificationCategory, url string) map[string]any {
	data := map[string]any{
		"subject":            intent.Subject,
		"body":               intent.Body,
		"notification_type":  string(intent.NotificationType),
		"related_subject_id": intent.RelatedSubjectID,
		"days_to_due":        intent.DaysToDue,
		"priority":           string(priority),
		"category":           string(category),
		"recipient_name":     intent.Recipient.DisplayName,
	}
	if url != "" {
		data["url"] = url
	}
	if ob := intent.Obligation; ob != nil {
		data["title"] = ob.Title
		if ob.DueDate != nil {
			data["due_date"] = ob.DueDate.UTC().Format("2006-01-02")
		}
	}
	return data
}

var _ types.NotificationChannel = (*EmailChannel)(nil)
