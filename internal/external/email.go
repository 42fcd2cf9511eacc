package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"policyportal/internal/config"
)

// EmailProvider transmits one email and returns the provider message ID.
type EmailProvider interface {
	Send(ctx context.Context, input SendInput) (providerMsgID string, err error)
}

// SendInput is either a provider template (TemplateID + TemplateData) or
// pre-rendered content (Subject + BodyText/BodyHTML).
type SendInput struct {
	To           string
	ToName       string
	From         SenderIdentity
	Subject      string
	BodyText     string
	BodyHTML     string
	TemplateID   string
	TemplateData map[string]any
	// ReferenceID is echoed back by the provider in event webhooks.
	ReferenceID string
	Categories  []string
}

type SenderIdentity struct {
	Name    string
	Address string
}

// NewEmailProvider returns the SendGrid client when an API key is configured
// and the logging stub otherwise.
func NewEmailProvider(cfg config.EmailConfig, logger *slog.Logger) EmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	key := cfg.SendGridAPIKey.Unmask()
	if key == "" {
		logger.Info("no SendGrid API key configured, using stub email provider")
		return NewStubEmailProvider(logger.With("client", "stub-email"))
	}
	return NewSendGridClient(&http.Client{Timeout: 10 * time.Second}, SendGridClientConfig{
		APIKey: key,
		Logger: logger.With("client", "sendgrid"),
	})
}

// StubEmailProvider logs instead of sending.
type StubEmailProvider struct {
	logger *slog.Logger
}

func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input SendInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: email send",
		"subject", input.Subject,
		"template_id", input.TemplateID,
		"reference_id", input.ReferenceID,
	)
	return fmt.Sprintf("msg_stub_%s", input.ReferenceID), nil
}

var (
	_ EmailProvider = (*StubEmailProvider)(nil)
	_ EmailProvider = (*SendGridClient)(nil)
)
