// Package mirror is the secondary team-channel notification. A mirrored
// notification is posted to one operator-configured webhook, formatted for
// Slack, Teams, Discord, Google Chat or a generic JSON receiver.
package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"policyportal/internal/config"
	"policyportal/internal/external"
	"policyportal/internal/notifications/core"
	"policyportal/internal/security"
	"policyportal/internal/types"
)

// maxResponseBodyRead limits how much of a response body is read for
// validation and error messages.
const maxResponseBodyRead = 4096

// Channel implements types.NotificationChannel for the team-channel mirror.
type Channel struct {
	url        string
	formatter  Formatter
	client     *external.BaseClient
	guard      *security.Guard
	secret     string
	clock      types.Clock
	logger     types.Logger
	clientOpts []external.BaseClientOption
	resolver   security.Resolver
}

// Option customises a Channel.
type Option func(*Channel)

// WithClock replaces the clock used for signatures.
func WithClock(c types.Clock) Option {
	return func(ch *Channel) { ch.clock = c }
}

// WithClientOptions passes options to the underlying external.BaseClient.
func WithClientOptions(opts ...external.BaseClientOption) Option {
	return func(ch *Channel) { ch.clientOpts = append(ch.clientOpts, opts...) }
}

// WithResolver replaces the DNS resolver used by the SSRF guard.
func WithResolver(r security.Resolver) Option {
	return func(ch *Channel) { ch.resolver = r }
}

func mirrorRetryPolicy() external.RetryPolicy {
	p := external.DefaultRetryPolicy()
	p.MaxRetries = 2
	return p
}

// NewChannel returns nil, nil when no webhook URL is configured.
func NewChannel(cfg config.MirrorConfig, logger types.Logger, opts ...Option) (*Channel, error) {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = types.NewLogger(nil)
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 3
	}

	platform := Detect(cfg.WebhookURL, cfg.Platform)

	ch := &Channel{
		url:       cfg.WebhookURL,
		formatter: FormatterFor(platform),
		secret:    cfg.SigningSecret.Unmask(),
		clock:     types.RealClock{},
		logger:    logger.With("channel", string(types.ChannelMirror), "platform", string(platform)),
	}
	for _, opt := range opts {
		opt(ch)
	}

	httpClient, guard := security.NewSafeHTTPClient(security.ClientOptions{
		Timeout:      cfg.Timeout,
		MaxRedirects: maxRedirects,
		AllowPrivate: cfg.AllowPrivate,
		Resolver:     ch.resolver,
	})
	ch.guard = guard
	ch.client = external.NewBaseClient(httpClient, "mirror-"+string(platform), mirrorRetryPolicy(), cfg.UserAgent, ch.clientOpts...)
	return ch, nil
}

func (c *Channel) Type() types.ChannelType { return types.ChannelMirror }

// Platform reports the detected or configured platform.
func (c *Channel) Platform() Platform { return c.formatter.Platform() }

// Deliver posts one formatted message. Any failure, including a blocked
// target or a platform soft failure, is returned as an error.
func (c *Channel) Deliver(ctx context.Context, intent *types.NotificationIntent) (*types.DeliveryResult, error) {
	if err := c.guard.ValidateURL(ctx, c.url); err != nil {
		c.logger.Error("mirror target blocked", "error", err.Error())
		return nil, types.NewAppError(types.ErrCodeValidationInvalidURL, "mirror webhook target rejected", err)
	}

	body, err := c.formatter.Format(MessageFrom(ctx, intent))
	if err != nil {
		return nil, fmt.Errorf("mirror: failed to format payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mirror: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(SignatureHeader, Sign(body, c.secret, c.clock.Now()))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	if err := c.formatter.ValidateResponse(resp.StatusCode, respBody); err != nil {
		c.logger.Warn("mirror delivery rejected", "status", resp.StatusCode, "error", err.Error())
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "mirror webhook rejected the message", err)
	}

	id := providerMessageID(resp, c.Platform())
	c.logger.Info("mirror delivered", "status", resp.StatusCode, "provider_message_id", id)
	return &types.DeliveryResult{ProviderMessageID: id, Status: "sent"}, nil
}

// MessageFrom builds the platform-neutral message for intent.
func MessageFrom(ctx context.Context, intent *types.NotificationIntent) Message {
	msg := Message{
		Title:            intent.Subject,
		Text:             intent.Body,
		NotificationType: intent.NotificationType,
		Priority:         core.PriorityFor(intent.NotificationType, intent.Stage),
		Category:         core.CategoryFor(intent.NotificationType),
		RelatedSubjectID: intent.RelatedSubjectID,
		SubjectType:      intent.SubjectType,
		RunID:            types.GetRunID(ctx),
	}
	if msg.Title == "" {
		msg.Title = string(intent.NotificationType) + ": " + intent.RelatedSubjectID
	}
	if r := intent.Recipient; r != nil {
		msg.RecipientName = r.DisplayName
	}
	if ob := intent.Obligation; ob != nil {
		msg.URL = ob.URL
		if ob.DueDate != nil {
			msg.DueDate = ob.DueDate.UTC().Format("2006-01-02")
		}
	}
	return msg
}

func providerMessageID(resp *http.Response, platform Platform) string {
	if platform == PlatformSlack {
		if id := resp.Header.Get("X-Slack-Req-Id"); id != "" {
			return id
		}
	}
	if id := resp.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d-%s", platform, resp.StatusCode, uuid.NewString()[:8])
}

var _ types.NotificationChannel = (*Channel)(nil)
