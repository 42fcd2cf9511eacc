// Package config defines the process configuration for the escalation engine.
// It is loaded once at startup and treated as immutable afterwards.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
package config

import (
	"time"

	"policyportal/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the sections they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"escalation-engine"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Escalation    EscalationConfig
	Channels      ChannelConfig
	Email         EmailConfig
	Mirror        MirrorConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not Env.
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	PortalURL    string        `envconfig:"PORTAL_URL" default:"http://localhost:3000" validate:"url"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS regional configuration and optional resource identifiers.
type AWSConfig struct {
	Region            string `envconfig:"AWS_REGION" default:"us-east-1"`
	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EscalationConfig holds the scheduler tuning knobs.
type EscalationConfig struct {
	IntervalMinutes               int    `envconfig:"ESCALATION_INTERVAL_MINUTES" default:"15" validate:"min=1"`
	ProcessTaskEscalations        bool   `envconfig:"ESCALATION_PROCESS_TASK_ESCALATIONS" default:"true"`
	ProcessApprovalReminders      bool   `envconfig:"ESCALATION_PROCESS_APPROVAL_REMINDERS" default:"true"`
	ProcessTaskDueDateReminders   bool   `envconfig:"ESCALATION_PROCESS_TASK_DUE_DATE_REMINDERS" default:"true"`
	ProcessPolicyAcknowledgements bool   `envconfig:"ESCALATION_PROCESS_POLICY_ACKNOWLEDGEMENTS" default:"true"`
	DueDateReminderHours          int    `envconfig:"ESCALATION_DUE_DATE_REMINDER_HOURS" default:"24" validate:"min=1"`
	MaxTasksPerRun                int    `envconfig:"ESCALATION_MAX_TASKS_PER_RUN" default:"500" validate:"min=1"`
	MaxApprovalsPerRun            int    `envconfig:"ESCALATION_MAX_APPROVALS_PER_RUN" default:"200" validate:"min=1"`
	MaxPolicyAcksPerRun           int    `envconfig:"ESCALATION_MAX_POLICY_ACKS_PER_RUN" default:"500" validate:"min=1"`
	ReminderTimezone              string `envconfig:"ESCALATION_REMINDER_TIMEZONE" default:"UTC" validate:"timezone"`
	Autostart                     bool   `envconfig:"ESCALATION_AUTOSTART" default:"true"`
}

// Interval returns the configured inter-run interval as a duration.
func (c EscalationConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// ChannelConfig selects how primary notifications leave the process.
type ChannelConfig struct {
	// Primary is "email" (SendGrid or stub) or "queue" (SQS hand-off).
	Primary string `envconfig:"PRIMARY_CHANNEL" default:"email" validate:"oneof=email queue"`
}

// EmailConfig holds email delivery provider credentials and template configuration.
type EmailConfig struct {
	// SendGridAPIKey is optional. The stub provider is used when empty.
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@policyportal.local" validate:"email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"Policy Portal"`
	// Templates maps notification type to a provider template ID, e.g.
	// {"task_overdue": "d-123..."}. Types without an entry are sent as plain
	// subject/body content.
	Templates string `envconfig:"EMAIL_TEMPLATES_JSON" default:"{}" validate:"json"`
}

// MirrorConfig holds settings for the secondary team-channel webhook.
type MirrorConfig struct {
	// WebhookURL disables the mirror when empty.
	WebhookURL string `envconfig:"MIRROR_WEBHOOK_URL" validate:"omitempty,url"`
	// Platform overrides URL-based detection: slack, teams, discord,
	// google_chat or generic.
	Platform string `envconfig:"MIRROR_PLATFORM" validate:"omitempty,oneof=slack teams discord google_chat generic"`
	// SigningSecret enables the X-PolicyPortal-Signature header on generic
	// targets.
	SigningSecret SecretString  `envconfig:"MIRROR_SIGNING_SECRET"`
	UserAgent     string        `envconfig:"MIRROR_USER_AGENT" default:"PolicyPortal-Escalation/1.0"`
	Timeout       time.Duration `envconfig:"MIRROR_TIMEOUT" default:"10s"`
	MaxRedirects  int           `envconfig:"MIRROR_MAX_REDIRECTS" default:"3"`
	// AllowPrivate permits loopback and private targets. Local development only.
	AllowPrivate bool `envconfig:"MIRROR_ALLOW_PRIVATE" default:"false"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"PolicyPortal"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
