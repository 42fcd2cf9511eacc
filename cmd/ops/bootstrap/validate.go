package main

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"policyportal/internal/security"
)

// ValidationResult is the outcome of one check, with a message for the
// operator.
type ValidationResult struct {
	Valid   bool
	Message string
}

// DatabaseConnector verifies a DSN by connecting once.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector connects with pgx and closes immediately.
type PgxConnector struct{}

func (PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// URLChecker validates outbound targets. *security.Guard satisfies it.
type URLChecker interface {
	ValidateURL(ctx context.Context, raw string) error
}

// Validator holds the dependencies of the active checks.
type Validator struct {
	dbConn DatabaseConnector
	urls   URLChecker
}

func NewValidator() *Validator {
	return &Validator{
		dbConn: PgxConnector{},
		urls:   security.NewGuard(nil, false),
	}
}

func NewValidatorWithDeps(dbConn DatabaseConnector, urls URLChecker) *Validator {
	return &Validator{dbConn: dbConn, urls: urls}
}

const validateTimeout = 15 * time.Second

// ValidateDatabaseURL checks the DSN shape, then connects.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, raw string) ValidationResult {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return ValidationResult{Message: "database URL must be a postgres:// or postgresql:// connection string"}
	}
	if u.Hostname() == "" {
		return ValidationResult{Message: "database URL has no host"}
	}
	if strings.TrimPrefix(u.Path, "/") == "" {
		return ValidationResult{Message: "database URL has no database name"}
	}

	connCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.dbConn.Connect(connCtx, raw); err != nil {
		return ValidationResult{Message: "could not connect to database: " + err.Error()}
	}
	return ValidationResult{Valid: true, Message: "connected to " + u.Hostname()}
}

// ValidateSendGridKey checks the key format. SendGrid API keys start with
// "SG." and carry two dot-separated segments after it.
func (v *Validator) ValidateSendGridKey(_ context.Context, key string) ValidationResult {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, "SG.") {
		return ValidationResult{Message: `SendGrid API key must start with "SG."`}
	}
	if parts := strings.Split(key, "."); len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return ValidationResult{Message: "SendGrid API key is malformed"}
	}
	return ValidationResult{Valid: true, Message: "SendGrid key format accepted"}
}

// ValidateWebhookURL requires https and a public target.
func (v *Validator) ValidateWebhookURL(ctx context.Context, raw string) ValidationResult {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" {
		return ValidationResult{Message: "mirror webhook URL must use https"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.urls.ValidateURL(checkCtx, u.String()); err != nil {
		return ValidationResult{Message: "mirror webhook URL rejected: " + err.Error()}
	}
	return ValidationResult{Valid: true, Message: "webhook target " + u.Hostname() + " accepted"}
}

// minSigningSecretLength matches a 128-bit hex secret.
const minSigningSecretLength = 32

func ValidateSigningSecret(_ context.Context, secret string) ValidationResult {
	if len(strings.TrimSpace(secret)) < minSigningSecretLength {
		return ValidationResult{Message: "signing secret must be at least 32 characters"}
	}
	return ValidationResult{Valid: true, Message: "signing secret accepted"}
}
