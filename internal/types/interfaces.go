package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used by channels and
// handlers. Scheduler services take *slog.Logger directly.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// NotificationChannel delivers a rendered notification to one recipient.
// Primary implementations report failure through the returned error.
type NotificationChannel interface {
	Type() ChannelType
	Deliver(ctx context.Context, intent *NotificationIntent) (*DeliveryResult, error)
}

// DeliveryResult is the outcome of a successful channel delivery.
type DeliveryResult struct {
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Status            string `json:"status"`
}
