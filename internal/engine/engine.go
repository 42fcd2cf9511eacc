// Package engine assembles the escalation engine from configuration: the
// repositories, the primary and secondary channels, the dispatcher, the
// sweep engine and the run coordinator. Both binaries build through it so
// the worker and the Lambda trigger send identical notifications.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"policyportal/internal/config"
	"policyportal/internal/db"
	"policyportal/internal/external"
	"policyportal/internal/notifications/core"
	"policyportal/internal/notifications/email"
	"policyportal/internal/notifications/mirror"
	"policyportal/internal/scheduler"
	"policyportal/internal/telemetry"
	"policyportal/internal/types"
)

// Deps are the process-level resources the engine is built on.
type Deps struct {
	Config *config.Config
	DB     db.DBTX
	Logger *slog.Logger

	// SQS is required when the primary channel is "queue".
	SQS core.SQSSender
	// CloudWatch is required when the metrics backend is "cloudwatch".
	CloudWatch telemetry.CloudWatchClient

	// EmailProvider overrides the provider selected from Config.Email.
	EmailProvider external.EmailProvider
	MirrorOptions []mirror.Option
	Clock         types.Clock
}

// Engine is the wired object graph.
type Engine struct {
	Coordinator *scheduler.Coordinator
	Reminders   *scheduler.ReminderScheduler
	Metrics     telemetry.Metrics
	// RunConfig rebuilds the run options from configuration.
	RunConfig func() scheduler.RunConfig
	// Mirrored reports whether a secondary channel is configured.
	Mirrored bool
}

// New builds the engine. It fails only on configuration the engine cannot
// run with.
func New(d Deps) (*Engine, error) {
	if d.Config == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if d.DB == nil {
		return nil, fmt.Errorf("engine: database is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := d.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	cfg := d.Config

	metrics, err := telemetry.New(cfg.Observability, d.CloudWatch, types.NewLogger(logger.With("component", "telemetry")))
	if err != nil {
		return nil, err
	}

	primary, err := primaryChannel(d, clock, logger)
	if err != nil {
		return nil, err
	}
	secondary, err := secondaryChannel(d, logger)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Escalation.ReminderTimezone)
	if err != nil {
		return nil, fmt.Errorf("engine: reminder timezone: %w", err)
	}

	schedules := db.NewReminderScheduleRepository(d.DB)
	audit := db.NewAuditRepository(d.DB)
	obligations := db.NewObligationRepository(d.DB).WithPortalURL(cfg.Server.PortalURL)

	dispatcher := core.NewDispatcher(core.DispatcherConfig{
		Primary:    primary,
		Secondary:  secondary,
		Recipients: db.NewRecipientRepository(d.DB),
		Audit:      audit,
		Metrics:    metrics,
		Clock:      clock,
		Logger:     types.NewLogger(logger.With("component", "dispatcher")),
	})

	sweeper := scheduler.NewSweepEngine(schedules, obligations, dispatcher, logger,
		scheduler.WithReminderTimezone(loc),
		scheduler.WithSecondaryMirror(secondary != nil),
	)
	coordinator := scheduler.NewCoordinator(sweeper, logger,
		scheduler.WithRunRecorder(audit),
		scheduler.WithRunObserver(metrics),
		scheduler.WithClock(clock),
	)

	logger.Info("escalation engine assembled",
		"primary_channel", string(primary.Type()),
		"mirror", secondary != nil,
		"metrics_backend", cfg.Observability.MetricsBackend,
		"reminder_timezone", loc.String(),
	)

	return &Engine{
		Coordinator: coordinator,
		Reminders:   scheduler.NewReminderScheduler(schedules, logger),
		Metrics:     metrics,
		RunConfig:   func() scheduler.RunConfig { return scheduler.RunConfigFromEnv(cfg.Escalation) },
		Mirrored:    secondary != nil,
	}, nil
}

func primaryChannel(d Deps, clock types.Clock, logger *slog.Logger) (types.NotificationChannel, error) {
	cfg := d.Config
	switch cfg.Channels.Primary {
	case "queue":
		if d.SQS == nil || cfg.AWS.NotificationQueue == "" {
			return nil, fmt.Errorf("engine: queue channel requires SQS_NOTIFICATIONS and an SQS client")
		}
		return core.NewQueueChannel(d.SQS, cfg.AWS.NotificationQueue, clock,
			types.NewLogger(logger.With("channel", string(types.ChannelQueue)))), nil
	case "email", "":
		provider := d.EmailProvider
		if provider == nil {
			provider = external.NewEmailProvider(cfg.Email, logger)
		}
		ch, err := email.NewEmailChannel(email.EmailChannelConfig{
			Provider: provider,
			Email:    cfg.Email,
			Logger:   types.NewLogger(logger.With("channel", string(types.ChannelEmail))),
		})
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	return nil, fmt.Errorf("engine: unknown primary channel %q", cfg.Channels.Primary)
}

// secondaryChannel returns a nil interface, not a typed nil, when the mirror
// is disabled.
func secondaryChannel(d Deps, logger *slog.Logger) (types.NotificationChannel, error) {
	ch, err := mirror.NewChannel(d.Config.Mirror, types.NewLogger(logger), d.MirrorOptions...)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, nil
	}
	return ch, nil
}
