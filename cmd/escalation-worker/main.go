// Package main is the long-running escalation worker.
//
// It loads configuration, opens the database pool, assembles the escalation
// engine, starts the periodic driver and serves the HTTP control surface.
// SIGINT/SIGTERM stop the driver, drain the HTTP server and give an
// in-flight run a bounded grace period before its context is cancelled.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"policyportal/internal/api"
	"policyportal/internal/api/handlers"
	"policyportal/internal/config"
	"policyportal/internal/db"
	"policyportal/internal/engine"
	"policyportal/internal/scheduler"
	"policyportal/internal/types"
)

const (
	httpShutdownTimeout = 10 * time.Second
	// runDrainTimeout is how long an in-flight run may continue after a
	// shutdown signal.
	runDrainTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := types.NewSlogLogger(os.Stdout, cfg.LogLevel).With("service", cfg.Service)
	logger.Info("escalation worker starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	pool, err := db.NewPool(sigCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(sigCtx, pool); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	awsCfg, err := loadAWSConfig(sigCtx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	eng, err := engine.New(engine.Deps{
		Config:     cfg,
		DB:         pool,
		Logger:     logger,
		SQS:        newSQSClient(awsCfg, cfg.AWS),
		CloudWatch: newCloudWatchClient(awsCfg, cfg.AWS),
	})
	if err != nil {
		return fmt.Errorf("building escalation engine: %w", err)
	}

	// Runs get their own context so a shutdown signal stops scheduling
	// without cutting a sweep short.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	driver := scheduler.NewDriver(eng.Coordinator, eng.RunConfig, logger)

	srv, err := newServer(runCtx, logger, eng, driver, cfg)
	if err != nil {
		return err
	}
	srv.HealthProbes = []api.HealthProbe{
		api.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
	}
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	if cfg.Escalation.Autostart {
		if err := driver.Start(runCtx, cfg.Escalation.IntervalMinutes); err != nil {
			return fmt.Errorf("starting escalation driver: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		driver.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		httpErr := httpServer.Shutdown(shutdownCtx)
		if httpErr != nil {
			logger.Error("HTTP server shutdown error", "error", httpErr)
		}

		drainRuns(driver, cancelRuns, runDrainTimeout, logger)
		return httpErr
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("escalation worker stopped cleanly")
	return nil
}

// newServer wires the HTTP surface. Manual runs and driver starts are bound
// to runCtx rather than the request.
func newServer(runCtx context.Context, logger *slog.Logger, eng *engine.Engine, driver *scheduler.Driver, cfg *config.Config) (*api.Server, error) {
	srv, err := api.NewServer(logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.MetricsHandler = eng.Metrics.Handler()

	escalation := handlers.NewEscalationHandler(handlers.EscalationHandlerConfig{
		Runner:                 eng.Coordinator,
		Driver:                 driver,
		RunConfig:              eng.RunConfig,
		DefaultIntervalMinutes: cfg.Escalation.IntervalMinutes,
		BaseContext:            runCtx,
		Validator:              srv.Validator,
		Logger:                 logger,
	})
	reminders := handlers.NewReminderHandler(eng.Reminders, srv.Validator)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		escalation.RegisterRoutes,
		reminders.RegisterRoutes,
	)
	return srv, nil
}

// waiter is the part of the driver drainRuns needs.
type waiter interface {
	Wait()
}

// drainRuns waits for in-flight runs. After timeout the run context is
// cancelled and the sweep stops at its next item.
func drainRuns(w waiter, cancel context.CancelFunc, timeout time.Duration, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		logger.Warn("escalation run still in progress, cancelling", "timeout", timeout)
		cancel()
	}
	<-done
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
}

// newSQSClient honours AWS_ENDPOINT_URL for LocalStack.
func newSQSClient(awsCfg aws.Config, cfg config.AWSConfig) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})
}

func newCloudWatchClient(awsCfg aws.Config, cfg config.AWSConfig) *cloudwatch.Client {
	return cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})
}
