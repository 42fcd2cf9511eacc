// Package main is the entrypoint for the escalation trigger Lambda function.
//
// An EventBridge schedule (or a manual invocation) delivers a
// scheduler.TriggerPayload. The handler takes the escalation_locks lease so
// concurrent containers never sweep the same records, runs one escalation
// pass and returns the run result as the invocation output.
//
// A run that finds the lease held is reported as rejected and returns no
// error, so the Lambda runtime does not retry it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"policyportal/internal/config"
	"policyportal/internal/db"
	"policyportal/internal/engine"
	"policyportal/internal/scheduler"
	"policyportal/internal/types"
)

const (
	runLockID = "escalation"
	// defaultLeaseTTL applies when the invocation carries no deadline.
	defaultLeaseTTL = 15 * time.Minute
	// leaseMargin keeps the lease alive a little past the Lambda deadline so
	// a container frozen mid-run is not overtaken immediately.
	leaseMargin = time.Minute
)

// runLock is the lease held for the duration of one run.
type runLock interface {
	Acquire(ctx context.Context, lockID, holderID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID, holderID string) error
}

// trigger is the Lambda handler and its dependencies.
type trigger struct {
	lock      runLock
	runner    scheduler.Runner
	runConfig func() scheduler.RunConfig
	clock     types.Clock
	logger    *slog.Logger
	newID     func() string
}

// Handle runs one escalation pass guarded by the run lease.
func (t *trigger) Handle(ctx context.Context, payload scheduler.TriggerPayload) (*types.EscalationRunResult, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		ctx = types.WithRequestID(ctx, lc.AwsRequestID)
	}

	holderID := t.newID()
	acquired, err := t.lock.Acquire(ctx, runLockID, holderID, leaseTTL(ctx, t.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !acquired {
		t.logger.WarnContext(ctx, "escalation run skipped, lease held by another invocation",
			"lock_id", runLockID,
			"request_id", types.GetRequestID(ctx),
		)
		now := t.clock.Now()
		return &types.EscalationRunResult{
			RunID:     holderID,
			StartTime: now,
			EndTime:   now,
			Errors:    []string{scheduler.ErrAlreadyRunning.Error()},
		}, nil
	}

	defer func() {
		// The invocation context may already be done.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := t.lock.Release(releaseCtx, runLockID, holderID); err != nil {
			t.logger.ErrorContext(ctx, "failed to release run lock", "lock_id", runLockID, "error", err)
		}
	}()

	res := t.runner.RunOnce(ctx, payload.Apply(t.runConfig()))
	t.logger.InfoContext(ctx, "escalation trigger completed",
		"run_id", res.RunID,
		"success", res.Success,
		"sent", res.TotalSent(),
		"errors", len(res.Errors),
	)
	return res, nil
}

// leaseTTL covers the rest of the invocation plus a margin.
func leaseTTL(ctx context.Context, now time.Time) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultLeaseTTL
	}
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return leaseMargin
	}
	return remaining + leaseMargin
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := types.NewSlogLogger(os.Stdout, cfg.LogLevel).With("service", cfg.Service)
	logger.Info("escalation trigger initializing (cold start)",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	endpoint := cfg.AWS.EndpointURL

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	eng, err := engine.New(engine.Deps{
		Config: cfg,
		DB:     pool,
		Logger: logger,
		SQS: sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
		CloudWatch: cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
	})
	if err != nil {
		return fmt.Errorf("building escalation engine: %w", err)
	}

	t, err := newTrigger(ctx, pool, eng.Coordinator, eng.RunConfig, logger)
	if err != nil {
		return err
	}

	// Local mode: read the payload from stdin instead of starting the Lambda
	// runtime. An empty body runs every enabled category.
	//   echo '{"categories":["approvals"]}' | go run ./cmd/escalation-trigger
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading trigger payload from stdin")
		res, err := t.Handle(ctx, readPayload(os.Stdin, logger))
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(res)
	}

	lambda.Start(t.Handle)
	return nil
}

// newTrigger applies the engine schema so the lease table exists even when
// no worker has started against this database, then builds the trigger.
func newTrigger(ctx context.Context, store db.DBTX, runner scheduler.Runner, runConfig func() scheduler.RunConfig, logger *slog.Logger) (*trigger, error) {
	if err := db.EnsureSchema(ctx, store); err != nil {
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &trigger{
		lock:      db.NewRunLockRepository(store),
		runner:    runner,
		runConfig: runConfig,
		clock:     types.RealClock{},
		logger:    logger,
		newID:     uuid.NewString,
	}, nil
}

// readPayload decodes a trigger payload, falling back to the zero payload on
// empty or unreadable input.
func readPayload(r io.Reader, logger *slog.Logger) scheduler.TriggerPayload {
	var p scheduler.TriggerPayload
	raw, err := io.ReadAll(r)
	if err != nil || len(raw) == 0 {
		return p
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		logger.Warn("ignoring malformed trigger payload", "error", err)
		return scheduler.TriggerPayload{}
	}
	return p
}
