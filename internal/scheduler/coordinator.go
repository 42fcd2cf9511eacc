package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"policyportal/internal/types"
)

// Sweeper runs one category. *SweepEngine implements it.
type Sweeper interface {
	Sweep(ctx context.Context, spec CategorySpec, now time.Time) (types.SweepResult, error)
}

// Coordinator owns the Idle/Running guard and runs the enabled sweeps in
// order. A caller that finds a run in progress is rejected immediately.
type Coordinator struct {
	sweeper  Sweeper
	recorder RunRecorder
	observer RunObserver
	clock    types.Clock
	logger   *slog.Logger

	running atomic.Bool

	mu   sync.RWMutex
	last *types.EscalationRunResult
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

func WithRunRecorder(r RunRecorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = r }
}

func WithRunObserver(o RunObserver) CoordinatorOption {
	return func(c *Coordinator) { c.observer = o }
}

func WithClock(clock types.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

func NewCoordinator(sweeper Sweeper, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		sweeper: sweeper,
		clock:   types.RealClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunOnce executes one run and always returns a result. A rejected run has
// Success=false and a single ErrAlreadyRunning entry, and is not stored as
// the last result.
func (c *Coordinator) RunOnce(ctx context.Context, cfg RunConfig) *types.EscalationRunResult {
	start := c.clock.Now()
	res := &types.EscalationRunResult{
		RunID:     newRunID(start),
		StartTime: start,
		Errors:    []string{},
	}

	if !c.running.CompareAndSwap(false, true) {
		res.EndTime = c.clock.Now()
		res.Errors = append(res.Errors, ErrAlreadyRunning.Error())
		c.logger.WarnContext(ctx, "escalation run rejected", "run_id", res.RunID, "error", ErrAlreadyRunning)
		if c.observer != nil {
			c.observer.ObserveRejected(ctx)
		}
		return res
	}
	defer c.running.Store(false)

	ctx = types.WithRunID(ctx, res.RunID)
	log := c.logger.With("run_id", res.RunID)

	now := start
	if !cfg.Now.IsZero() {
		now = cfg.Now
	}

	specs := cfg.Categories()
	log.InfoContext(ctx, "escalation run started", "categories", len(specs), "now", now.Format(time.RFC3339))

	res.Categories = make(map[types.SweepCategory]types.SweepResult, len(specs))
	for _, spec := range specs {
		sr, err := c.sweep(ctx, spec, now)
		res.Categories[spec.Category] = sr
		tally(res, spec.Category, sr)

		for _, e := range sr.Errors {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", spec.Category, e))
		}
		if err != nil {
			log.ErrorContext(ctx, "sweep failed", "category", string(spec.Category), "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", spec.Category, err))
		}
	}

	res.EndTime = c.clock.Now()
	res.DurationMs = res.EndTime.Sub(res.StartTime).Milliseconds()
	res.Success = len(res.Errors) == 0

	if c.recorder != nil {
		if err := c.recorder.RecordRun(ctx, res); err != nil {
			log.ErrorContext(ctx, "failed to record escalation run", "error", err)
		}
	}
	if c.observer != nil {
		c.observer.ObserveRun(ctx, res)
	}

	c.mu.Lock()
	c.last = res
	c.mu.Unlock()

	log.InfoContext(ctx, "escalation run complete",
		"success", res.Success,
		"sent", res.TotalSent(),
		"errors", len(res.Errors),
		"duration_ms", res.DurationMs,
	)
	return res
}

// sweep runs one category, converting a panic into an error so remaining
// categories still run.
func (c *Coordinator) sweep(ctx context.Context, spec CategorySpec, now time.Time) (sr types.SweepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.sweeper.Sweep(ctx, spec, now)
}

func tally(res *types.EscalationRunResult, cat types.SweepCategory, sr types.SweepResult) {
	switch cat {
	case types.CategoryTaskEscalations:
		res.TasksProcessed += sr.Checked
		res.TaskNotificationsSent += sr.Sent
	case types.CategoryTaskDueDates:
		res.TaskDueDateRemindersSent += sr.Sent
	case types.CategoryApprovals:
		res.ApprovalsProcessed += sr.Checked
		res.ApprovalNotificationsSent += sr.Sent
	case types.CategoryPolicyAcknowledgements:
		res.PolicyAcknowledgementsProcessed += sr.Checked
		res.PolicyAcknowledgementNotificationsSent += sr.Sent
	}
}

// IsRunning reports whether a run is in progress.
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// LastRunResult returns the most recent completed run, or nil.
func (c *Coordinator) LastRunResult() *types.EscalationRunResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// newRunID is a sortable-ish time prefix plus random suffix.
func newRunID(t time.Time) string {
	return "run_" + t.UTC().Format("20060102T150405Z") + "_" + uuid.NewString()[:8]
}
