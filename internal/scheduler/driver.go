package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"policyportal/internal/types"
)

// Runner is the coordinator surface the driver needs.
type Runner interface {
	RunOnce(ctx context.Context, cfg RunConfig) *types.EscalationRunResult
	LastRunResult() *types.EscalationRunResult
}

// DriverStatus is returned by Driver.Status.
type DriverStatus struct {
	Active          bool                       `json:"active"`
	IntervalMinutes int                        `json:"interval_minutes,omitempty"`
	Running         bool                       `json:"running"`
	LastRunResult   *types.EscalationRunResult `json:"last_run_result"`
}

// Driver invokes the coordinator on a wall-clock interval. Each tick runs in
// its own goroutine; the coordinator guard decides whether it actually runs.
type Driver struct {
	runner Runner
	config func() RunConfig
	logger *slog.Logger

	mu       sync.Mutex
	active   bool
	interval int
	stopChan chan struct{}
	loop     sync.WaitGroup
	runs     sync.WaitGroup
	inFlight int
}

// NewDriver creates a stopped driver. config is read at every tick so
// toggles changed between runs take effect.
func NewDriver(runner Runner, config func() RunConfig, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultRunConfig
	}
	return &Driver{runner: runner, config: config, logger: logger}
}

// Start fires a run immediately, then one every intervalMinutes. Starting an
// active driver logs a warning and changes nothing.
func (d *Driver) Start(ctx context.Context, intervalMinutes int) error {
	if intervalMinutes < 1 {
		return types.NewAppError(types.ErrCodeValidationInterval,
			fmt.Sprintf("interval must be at least 1 minute, got %d", intervalMinutes), nil)
	}

	d.mu.Lock()
	if d.active {
		current := d.interval
		d.mu.Unlock()
		d.logger.WarnContext(ctx, "escalation driver already active", "interval_minutes", current)
		return nil
	}
	d.active = true
	d.interval = intervalMinutes
	d.stopChan = make(chan struct{})
	stop := d.stopChan
	d.mu.Unlock()

	d.fire(ctx)

	d.loop.Add(1)
	go d.tick(ctx, time.Duration(intervalMinutes)*time.Minute, stop)

	d.logger.InfoContext(ctx, "escalation driver started", "interval_minutes", intervalMinutes)
	return nil
}

func (d *Driver) tick(ctx context.Context, every time.Duration, stop chan struct{}) {
	defer d.loop.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.deactivate(ctx, stop)
			return
		case <-stop:
			return
		case <-ticker.C:
			d.fire(ctx)
		}
	}
}

// deactivate marks the driver stopped after its context ended. A Stop that
// got there first already did this.
func (d *Driver) deactivate(ctx context.Context, stop chan struct{}) {
	d.mu.Lock()
	if !d.active || d.stopChan != stop {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.interval = 0
	close(d.stopChan)
	d.mu.Unlock()
	d.logger.InfoContext(ctx, "escalation driver stopped with its context", "error", ctx.Err())
}

func (d *Driver) fire(ctx context.Context) {
	d.mu.Lock()
	d.inFlight++
	d.mu.Unlock()

	d.runs.Add(1)
	go func() {
		defer d.runs.Done()
		defer func() {
			d.mu.Lock()
			d.inFlight--
			d.mu.Unlock()
		}()

		res := d.runner.RunOnce(ctx, d.config())
		if !res.Success {
			d.logger.WarnContext(ctx, "escalation run finished with errors",
				"run_id", res.RunID,
				"errors", res.Errors,
			)
		}
	}()
}

// Stop cancels future ticks. A run already in progress completes and is
// still recorded by the coordinator.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.interval = 0
	close(d.stopChan)
	d.mu.Unlock()

	d.loop.Wait()
	d.logger.Info("escalation driver stopped")
}

// Wait blocks until every run the driver started has returned.
func (d *Driver) Wait() {
	d.runs.Wait()
}

// Status reports whether the driver is active and the last run result.
func (d *Driver) Status() DriverStatus {
	d.mu.Lock()
	st := DriverStatus{
		Active:          d.active,
		IntervalMinutes: d.interval,
		Running:         d.inFlight > 0,
	}
	d.mu.Unlock()
	st.LastRunResult = d.runner.LastRunResult()
	return st
}
