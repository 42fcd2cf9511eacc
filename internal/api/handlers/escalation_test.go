package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyportal/internal/api"
	"policyportal/internal/scheduler"
	"policyportal/internal/types"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeRunner struct {
	mu     sync.Mutex
	cfgs   []scheduler.RunConfig
	ctxs   []context.Context
	result *types.EscalationRunResult
	last   *types.EscalationRunResult
}

func (f *fakeRunner) RunOnce(ctx context.Context, cfg scheduler.RunConfig) *types.EscalationRunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgs = append(f.cfgs, cfg)
	f.ctxs = append(f.ctxs, ctx)
	if f.result != nil {
		return f.result
	}
	return &types.EscalationRunResult{RunID: "run_test", Errors: []string{}, Success: true,
		Categories: map[types.SweepCategory]types.SweepResult{}}
}

func (f *fakeRunner) LastRunResult() *types.EscalationRunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeDriver struct {
	startErr error
	started  []int
	startCtx context.Context
	stopped  int
	active   bool
	interval int
}

func (f *fakeDriver) Start(ctx context.Context, intervalMinutes int) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, intervalMinutes)
	f.startCtx = ctx
	f.active = true
	f.interval = intervalMinutes
	return nil
}

func (f *fakeDriver) Stop() {
	f.stopped++
	f.active = false
	f.interval = 0
}

func (f *fakeDriver) Status() scheduler.DriverStatus {
	return scheduler.DriverStatus{Active: f.active, IntervalMinutes: f.interval}
}

type baseKey struct{}

// =============================================================================
// Helpers
// =============================================================================

func newRouter(t *testing.T, regs ...api.RouteRegistrar) (http.Handler, *api.Server) {
	t.Helper()
	srv, err := api.NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv.V1RouteRegistrars = regs
	srv.MountRoutes()
	return srv.Handler(), srv
}

func newEscalationRouter(t *testing.T, runner *fakeRunner, driver *fakeDriver) http.Handler {
	t.Helper()
	// The validator is shared with the chassis so field names match the JSON.
	srv, err := api.NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	h := NewEscalationHandler(EscalationHandlerConfig{
		Runner:                 runner,
		Driver:                 driver,
		RunConfig:              scheduler.DefaultRunConfig,
		DefaultIntervalMinutes: 15,
		BaseContext:            context.WithValue(context.Background(), baseKey{}, "worker"),
		Validator:              srv.Validator,
	})
	srv.V1RouteRegistrars = []api.RouteRegistrar{h.RegisterRoutes}
	srv.MountRoutes()
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorDetail {
	t.Helper()
	var resp api.APIErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

// =============================================================================
// Tests
// =============================================================================

func TestEscalation_Status(t *testing.T) {
	driver := &fakeDriver{active: true, interval: 15}
	h := newEscalationRouter(t, &fakeRunner{}, driver)

	rec := do(t, h, http.MethodGet, "/v1/escalation/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st scheduler.DriverStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.True(t, st.Active)
	assert.Equal(t, 15, st.IntervalMinutes)
}

func TestEscalation_LastRun_NoneYet(t *testing.T) {
	h := newEscalationRouter(t, &fakeRunner{}, &fakeDriver{})

	rec := do(t, h, http.MethodGet, "/v1/escalation/runs/last", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundRun), decodeError(t, rec).Code)
}

func TestEscalation_LastRun(t *testing.T) {
	runner := &fakeRunner{last: &types.EscalationRunResult{RunID: "run_1", Success: true, ApprovalNotificationsSent: 2}}
	h := newEscalationRouter(t, runner, &fakeDriver{})

	rec := do(t, h, http.MethodGet, "/v1/escalation/runs/last", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res types.EscalationRunResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "run_1", res.RunID)
	assert.Equal(t, 2, res.ApprovalNotificationsSent)
}

func TestEscalation_Run_EmptyBodyUsesConfig(t *testing.T) {
	runner := &fakeRunner{}
	h := newEscalationRouter(t, runner, &fakeDriver{})

	rec := do(t, h, http.MethodPost, "/v1/escalation/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.cfgs, 1)
	assert.Equal(t, scheduler.DefaultRunConfig(), runner.cfgs[0])
}

func TestEscalation_Run_Overrides(t *testing.T) {
	runner := &fakeRunner{}
	h := newEscalationRouter(t, runner, &fakeDriver{})

	body := `{
		"process_approval_reminders": false,
		"categories": ["approvals", "task_escalations"],
		"reference_time": "2026-03-09T08:00:00Z"
	}`
	rec := do(t, h, http.MethodPost, "/v1/escalation/runs", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.cfgs, 1)

	cfg := runner.cfgs[0]
	assert.True(t, cfg.ProcessTaskEscalations)
	assert.False(t, cfg.ProcessApprovalReminders, "explicit false wins over the category list")
	assert.False(t, cfg.ProcessTaskDueDateReminders)
	assert.False(t, cfg.ProcessPolicyAcknowledgements)
	assert.True(t, cfg.Now.Equal(time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)))
}

func TestEscalation_Run_UsesBaseContext(t *testing.T) {
	runner := &fakeRunner{}
	h := newEscalationRouter(t, runner, &fakeDriver{})

	req := httptest.NewRequest(http.MethodPost, "/v1/escalation/runs", nil)
	req.Header.Set("X-Request-Id", "req-42")
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.ctxs, 1)
	runCtx := runner.ctxs[0]
	assert.NoError(t, runCtx.Err(), "client cancellation must not reach the run")
	assert.Equal(t, "worker", runCtx.Value(baseKey{}))
	assert.Equal(t, "req-42", types.GetRequestID(runCtx))
}

func TestEscalation_Run_AlreadyRunning(t *testing.T) {
	runner := &fakeRunner{result: &types.EscalationRunResult{
		RunID:  "run_rejected",
		Errors: []string{scheduler.ErrAlreadyRunning.Error()},
	}}
	h := newEscalationRouter(t, runner, &fakeDriver{})

	rec := do(t, h, http.MethodPost, "/v1/escalation/runs", "{}")
	require.Equal(t, http.StatusConflict, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeConflictRunning), detail.Code)
	assert.Equal(t, "run_rejected", detail.Details["run_id"])
}

func TestEscalation_Run_FailedRunStill200(t *testing.T) {
	runner := &fakeRunner{result: &types.EscalationRunResult{
		RunID:      "run_partial",
		Errors:     []string{"approvals: database unavailable"},
		Categories: map[types.SweepCategory]types.SweepResult{},
	}}
	h := newEscalationRouter(t, runner, &fakeDriver{})

	rec := do(t, h, http.MethodPost, "/v1/escalation/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res types.EscalationRunResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.False(t, res.Success)
	assert.Equal(t, []string{"approvals: database unavailable"}, res.Errors)
}

func TestEscalation_Run_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", `{"process_everything": true}`},
		{"malformed", `{"categories": [`},
		{"wrong type", `{"process_task_escalations": "yes"}`},
		{"unknown category", `{"categories": ["invoices"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			h := newEscalationRouter(t, runner, &fakeDriver{})

			rec := do(t, h, http.MethodPost, "/v1/escalation/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(types.ErrCodeValidationRequestBody), decodeError(t, rec).Code)
			assert.Empty(t, runner.cfgs)
		})
	}
}

func TestEscalation_Run_InvalidCategoryReportsField(t *testing.T) {
	h := newEscalationRouter(t, &fakeRunner{}, &fakeDriver{})

	rec := do(t, h, http.MethodPost, "/v1/escalation/runs", `{"categories": ["approvals", "invoices"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	fields, ok := decodeError(t, rec).Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "oneof", fields["categories[1]"])
}

func TestEscalation_StartDriver(t *testing.T) {
	driver := &fakeDriver{}
	h := newEscalationRouter(t, &fakeRunner{}, driver)

	rec := do(t, h, http.MethodPost, "/v1/escalation/driver/start", `{"interval_minutes": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{5}, driver.started)
	assert.Equal(t, "worker", driver.startCtx.Value(baseKey{}), "driver must outlive the request")

	var st scheduler.DriverStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.True(t, st.Active)
	assert.Equal(t, 5, st.IntervalMinutes)
}

func TestEscalation_StartDriver_DefaultInterval(t *testing.T) {
	driver := &fakeDriver{}
	h := newEscalationRouter(t, &fakeRunner{}, driver)

	rec := do(t, h, http.MethodPost, "/v1/escalation/driver/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{15}, driver.started)
}

func TestEscalation_StartDriver_InvalidInterval(t *testing.T) {
	driver := &fakeDriver{}
	h := newEscalationRouter(t, &fakeRunner{}, driver)

	rec := do(t, h, http.MethodPost, "/v1/escalation/driver/start", `{"interval_minutes": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, driver.started)
}

func TestEscalation_StartDriver_Error(t *testing.T) {
	driver := &fakeDriver{startErr: types.NewAppError(types.ErrCodeValidationInterval, "bad interval", nil)}
	h := newEscalationRouter(t, &fakeRunner{}, driver)

	rec := do(t, h, http.MethodPost, "/v1/escalation/driver/start", `{"interval_minutes": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInterval), decodeError(t, rec).Code)
}

func TestEscalation_StopDriver(t *testing.T) {
	driver := &fakeDriver{active: true, interval: 15}
	h := newEscalationRouter(t, &fakeRunner{}, driver)

	rec := do(t, h, http.MethodPost, "/v1/escalation/driver/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, driver.stopped)

	var st scheduler.DriverStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.False(t, st.Active)
}

func TestEscalation_WithRealDriver(t *testing.T) {
	runner := &fakeRunner{}
	driver := scheduler.NewDriver(runner, scheduler.DefaultRunConfig, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() {
		driver.Stop()
		driver.Wait()
	})

	h, _ := newRouter(t, NewEscalationHandler(EscalationHandlerConfig{
		Runner:                 runner,
		Driver:                 driver,
		DefaultIntervalMinutes: 60,
	}).RegisterRoutes)

	rec := do(t, h, http.MethodPost, "/v1/escalation/driver/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	driver.Wait()

	runner.mu.Lock()
	calls := len(runner.cfgs)
	runner.mu.Unlock()
	assert.Equal(t, 1, calls, "start fires one run immediately")
	assert.True(t, driver.Status().Active)
}
