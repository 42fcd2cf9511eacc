// Package handlers contains the HTTP handlers mounted under /v1 by the
// escalation worker.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"policyportal/internal/api"
	"policyportal/internal/scheduler"
	"policyportal/internal/types"
)

// EscalationRunner is the coordinator surface used by the handlers.
type EscalationRunner interface {
	RunOnce(ctx context.Context, cfg scheduler.RunConfig) *types.EscalationRunResult
	LastRunResult() *types.EscalationRunResult
}

// DriverController starts and stops the periodic driver.
type DriverController interface {
	Start(ctx context.Context, intervalMinutes int) error
	Stop()
	Status() scheduler.DriverStatus
}

// RunRequest is the optional body of POST /v1/escalation/runs. Toggles left
// out keep their configured value.
type RunRequest struct {
	ProcessTaskEscalations        *bool                 `json:"process_task_escalations,omitempty"`
	ProcessApprovalReminders      *bool                 `json:"process_approval_reminders,omitempty"`
	ProcessTaskDueDateReminders   *bool                 `json:"process_task_due_date_reminders,omitempty"`
	ProcessPolicyAcknowledgements *bool                 `json:"process_policy_acknowledgements,omitempty"`
	ReferenceTime                 *time.Time            `json:"reference_time,omitempty"`
	Categories                    []types.SweepCategory `json:"categories,omitempty" validate:"omitempty,dive,oneof=task_escalations task_due_dates approvals policy_acknowledgements"`
}

// StartDriverRequest is the body of POST /v1/escalation/driver/start. A
// missing interval uses the configured one.
type StartDriverRequest struct {
	IntervalMinutes int `json:"interval_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
}

// EscalationHandlerConfig wires an EscalationHandler.
type EscalationHandlerConfig struct {
	Runner EscalationRunner
	Driver DriverController
	// RunConfig returns the configured options for a run.
	RunConfig func() scheduler.RunConfig
	// DefaultIntervalMinutes is used when a start request names none.
	DefaultIntervalMinutes int
	// BaseContext outlives requests. Driver ticks and manual runs use it so
	// a disconnecting client does not cancel a sweep.
	BaseContext context.Context
	Validator   *validator.Validate
	Logger      *slog.Logger
}

// EscalationHandler exposes the coordinator and driver over HTTP.
type EscalationHandler struct {
	runner          EscalationRunner
	driver          DriverController
	runConfig       func() scheduler.RunConfig
	defaultInterval int
	baseCtx         context.Context
	validate        *validator.Validate
	logger          *slog.Logger
}

func NewEscalationHandler(cfg EscalationHandlerConfig) *EscalationHandler {
	h := &EscalationHandler{
		runner:          cfg.Runner,
		driver:          cfg.Driver,
		runConfig:       cfg.RunConfig,
		defaultInterval: cfg.DefaultIntervalMinutes,
		baseCtx:         cfg.BaseContext,
		validate:        cfg.Validator,
		logger:          cfg.Logger,
	}
	if h.runConfig == nil {
		h.runConfig = scheduler.DefaultRunConfig
	}
	if h.baseCtx == nil {
		h.baseCtx = context.Background()
	}
	if h.validate == nil {
		h.validate = validator.New()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// RegisterRoutes mounts the escalation routes under /escalation.
func (h *EscalationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/escalation", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/runs/last", h.LastRun)
		r.Post("/runs", h.Run)
		r.Post("/driver/start", h.StartDriver)
		r.Post("/driver/stop", h.StopDriver)
	})
}

// Status handles GET /v1/escalation/status.
func (h *EscalationHandler) Status(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, r, http.StatusOK, h.driver.Status())
}

// LastRun handles GET /v1/escalation/runs/last.
func (h *EscalationHandler) LastRun(w http.ResponseWriter, r *http.Request) {
	last := h.runner.LastRunResult()
	if last == nil {
		api.Error(w, r, types.NewAppError(types.ErrCodeNotFoundRun, "no escalation run has completed", nil))
		return
	}
	api.JSON(w, r, http.StatusOK, last)
}

// Run handles POST /v1/escalation/runs. It blocks until the run finishes.
// A run that finds another in progress is answered with 409.
func (h *EscalationHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := api.DecodeJSON(w, r, &req, true); err != nil {
		api.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Error(w, r, api.ValidationError(err))
		return
	}

	cfg := req.apply(h.runConfig())

	requestID := types.GetRequestID(r.Context())
	h.logger.InfoContext(r.Context(), "manual escalation run requested", "request_id", requestID)

	res := h.runner.RunOnce(types.WithRequestID(h.baseCtx, requestID), cfg)
	if scheduler.Rejected(res) {
		api.Error(w, r, types.NewAppError(types.ErrCodeConflictRunning,
			"an escalation run is already in progress", scheduler.ErrAlreadyRunning).
			WithDetails(map[string]any{"run_id": res.RunID}))
		return
	}
	api.JSON(w, r, http.StatusOK, res)
}

// StartDriver handles POST /v1/escalation/driver/start. Starting an active
// driver is a no-op and still answers with the current status.
func (h *EscalationHandler) StartDriver(w http.ResponseWriter, r *http.Request) {
	var req StartDriverRequest
	if err := api.DecodeJSON(w, r, &req, true); err != nil {
		api.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Error(w, r, api.ValidationError(err))
		return
	}

	interval := req.IntervalMinutes
	if interval == 0 {
		interval = h.defaultInterval
	}
	if err := h.driver.Start(h.baseCtx, interval); err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, r, http.StatusOK, h.driver.Status())
}

// StopDriver handles POST /v1/escalation/driver/stop. A run in progress is
// allowed to finish.
func (h *EscalationHandler) StopDriver(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "escalation driver stop requested",
		"request_id", types.GetRequestID(r.Context()))
	h.driver.Stop()
	api.JSON(w, r, http.StatusOK, h.driver.Status())
}

func (req RunRequest) apply(cfg scheduler.RunConfig) scheduler.RunConfig {
	if req.ProcessTaskEscalations != nil {
		cfg.ProcessTaskEscalations = *req.ProcessTaskEscalations
	}
	if req.ProcessApprovalReminders != nil {
		cfg.ProcessApprovalReminders = *req.ProcessApprovalReminders
	}
	if req.ProcessTaskDueDateReminders != nil {
		cfg.ProcessTaskDueDateReminders = *req.ProcessTaskDueDateReminders
	}
	if req.ProcessPolicyAcknowledgements != nil {
		cfg.ProcessPolicyAcknowledgements = *req.ProcessPolicyAcknowledgements
	}
	return scheduler.TriggerPayload{
		ReferenceTime: req.ReferenceTime,
		Categories:    req.Categories,
	}.Apply(cfg)
}
