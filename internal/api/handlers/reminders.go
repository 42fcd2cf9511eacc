package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"policyportal/internal/api"
	"policyportal/internal/types"
)

// ReminderService registers and cancels reminder cascades.
// *scheduler.ReminderScheduler implements it.
type ReminderService interface {
	ScheduleReminders(ctx context.Context, subjectType types.SubjectType, subjectID string, dueDate time.Time) (*types.ReminderSchedule, error)
	GetSchedule(ctx context.Context, subjectType types.SubjectType, subjectID string) (*types.ReminderSchedule, error)
	CancelReminders(ctx context.Context, subjectType types.SubjectType, subjectID string) error
}

// ScheduleRequest is the body of PUT /v1/reminders/{subject_type}/{subject_id}.
type ScheduleRequest struct {
	DueDate time.Time `json:"due_date" validate:"required"`
}

// ReminderHandler manages reminder schedules for portal obligations.
type ReminderHandler struct {
	service  ReminderService
	validate *validator.Validate
}

func NewReminderHandler(service ReminderService, v *validator.Validate) *ReminderHandler {
	if v == nil {
		v = validator.New()
	}
	return &ReminderHandler{service: service, validate: v}
}

// RegisterRoutes mounts the reminder routes under /reminders.
func (h *ReminderHandler) RegisterRoutes(r chi.Router) {
	const path = "/reminders/{subject_type}/{subject_id}"
	r.Put(path, h.Schedule)
	r.Get(path, h.Get)
	r.Delete(path, h.Cancel)
}

// Schedule creates or reschedules the cascade. Rescheduling clears every
// sent flag.
func (h *ReminderHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := api.DecodeJSON(w, r, &req, false); err != nil {
		api.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.Error(w, r, api.ValidationError(err))
		return
	}

	subjectType, subjectID := subjectFromPath(r)
	rec, err := h.service.ScheduleReminders(r.Context(), subjectType, subjectID, req.DueDate)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, r, http.StatusOK, rec)
}

func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	subjectType, subjectID := subjectFromPath(r)
	rec, err := h.service.GetSchedule(r.Context(), subjectType, subjectID)
	if err != nil {
		api.Error(w, r, err)
		return
	}
	api.JSON(w, r, http.StatusOK, rec)
}

// Cancel deletes the schedule of an obligation resolved outside a sweep.
func (h *ReminderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	subjectType, subjectID := subjectFromPath(r)
	if err := h.service.CancelReminders(r.Context(), subjectType, subjectID); err != nil {
		api.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func subjectFromPath(r *http.Request) (types.SubjectType, string) {
	return types.SubjectType(chi.URLParam(r, "subject_type")), chi.URLParam(r, "subject_id")
}
