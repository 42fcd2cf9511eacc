package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"policyportal/internal/types"
)

// SweepEngine runs one category pass over pending reminder schedules.
type SweepEngine struct {
	store       ScheduleStore
	obligations ObligationSource
	dispatcher  Dispatcher
	loc         *time.Location
	mirror      bool
	logger      *slog.Logger
}

// SweepOption configures a SweepEngine.
type SweepOption func(*SweepEngine)

// WithReminderTimezone sets the zone used for the "already reminded today"
// calendar comparison. Default UTC.
func WithReminderTimezone(loc *time.Location) SweepOption {
	return func(e *SweepEngine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithSecondaryMirror requests the secondary channel on every intent.
func WithSecondaryMirror(enabled bool) SweepOption {
	return func(e *SweepEngine) { e.mirror = enabled }
}

func NewSweepEngine(store ScheduleStore, obligations ObligationSource, dispatcher Dispatcher, logger *slog.Logger, opts ...SweepOption) *SweepEngine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &SweepEngine{
		store:       store,
		obligations: obligations,
		dispatcher:  dispatcher,
		loc:         time.UTC,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sweep processes up to spec.Limit pending schedules. Per-item failures are
// collected in the result and never abort the batch. The returned error is
// non-nil only when the candidate list cannot be fetched or ctx ends early.
func (e *SweepEngine) Sweep(ctx context.Context, spec CategorySpec, now time.Time) (types.SweepResult, error) {
	var res types.SweepResult

	today := calendarDay(now, e.loc)
	candidates, err := e.store.ListPending(ctx, spec.filter(now, today))
	if err != nil {
		return res, fmt.Errorf("listing pending %s schedules: %w", spec.SubjectType, err)
	}

	log := e.logger.With("category", string(spec.Category))

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("sweep interrupted after %d of %d: %w", res.Checked, len(candidates), err)
		}
		res.Checked++

		sent, err := e.process(ctx, spec, rec, now, today)
		if err != nil {
			log.WarnContext(ctx, "reminder not sent",
				"subject_id", rec.SubjectID,
				"subject_type", string(rec.SubjectType),
				"error", err,
			)
			res.Errors = append(res.Errors, fmt.Sprintf("subject %s: %v", rec.SubjectID, err))
		}
		if sent {
			res.Sent++
		}
	}

	log.InfoContext(ctx, "sweep complete",
		"checked", res.Checked,
		"sent", res.Sent,
		"errors", len(res.Errors),
	)
	return res, nil
}

// process handles one candidate. sent reports whether a notification went out;
// err may be set even when sent is true (the flag could not be persisted).
func (e *SweepEngine) process(ctx context.Context, spec CategorySpec, rec *types.ReminderSchedule, now, today time.Time) (sent bool, err error) {
	eval := Evaluate(now, rec.DueDate)
	if eval.Stage == types.StageNone || !spec.allows(eval.Stage) {
		return false, nil
	}
	if rec.Sent(eval.Stage) {
		return false, nil
	}
	if sameDay(rec.LastReminderDate, today) {
		return false, nil
	}

	// The obligation may have resolved since the schedule was listed.
	ob, err := e.obligations.Get(ctx, rec.SubjectType, rec.SubjectID)
	if err != nil && !types.IsCode(err, types.ErrCodeNotFoundObligation) {
		return false, fmt.Errorf("checking obligation: %w", err)
	}
	if !ob.IsOpen() {
		if err := e.store.Delete(ctx, rec.ID); err != nil {
			return false, fmt.Errorf("deleting resolved schedule: %w", err)
		}
		e.logger.InfoContext(ctx, "obligation resolved, schedule removed",
			"subject_id", rec.SubjectID,
			"subject_type", string(rec.SubjectType),
		)
		return false, nil
	}

	intent := e.intent(rec, ob, eval)
	if _, err := e.dispatcher.Send(ctx, intent); err != nil {
		return false, fmt.Errorf("dispatch %s: %w", intent.NotificationType, err)
	}

	if err := e.store.MarkSent(ctx, rec.ID, eval.Stage, today); err != nil {
		return true, fmt.Errorf("marking %s sent: %w", eval.Stage, err)
	}
	// Earlier stages can no longer fire in this epoch.
	for _, st := range earlierStages(eval.Stage) {
		if rec.Sent(st) {
			continue
		}
		if err := e.store.MarkSent(ctx, rec.ID, st, today); err != nil {
			e.logger.WarnContext(ctx, "failed to mark superseded stage",
				"subject_id", rec.SubjectID,
				"stage", string(st),
				"error", err,
			)
		}
	}
	return true, nil
}

func (e *SweepEngine) intent(rec *types.ReminderSchedule, ob *types.Obligation, eval Evaluation) *types.NotificationIntent {
	return &types.NotificationIntent{
		RecipientID:      ob.AssigneeID,
		NotificationType: types.NotificationTypeFor(rec.SubjectType, eval.Stage),
		RelatedSubjectID: rec.SubjectID,
		SendPrimary:      true,
		SendSecondary:    e.mirror,
		SubjectType:      rec.SubjectType,
		Stage:            eval.Stage,
		DaysToDue:        eval.DaysToDue,
		Obligation:       ob,
	}
}
