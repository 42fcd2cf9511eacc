package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"policyportal/internal/types"
)

// --- Mocks ---

// memStore is an in-memory reminder schedule store honouring the same
// contract as db.ReminderScheduleRepository.
type memStore struct {
	mu      sync.Mutex
	records map[string]*types.ReminderSchedule
	listErr error
	markErr error
	marks   []markCall
	deleted []string
	filters []types.PendingFilter
}

type markCall struct {
	ID     string
	Stage  types.Stage
	SentOn time.Time
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*types.ReminderSchedule)}
}

func (m *memStore) Upsert(_ context.Context, st types.SubjectType, id string, due time.Time) (*types.ReminderSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := types.ScheduleID(st, id)
	rec, ok := m.records[key]
	if !ok {
		rec = &types.ReminderSchedule{ID: key, SubjectType: st, SubjectID: id}
		m.records[key] = rec
	}
	rec.DueDate = due
	rec.Reminder3DaySent, rec.Reminder1DaySent, rec.OverdueSent = false, false, false
	cp := *rec
	return &cp, nil
}

func (m *memStore) Find(_ context.Context, st types.SubjectType, id string) (*types.ReminderSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[types.ScheduleID(st, id)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) ListPending(_ context.Context, f types.PendingFilter) ([]*types.ReminderSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, f)
	if m.listErr != nil {
		return nil, m.listErr
	}
	stages := f.Stages
	if len(stages) == 0 {
		stages = types.ReminderStages
	}
	var out []*types.ReminderSchedule
	for _, rec := range m.records {
		if f.SubjectType != "" && rec.SubjectType != f.SubjectType {
			continue
		}
		if !f.DueBefore.IsZero() && rec.DueDate.After(f.DueBefore) {
			continue
		}
		if !f.DueAfter.IsZero() && !rec.DueDate.After(f.DueAfter) {
			continue
		}
		if !f.NotRemindedOn.IsZero() && sameDay(rec.LastReminderDate, f.NotRemindedOn) {
			continue
		}
		if !pendingMatch(rec, f, stages) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func pendingMatch(rec *types.ReminderSchedule, f types.PendingFilter, stages []types.Stage) bool {
	if len(f.Windows) == 0 {
		for _, st := range stages {
			if !rec.Sent(st) {
				return true
			}
		}
		return false
	}
	for _, w := range f.Windows {
		if rec.Sent(w.Stage) {
			continue
		}
		if !w.DueAfter.IsZero() && !rec.DueDate.After(w.DueAfter) {
			continue
		}
		if !w.DueBefore.IsZero() && rec.DueDate.After(w.DueBefore) {
			continue
		}
		return true
	}
	return false
}

func (m *memStore) MarkSent(_ context.Context, id string, stage types.Stage, sentOn time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	rec, ok := m.records[id]
	if !ok {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "reminder schedule not found", nil)
	}
	switch stage {
	case types.StageThreeDay:
		rec.Reminder3DaySent = true
	case types.StageOneDay:
		rec.Reminder1DaySent = true
	case types.StageOverdue:
		rec.OverdueSent = true
	}
	d := sentOn
	rec.LastReminderDate = &d
	m.marks = append(m.marks, markCall{ID: id, Stage: stage, SentOn: sentOn})
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memStore) get(id string) *types.ReminderSchedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		cp := *rec
		return &cp
	}
	return nil
}

// memObligations serves obligations keyed by subject ID. Missing IDs are
// reported as not found.
type memObligations struct {
	mu    sync.Mutex
	items map[string]*types.Obligation
	err   error
}

func newMemObligations() *memObligations {
	return &memObligations{items: make(map[string]*types.Obligation)}
}

func (m *memObligations) add(st types.SubjectType, id, assignee string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = &types.Obligation{ID: id, SubjectType: st, Title: "Item " + id, AssigneeID: assignee, Status: types.ObligationOpen}
}

func (m *memObligations) resolve(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].Status = types.ObligationCompleted
}

func (m *memObligations) Get(_ context.Context, _ types.SubjectType, id string) (*types.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.items[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundObligation, "obligation not found", nil)
	}
	cp := *o
	return &cp, nil
}

// recordingDispatcher records intents and fails for subject IDs in failFor.
type recordingDispatcher struct {
	mu      sync.Mutex
	sent    []*types.NotificationIntent
	failFor map[string]bool
}

func (d *recordingDispatcher) Send(_ context.Context, intent *types.NotificationIntent) (*types.DispatchOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFor[intent.RelatedSubjectID] {
		return nil, errors.New("primary channel rejected")
	}
	d.sent = append(d.sent, intent)
	return &types.DispatchOutcome{Channel: types.ChannelEmail, SecondaryStatus: "skipped"}, nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
