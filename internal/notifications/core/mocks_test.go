package core

import (
	"context"
	"sync"
	"time"

	"policyportal/internal/types"
)

// mockLogger counts warnings so tests can assert that advisory failures
// were reported.
type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *mockLogger) Info(msg string, args ...any)  {}
func (l *mockLogger) Error(msg string, args ...any) {}
func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}
func (l *mockLogger) With(args ...any) types.Logger { return l }

func (l *mockLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

// mockChannel records every delivered intent.
type mockChannel struct {
	typ       types.ChannelType
	messageID string
	err       error
	delivered []types.NotificationIntent
}

func (c *mockChannel) Type() types.ChannelType { return c.typ }

func (c *mockChannel) Deliver(_ context.Context, intent *types.NotificationIntent) (*types.DeliveryResult, error) {
	c.delivered = append(c.delivered, *intent)
	if c.err != nil {
		return nil, c.err
	}
	return &types.DeliveryResult{ProviderMessageID: c.messageID, Status: "sent"}, nil
}

type mockDirectory struct {
	recipients map[string]*types.Recipient
	err        error
	lookups    int
}

func (d *mockDirectory) GetByID(_ context.Context, id string) (*types.Recipient, error) {
	d.lookups++
	if d.err != nil {
		return nil, d.err
	}
	r, ok := d.recipients[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
	}
	return r, nil
}

type mockAudit struct {
	records []types.NotificationAuditRecord
	err     error
}

func (a *mockAudit) AppendNotification(_ context.Context, rec *types.NotificationAuditRecord) error {
	a.records = append(a.records, *rec)
	return a.err
}

type mockMetrics struct {
	deliveries map[types.ChannelType][]MetricResult
	latencies  int
}

func (m *mockMetrics) RecordDelivery(_ context.Context, ch types.ChannelType, r MetricResult) {
	if m.deliveries == nil {
		m.deliveries = map[types.ChannelType][]MetricResult{}
	}
	m.deliveries[ch] = append(m.deliveries[ch], r)
}

func (m *mockMetrics) RecordLatency(context.Context, types.ChannelType, time.Duration) {
	m.latencies++
}
