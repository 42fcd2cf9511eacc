package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"policyportal/internal/types"
)

type dispatchFixture struct {
	primary   *mockChannel
	secondary *mockChannel
	dir       *mockDirectory
	audit     *mockAudit
	metrics   *mockMetrics
	logger    *mockLogger
	d         *Dispatcher
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		primary:   &mockChannel{typ: types.ChannelEmail, messageID: "msg_1"},
		secondary: &mockChannel{typ: types.ChannelMirror},
		dir: &mockDirectory{recipients: map[string]*types.Recipient{
			"user_1": {ID: "user_1", DisplayName: "Ada", Email: "ada@example.com"},
		}},
		audit:   &mockAudit{},
		metrics: &mockMetrics{},
		logger:  &mockLogger{},
	}
	f.d = NewDispatcher(DispatcherConfig{
		Primary:    f.primary,
		Secondary:  f.secondary,
		Recipients: f.dir,
		Audit:      f.audit,
		Metrics:    f.metrics,
		Clock:      &mockClock{now: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)},
		Logger:     f.logger,
	})
	return f
}

func testIntent() *types.NotificationIntent {
	due := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &types.NotificationIntent{
		RecipientID:      "user_1",
		NotificationType: types.NotificationTaskDueSoon,
		RelatedSubjectID: "task_9",
		SendPrimary:      true,
		SubjectType:      types.SubjectTaskAssignment,
		Stage:            types.StageOneDay,
		DaysToDue:        1,
		Obligation: &types.Obligation{
			ID:      "task_9",
			Title:   "Quarterly access review",
			DueDate: &due,
			URL:     "https://portal.example.com/tasks/task_9",
		},
	}
}

func TestDispatcher_Send_PrimaryOnly(t *testing.T) {
	f := newDispatchFixture()

	out, err := f.d.Send(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Channel != types.ChannelEmail {
		t.Errorf("expected channel email, got %q", out.Channel)
	}
	if out.ProviderMessageID != "msg_1" {
		t.Errorf("expected provider id msg_1, got %q", out.ProviderMessageID)
	}
	if out.SecondaryStatus != "skipped" {
		t.Errorf("expected secondary skipped, got %q", out.SecondaryStatus)
	}
	if len(f.secondary.delivered) != 0 {
		t.Error("secondary channel should not be used when not requested")
	}

	if len(f.primary.delivered) != 1 {
		t.Fatalf("expected 1 primary delivery, got %d", len(f.primary.delivered))
	}
	got := f.primary.delivered[0]
	if got.Recipient == nil || got.Recipient.Email != "ada@example.com" {
		t.Errorf("expected resolved recipient, got %+v", got.Recipient)
	}
	if got.Subject != "Task due soon: Quarterly access review" {
		t.Errorf("unexpected subject %q", got.Subject)
	}
	if !strings.Contains(got.Body, "Hi Ada,") {
		t.Errorf("expected greeting in body, got %q", got.Body)
	}

	if len(f.audit.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(f.audit.records))
	}
	rec := f.audit.records[0]
	if rec.Status != "sent" || rec.ProviderMsgID != "msg_1" || rec.SecondaryStatus != "skipped" {
		t.Errorf("unexpected audit record %+v", rec)
	}
	if got := f.metrics.deliveries[types.ChannelEmail]; len(got) != 1 || got[0] != MetricSuccess {
		t.Errorf("expected one email success metric, got %v", got)
	}
}

func TestDispatcher_Send_DoesNotMutateCallerIntent(t *testing.T) {
	f := newDispatchFixture()
	intent := testIntent()

	if _, err := f.d.Send(context.Background(), intent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Subject != "" || intent.Recipient != nil {
		t.Errorf("caller intent was modified: %+v", intent)
	}
}

func TestDispatcher_Send_WithSecondary(t *testing.T) {
	f := newDispatchFixture()
	intent := testIntent()
	intent.SendSecondary = true

	out, err := f.d.Send(context.Background(), intent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SecondaryStatus != "sent" {
		t.Errorf("expected secondary sent, got %q", out.SecondaryStatus)
	}
	if len(f.secondary.delivered) != 1 {
		t.Fatalf("expected 1 secondary delivery, got %d", len(f.secondary.delivered))
	}
	if f.secondary.delivered[0].Subject == "" {
		t.Error("secondary should receive rendered content")
	}
}

func TestDispatcher_Send_SecondaryFailureIsSwallowed(t *testing.T) {
	f := newDispatchFixture()
	f.secondary.err = errors.New("webhook returned 500")
	intent := testIntent()
	intent.SendSecondary = true

	out, err := f.d.Send(context.Background(), intent)
	if err != nil {
		t.Fatalf("secondary failure must not fail the send: %v", err)
	}
	if out.SecondaryStatus != "failed" {
		t.Errorf("expected secondary failed, got %q", out.SecondaryStatus)
	}
	if out.ProviderMessageID != "msg_1" {
		t.Errorf("primary outcome lost: %+v", out)
	}
	if f.logger.warnCount() == 0 {
		t.Error("expected a warning for the failed secondary delivery")
	}
	if got := f.metrics.deliveries[types.ChannelMirror]; len(got) != 1 || got[0] != MetricFailure {
		t.Errorf("expected one mirror failure metric, got %v", got)
	}
	if f.audit.records[0].SecondaryStatus != "failed" {
		t.Errorf("audit should record secondary failure, got %+v", f.audit.records[0])
	}
}

func TestDispatcher_Send_SecondaryNotConfigured(t *testing.T) {
	f := newDispatchFixture()
	d := NewDispatcher(DispatcherConfig{Primary: f.primary, Recipients: f.dir, Logger: f.logger})
	intent := testIntent()
	intent.SendSecondary = true

	out, err := d.Send(context.Background(), intent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SecondaryStatus != "skipped" {
		t.Errorf("expected skipped without a secondary channel, got %q", out.SecondaryStatus)
	}
}

func TestDispatcher_Send_PrimaryFailurePropagates(t *testing.T) {
	f := newDispatchFixture()
	upstream := types.NewAppError(types.ErrCodeUpstreamEmailProvider, "sendgrid down", nil)
	f.primary.err = upstream
	intent := testIntent()
	intent.SendSecondary = true

	out, err := f.d.Send(context.Background(), intent)
	if err == nil {
		t.Fatal("expected error")
	}
	if out != nil {
		t.Errorf("expected nil outcome, got %+v", out)
	}
	if !errors.Is(err, upstream) {
		t.Errorf("expected wrapped upstream error, got %v", err)
	}
	if !types.IsCode(err, types.ErrCodeUpstreamEmailProvider) {
		t.Errorf("expected code to survive wrapping, got %v", err)
	}
	if len(f.secondary.delivered) != 0 {
		t.Error("secondary must not run after a primary failure")
	}
	if len(f.audit.records) != 1 || f.audit.records[0].Status != "failed" {
		t.Fatalf("expected a failed audit record, got %+v", f.audit.records)
	}
	if f.audit.records[0].Error == "" {
		t.Error("failed audit record should carry the error")
	}
}

func TestDispatcher_Send_AuditFailureIsSwallowed(t *testing.T) {
	f := newDispatchFixture()
	f.audit.err = errors.New("insert failed")

	out, err := f.d.Send(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("audit failure must not fail the send: %v", err)
	}
	if out.ProviderMessageID != "msg_1" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if f.logger.warnCount() != 1 {
		t.Errorf("expected 1 warning, got %d", f.logger.warnCount())
	}
}

func TestDispatcher_Send_UsesProvidedRecipient(t *testing.T) {
	f := newDispatchFixture()
	intent := testIntent()
	intent.Recipient = &types.Recipient{ID: "user_1", DisplayName: "Grace", Email: "grace@example.com"}

	if _, err := f.d.Send(context.Background(), intent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.dir.lookups != 0 {
		t.Errorf("expected no directory lookup, got %d", f.dir.lookups)
	}
	if f.primary.delivered[0].Recipient.Email != "grace@example.com" {
		t.Error("provided recipient should be used")
	}
}

func TestDispatcher_Send_UnknownRecipient(t *testing.T) {
	f := newDispatchFixture()
	intent := testIntent()
	intent.RecipientID = "ghost"

	_, err := f.d.Send(context.Background(), intent)
	if !types.IsCode(err, types.ErrCodeNotFoundRecipient) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if len(f.primary.delivered) != 0 {
		t.Error("nothing should be delivered for an unknown recipient")
	}
	if len(f.audit.records) != 1 || f.audit.records[0].Status != "failed" {
		t.Errorf("expected failed audit, got %+v", f.audit.records)
	}
}

func TestDispatcher_Send_Validation(t *testing.T) {
	f := newDispatchFixture()

	if _, err := f.d.Send(context.Background(), nil); !types.IsCode(err, types.ErrCodeValidationMissingField) {
		t.Errorf("nil intent: expected validation error, got %v", err)
	}

	intent := testIntent()
	intent.RecipientID = "  "
	if _, err := f.d.Send(context.Background(), intent); !types.IsCode(err, types.ErrCodeValidationMissingField) {
		t.Errorf("blank recipient: expected validation error, got %v", err)
	}
	if len(f.audit.records) != 0 {
		t.Error("invalid intents are not audited")
	}
}

func TestDispatcher_Send_UnknownTypeWithoutContent(t *testing.T) {
	f := newDispatchFixture()
	intent := testIntent()
	intent.NotificationType = "digest_weekly"

	_, err := f.d.Send(context.Background(), intent)
	if !types.IsCode(err, types.ErrCodeInternalTemplate) {
		t.Fatalf("expected template error, got %v", err)
	}
}

func TestDispatcher_Send_SecondaryOnly(t *testing.T) {
	f := newDispatchFixture()
	intent := testIntent()
	intent.SendPrimary = false
	intent.SendSecondary = true

	out, err := f.d.Send(context.Background(), intent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.primary.delivered) != 0 {
		t.Error("primary should not be used when not requested")
	}
	if out.SecondaryStatus != "sent" {
		t.Errorf("expected secondary sent, got %q", out.SecondaryStatus)
	}
}
