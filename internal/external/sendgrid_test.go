package external

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"policyportal/internal/config"
	"policyportal/internal/types"
)

func newTestSendGridClient(t *testing.T, serverURL string) *SendGridClient {
	t.Helper()
	base := NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-sendgrid",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond},
		"PolicyPortal-Test/1.0", WithSleepFunc(noopSleep))
	return NewSendGridClientWithBase(base, SendGridClientConfig{APIKey: "SG.test_key", BaseURL: serverURL})
}

func TestSendGridSend_RenderedContent(t *testing.T) {
	var payload sendGridMailPayload
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/mail/send" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		w.Header().Set("X-Message-Id", "sg-msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	id, err := newTestSendGridClient(t, server.URL).Send(context.Background(), SendInput{
		To:          "dana@example.com",
		ToName:      "Dana",
		From:        SenderIdentity{Name: "Policy Portal", Address: "no-reply@example.com"},
		Subject:     "Task overdue: Quarterly review",
		BodyText:    "plain",
		BodyHTML:    "<p>html</p>",
		ReferenceID: "task-1",
		Categories:  []string{"task_overdue"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "sg-msg-1" {
		t.Errorf("message id = %q", id)
	}
	if auth != "Bearer SG.test_key" {
		t.Errorf("Authorization = %q", auth)
	}
	if payload.Subject != "Task overdue: Quarterly review" || payload.TemplateID != "" {
		t.Errorf("subject/template = %q/%q", payload.Subject, payload.TemplateID)
	}
	if len(payload.Content) != 2 || payload.Content[0].Type != "text/plain" || payload.Content[1].Type != "text/html" {
		t.Errorf("content = %+v", payload.Content)
	}
	if to := payload.Personalizations[0].To[0]; to.Email != "dana@example.com" || to.Name != "Dana" {
		t.Errorf("to = %+v", to)
	}
	if payload.CustomArgs["reference_id"] != "task-1" {
		t.Errorf("custom_args = %v", payload.CustomArgs)
	}
}

func TestSendGridSend_DynamicTemplate(t *testing.T) {
	var payload sendGridMailPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	_, err := newTestSendGridClient(t, server.URL).Send(context.Background(), SendInput{
		To:           "dana@example.com",
		TemplateID:   "d-123",
		TemplateData: map[string]any{"title": "Quarterly review", "days_to_due": 1},
		Subject:      "ignored",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload.TemplateID != "d-123" || payload.Subject != "" || len(payload.Content) != 0 {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Personalizations[0].DynamicData["title"] != "Quarterly review" {
		t.Errorf("dynamic data = %v", payload.Personalizations[0].DynamicData)
	}
}

func TestSendGridSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   types.ErrorCode
	}{
		{"suppressed", http.StatusForbidden, `{"errors":[{"message":"on suppression list"}]}`, types.ErrCodeEmailBlocked},
		{"bad request", http.StatusBadRequest, `{"errors":[{"message":"invalid from","field":"from"}]}`, types.ErrCodeUpstreamEmailProvider},
		{"unauthorized non json", http.StatusUnauthorized, `denied`, types.ErrCodeUpstreamEmailProvider},
		{"rate limited", http.StatusTooManyRequests, ``, types.ErrCodeUpstreamRateLimited},
		{"server error", http.StatusInternalServerError, ``, types.ErrCodeUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestSendGridClient(t, server.URL).Send(context.Background(), SendInput{To: "x@example.com"})
			if !types.IsCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestNewEmailProvider(t *testing.T) {
	if _, ok := NewEmailProvider(config.EmailConfig{}, nil).(*StubEmailProvider); !ok {
		t.Error("empty API key should select the stub provider")
	}
	cfg := config.EmailConfig{SendGridAPIKey: types.SecretString("SG.key")}
	if _, ok := NewEmailProvider(cfg, nil).(*SendGridClient); !ok {
		t.Error("API key should select SendGrid")
	}
}

func TestStubEmailProvider(t *testing.T) {
	id, err := NewStubEmailProvider(nil).Send(context.Background(), SendInput{ReferenceID: "a-1"})
	if err != nil || id != "msg_stub_a-1" {
		t.Errorf("Send = %q, %v", id, err)
	}
}
