package mirror

import (
	"strings"
	"testing"
	"time"
)

func TestSign(t *testing.T) {
	now := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	body := []byte(`{"title":"x"}`)

	header := Sign(body, "s3cret", now)
	if !strings.HasPrefix(header, "t=1773046800,v1=") {
		t.Fatalf("unexpected header %q", header)
	}
	if v1 := strings.TrimPrefix(header, "t=1773046800,v1="); len(v1) != 64 {
		t.Errorf("v1 = %q, want 64 hex chars", v1)
	}
	if Sign(body, "s3cret", now) != header {
		t.Error("signing is deterministic for the same input")
	}
	if Sign(body, "other", now) == header {
		t.Error("a different secret must change the signature")
	}
	if Sign([]byte(`{"title":"y"}`), "s3cret", now) == header {
		t.Error("a different body must change the signature")
	}
	if Sign(body, "s3cret", now.Add(time.Second)) == header {
		t.Error("the timestamp is part of the signed content")
	}
}
