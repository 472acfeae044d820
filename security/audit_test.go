package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestAuditor_LogEvent(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewAuditor(slog.New(slog.NewTextHandler(&buf, nil)), true)

	auditor.LogEvent(Event{
		Type:     EventTokenIssued,
		UserID:   "user-42",
		ClientID: "client-1",
	})

	out := buf.String()
	if !strings.Contains(out, EventTokenIssued) {
		t.Errorf("output missing event type: %s", out)
	}
	if strings.Contains(out, "user-42") {
		t.Errorf("raw user ID leaked into the audit log: %s", out)
	}
	if !strings.Contains(out, hashForLogging("user-42")) {
		t.Errorf("output missing hashed user ID: %s", out)
	}
}

func TestAuditor_Disabled(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewAuditor(slog.New(slog.NewTextHandler(&buf, nil)), false)

	auditor.LogEvent(Event{Type: EventAuthFailure})
	if buf.Len() != 0 {
		t.Errorf("disabled auditor wrote: %s", buf.String())
	}
}

// A nil auditor is a no-op, so callers never need a nil check.
func TestAuditor_Nil(t *testing.T) {
	var auditor *Auditor
	auditor.LogEvent(Event{Type: EventAuthFailure})
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q", got)
	}
	a, b := hashForLogging("alice"), hashForLogging("bob")
	if a == b {
		t.Error("distinct inputs hashed identically")
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
	if hashForLogging("alice") != a {
		t.Error("hash is not deterministic")
	}
}
