package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSensitiveKeysAreRedacted(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core)

	log.Info("user added", "user_id", 7, "email", "a@b.com", "password", "hunter2")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["email"] != "[REDACTED]" || fields["password"] != "[REDACTED]" {
		t.Fatalf("expected email and password redacted, got %v", fields)
	}
	if fields["user_id"] != int64(7) {
		t.Fatalf("expected user_id to pass through, got %v", fields["user_id"])
	}
}

func TestWithKeepsContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewWithCore(core).With("component", "audit")

	log.Warn("queue full")

	entries := logs.FilterField(zap.String("component", "audit")).All()
	if len(entries) != 1 {
		t.Fatalf("expected component field on entry, got %d entries", len(entries))
	}
}
