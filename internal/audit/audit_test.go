package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"quizhub/internal/logger"
)

type memorySink struct {
	mu      sync.Mutex
	records []Record
	block   chan struct{}
	err     error
}

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Write(_ context.Context, rec Record) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *memorySink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Action)
	}
	return out
}

func TestServiceDeliversInOrder(t *testing.T) {
	sink := &memorySink{}
	svc := NewService(logger.Nop(), 16, sink)

	svc.Log(context.Background(), "add_attempt")
	svc.Log(context.Background(), "get_attempt_by_id")
	svc.Close()

	got := sink.actions()
	if len(got) != 2 || got[0] != "add_attempt" || got[1] != "get_attempt_by_id" {
		t.Fatalf("unexpected actions %v", got)
	}
	if sink.records[0].ID == sink.records[1].ID {
		t.Fatalf("expected distinct record ids")
	}
}

func TestServiceDropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := &memorySink{block: make(chan struct{})}
	svc := NewService(logger.NewWithCore(core), 1, sink)

	// One record may be held by the worker and one sits in the queue; the rest overflow.
	for i := 0; i < 10; i++ {
		svc.Log(context.Background(), "get_all_users")
	}
	close(sink.block)
	svc.Close()

	if n := len(sink.actions()); n < 1 || n > 2 {
		t.Fatalf("expected at most two delivered records, got %d", n)
	}
	if logs.FilterMessage("audit queue full, dropping record").Len() == 0 {
		t.Fatalf("expected drop warnings")
	}
}

func TestServiceSurvivesSinkErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	failing := &memorySink{err: errors.New("disk full")}
	healthy := &memorySink{}
	svc := NewService(logger.NewWithCore(core), 4, failing, healthy)

	svc.Log(context.Background(), "delete_user")
	svc.Close()

	if len(healthy.actions()) != 1 {
		t.Fatalf("expected the healthy sink to receive the record")
	}
	if logs.FilterMessage("audit sink write failed").Len() != 1 {
		t.Fatalf("expected one sink error log")
	}
}

func TestLogAfterCloseIsIgnored(t *testing.T) {
	sink := &memorySink{}
	svc := NewService(logger.Nop(), 4, sink)
	svc.Close()
	svc.Close()

	svc.Log(context.Background(), "late")
	if len(sink.actions()) != 0 {
		t.Fatalf("expected no records after close")
	}
}

func TestCSVSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	svc := NewService(logger.Nop(), 4, sink)
	svc.Log(context.Background(), "add_user")
	svc.Log(context.Background(), "update_user")
	svc.Close()
	if err := sink.Close(); err != nil {
		t.Fatalf("close sink: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[0][1] != "add_user" || rows[1][1] != "update_user" {
		t.Fatalf("unexpected rows %v", rows)
	}
}
