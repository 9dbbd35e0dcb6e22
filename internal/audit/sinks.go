package audit

import (
	"context"
	"encoding/csv"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizhub/internal/logger"
)

// CSVSink appends "id,action,timestamp" lines to a file.
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

func NewCSVSink(path string) (*CSVSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &CSVSink{file: file, w: csv.NewWriter(file)}, nil
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Write([]string{rec.ID.String(), rec.Action, rec.At.Format(time.RFC3339Nano)}); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.file.Close()
}

type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, rec Record) error {
	s.log.Info("audit", "audit_id", rec.ID.String(), "action", rec.Action, "at", rec.At)
	return nil
}

// StreamSink appends records to a Redis stream.
type StreamSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

func NewStreamSink(client redis.UniversalClient, stream string) *StreamSink {
	return &StreamSink{client: client, stream: stream, maxLen: 10000}
}

func (s *StreamSink) Name() string { return "redis_stream" }

func (s *StreamSink) Write(ctx context.Context, rec Record) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":     rec.ID.String(),
			"action": rec.Action,
			"at":     rec.At.Format(time.RFC3339Nano),
		},
	}).Err()
}
