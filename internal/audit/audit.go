package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizhub/internal/logger"
)

// Auditor records that an operation completed. Implementations must not block the caller.
type Auditor interface {
	Log(ctx context.Context, action string)
}

type Record struct {
	ID     uuid.UUID
	Action string
	At     time.Time
}

type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// Nop discards every record.
type Nop struct{}

func (Nop) Log(context.Context, string) {}

// Service queues records and fans them out to its sinks from a single worker.
type Service struct {
	log         *logger.Logger
	sinks       []Sink
	queue       chan Record
	sinkTimeout time.Duration
	now         func() time.Time
	mu          sync.RWMutex
	closed      bool
	done        chan struct{}
}

func NewService(log *logger.Logger, queueSize int, sinks ...Sink) *Service {
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &Service{
		log:         log.With("component", "audit"),
		sinks:       sinks,
		queue:       make(chan Record, queueSize),
		sinkTimeout: 5 * time.Second,
		now:         func() time.Time { return time.Now().UTC() },
		done:        make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Service) Log(_ context.Context, action string) {
	rec := Record{ID: uuid.New(), Action: action, At: s.now()}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.log.Warn("audit queue full, dropping record", "action", action)
	}
}

// Close stops accepting records and waits until queued ones reach the sinks.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *Service) run() {
	defer close(s.done)
	for rec := range s.queue {
		for _, sink := range s.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), s.sinkTimeout)
			if err := sink.Write(ctx, rec); err != nil {
				s.log.Error("audit sink write failed", "sink", sink.Name(), "action", rec.Action, "error", err)
			}
			cancel()
		}
	}
}
