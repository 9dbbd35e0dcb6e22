package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizhub/internal/config"
	"quizhub/internal/logger"
)

type scriptedPinger struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

type recordedStatus struct {
	mu      sync.Mutex
	history []bool
}

func (r *recordedStatus) SetServing(serving bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, serving)
}

func (r *recordedStatus) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.history...)
}

func TestHealthProbeRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pinger := &scriptedPinger{errs: []error{errors.New("refused")}}
	status := &recordedStatus{}
	StartHealthProbe(ctx, config.Config{HealthProbeInterval: time.Hour}, pinger, status, logger.Nop())

	got := status.snapshot()
	if len(got) != 1 || got[0] {
		t.Fatalf("expected an immediate NOT_SERVING update, got %v", got)
	}
}

func TestHealthProbeRecoversOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pinger := &scriptedPinger{errs: []error{errors.New("refused")}}
	status := &recordedStatus{}
	cfg := config.Config{HealthProbeInterval: 10 * time.Millisecond, HealthProbeTimeout: time.Second}
	StartHealthProbe(ctx, cfg, pinger, status, logger.Nop())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := status.snapshot()
		if len(got) >= 2 && !got[0] && got[len(got)-1] {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected probe to report serving after recovery, got %v", status.snapshot())
}

func TestHealthProbeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pinger := &scriptedPinger{}
	status := &recordedStatus{}
	StartHealthProbe(ctx, config.Config{HealthProbeInterval: 5 * time.Millisecond}, pinger, status, logger.Nop())
	cancel()

	time.Sleep(20 * time.Millisecond)
	pinger.mu.Lock()
	settled := pinger.calls
	pinger.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	pinger.mu.Lock()
	defer pinger.mu.Unlock()
	if pinger.calls != settled {
		t.Fatalf("expected no pings after cancel, got %d then %d", settled, pinger.calls)
	}
}

func TestHealthProbeDisabledWithoutDependencies(t *testing.T) {
	StartHealthProbe(context.Background(), config.Config{}, nil, &recordedStatus{}, logger.Nop())
}
