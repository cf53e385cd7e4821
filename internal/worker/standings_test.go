package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
)

type countingPublisher struct {
	calls atomic.Int32
	lastN atomic.Int32
	err   error
}

func (p *countingPublisher) Publish(_ context.Context, n int) error {
	p.calls.Add(1)
	p.lastN.Store(int32(n))
	return p.err
}

func newWorker(p StandingsPublisher, interval time.Duration) *StandingsWorker {
	cfg := &config.StandingsConfig{Interval: interval, TopN: 7, Enabled: true}
	return NewStandingsWorker(p, cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestWorkerPublishesOnStartAndTick(t *testing.T) {
	p := &countingPublisher{}
	w := newWorker(p, 5*time.Millisecond)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !w.IsRunning() {
		t.Fatal("expected worker to be running")
	}

	deadline := time.Now().Add(time.Second)
	for p.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if p.calls.Load() < 3 {
		t.Fatalf("expected at least 3 cycles, got %d", p.calls.Load())
	}
	if p.lastN.Load() != 7 {
		t.Fatalf("expected top_n 7, got %d", p.lastN.Load())
	}
	if w.IsRunning() {
		t.Fatal("expected worker to be stopped")
	}
}

func TestWorkerSurvivesPublishErrors(t *testing.T) {
	p := &countingPublisher{err: errors.New("store down")}
	w := newWorker(p, time.Hour)

	w.RunOnce(context.Background())
	w.RunOnce(context.Background())

	if p.calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", p.calls.Load())
	}
}

func TestWorkerStopsWithContext(t *testing.T) {
	p := &countingPublisher{}
	w := newWorker(p, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	select {
	case <-w.doneCh:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after cancel")
	}
}
