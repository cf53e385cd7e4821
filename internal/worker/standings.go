package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
)

// StandingsPublisher rebuilds the standings and pushes the top n to
// subscribers.
type StandingsPublisher interface {
	Publish(ctx context.Context, n int) error
}

// StandingsWorker periodically rebuilds the cached standings so a cold
// cache or missed invalidation heals on its own.
type StandingsWorker struct {
	standings StandingsPublisher
	config    *config.StandingsConfig
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewStandingsWorker creates a new standings worker
func NewStandingsWorker(standings StandingsPublisher, cfg *config.StandingsConfig, logger *slog.Logger) *StandingsWorker {
	return &StandingsWorker{
		standings: standings,
		config:    cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start warms the cache and begins the background loop
func (w *StandingsWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("standings worker started", "interval", w.config.Interval, "top_n", w.config.TopN)

	go w.run(ctx)
	return nil
}

// Stop stops the background loop and waits for the current cycle
func (w *StandingsWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("standings worker stopped")
	return nil
}

func (w *StandingsWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single rebuild cycle
func (w *StandingsWorker) RunOnce(ctx context.Context) {
	startTime := time.Now()
	if err := w.standings.Publish(ctx, w.config.TopN); err != nil {
		w.logger.Error("failed to rebuild standings", "error", err)
		return
	}
	w.logger.Debug("standings rebuilt", "duration", time.Since(startTime))
}

// IsRunning returns whether the worker is currently running
func (w *StandingsWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
