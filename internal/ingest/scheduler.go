package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/educatorstribe/tribenews/internal/types"
)

// Runner is what the scheduler drives.
type Runner interface {
	Run(ctx context.Context, trigger string) (*RunResult, error)
}

// Scheduler triggers a run on a fixed interval until its context ends.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewScheduler creates a Scheduler. With runOnStart the first run fires
// immediately instead of after one interval.
func NewScheduler(runner Runner, interval time.Duration, runOnStart bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start launches the timer loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler starting", "interval", s.interval, "run_on_start", s.runOnStart)
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.runner.Run(ctx, TriggerTimer)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrRunInProgress):
		s.logger.Info("tick skipped, run in progress")
	case errors.Is(err, context.Canceled):
	default:
		s.logger.Error("scheduled run failed", "error", err)
	}
}
