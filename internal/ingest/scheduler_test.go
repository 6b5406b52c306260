package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/educatorstribe/tribenews/internal/types"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(ctx context.Context, trigger string) (*RunResult, error) {
	r.calls.Add(1)
	if trigger != TriggerTimer {
		panic("scheduler must use the timer trigger")
	}
	return &RunResult{Trigger: trigger}, r.err
}

func TestSchedulerRunsOnStart(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, time.Hour, true, testLogger)
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx)
	deadline := time.Now().Add(time.Second)
	for r.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	s.Wait()

	if got := r.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestSchedulerTicks(t *testing.T) {
	r := &countingRunner{err: types.ErrRunInProgress}
	s := NewScheduler(r, 10*time.Millisecond, false, testLogger)
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	s.Wait()

	if got := r.calls.Load(); got < 3 {
		t.Errorf("calls = %d, want at least 3", got)
	}
}

func TestSchedulerStopsWithoutRunning(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, time.Hour, false, testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.Wait()

	if got := r.calls.Load(); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
}
