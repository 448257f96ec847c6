package schedule

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Task is the work fired at every due instant.
type Task func(ctx context.Context) error

// Loop fires a task at each instant of a sequence.
type Loop struct {
	clock  clock.Clock
	logger *zap.Logger
}

// NewLoop creates a Loop. A nil clock means the real clock.
func NewLoop(clk clock.Clock, logger *zap.Logger) *Loop {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{clock: clk, logger: logger}
}

// Run blocks until the sequence is exhausted or ctx is done.
//
// Instants already at or before now are dropped without running the task.
// When a timer fires the next timer is armed before the task starts, so a task
// that outlives the gap to the next instant overlaps with the following run.
// Task errors and panics are logged and never stop the loop.
func (l *Loop) Run(ctx context.Context, instants iter.Seq[time.Time], task Task) error {
	next, stop := iter.Pull(instants)
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	now := l.clock.Now()
	at, ok := next()
	for ok && !at.After(now) {
		l.logger.Debug("dropping missed trigger", zap.Time("at", at))
		at, ok = next()
	}

	for ok {
		timer := l.clock.NewTimer(at.Sub(l.clock.Now()))
		l.logger.Info("armed billing trigger", zap.Time("at", at))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C():
		}

		firedAt := at
		at, ok = next()

		wg.Add(1)
		go func() {
			defer wg.Done()
			l.runTask(ctx, firedAt, task)
		}()
	}

	l.logger.Info("trigger sequence exhausted, scheduling stopped")
	return nil
}

func (l *Loop) runTask(ctx context.Context, scheduledAt time.Time, task Task) {
	logger := l.logger.With(zap.Time("scheduled_at", scheduledAt))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduled task panicked", zap.Error(fmt.Errorf("panic: %v", r)))
		}
	}()

	logger.Info("starting scheduled task", zap.Time("started_at", l.clock.Now()))
	if err := task(ctx); err != nil {
		logger.Error("scheduled task failed", zap.Error(err))
	}
}
