// Package scheduler drives the periodic check-in sweep.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liableapp/liable/internal/logger"
	"github.com/liableapp/liable/internal/service"
)

// Sweeper runs one pass over due and expired check-ins.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (service.SweepResult, error)
}

type Scheduler struct {
	sweeper     Sweeper
	interval    time.Duration
	tickTimeout time.Duration
	now         func() time.Time
	log         *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

func New(sweeper Sweeper, interval, tickTimeout time.Duration) *Scheduler {
	return &Scheduler{
		sweeper:     sweeper,
		interval:    interval,
		tickTimeout: tickTimeout,
		now:         time.Now,
		log:         logger.For("scheduler"),
	}
}

// Run ticks every interval until ctx is cancelled, then waits for the
// sweep in progress to finish.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "interval", s.interval, "tick_timeout", s.tickTimeout)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.Tick(ctx)
			}()
		}
	}
}

// Tick runs a single sweep unless one is already in progress. It reports
// whether the sweep ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous sweep still running, skipping tick")
		return false
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()

	start := s.now()
	result, err := s.sweeper.Sweep(ctx, start)
	if err != nil {
		s.log.Error("sweep failed", "error", err,
			"requested", result.Requested, "missed", result.Missed, "failed", result.Failed)
		return true
	}

	level := slog.LevelDebug
	if result.Requested > 0 || result.Missed > 0 || result.Failed > 0 {
		level = slog.LevelInfo
	}
	s.log.Log(ctx, level, "sweep completed",
		"requested", result.Requested,
		"missed", result.Missed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return true
}
