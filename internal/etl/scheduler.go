package etl

import (
	"context"
	"log/slog"
	"time"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
)

// Scheduler triggers a full RunAll on a periodic interval. It is stateless:
// each tick starts fresh runs, and watermarking keeps repeated extractions
// incremental. Retrying a failed source is simply the next tick's run.
type Scheduler struct {
	interval     time.Duration
	orchestrator *Orchestrator
	runOnStart   bool
}

// NewScheduler creates a periodic pipeline scheduler.
func NewScheduler(interval time.Duration, orchestrator *Orchestrator, runOnStart bool) *Scheduler {
	return &Scheduler{
		interval:     interval,
		orchestrator: orchestrator,
		runOnStart:   runOnStart,
	}
}

// Start begins periodic pipeline runs. Runs until the context is cancelled.
// An in-flight RunAll completes its state transitions before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting pipeline scheduler",
		"interval", s.interval,
		"sources", s.orchestrator.Sources(),
		"run_on_start", s.runOnStart,
	)

	if s.runOnStart {
		s.tick(ctx)
	}

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	results := s.orchestrator.RunAll(ctx)

	failed := 0
	for _, result := range results {
		if result.Run.Status == v1.RunStatusFailed {
			failed++
		}
	}
	if failed > 0 {
		slog.Warn("[Scheduler] Tick completed with failures",
			"sources", len(results),
			"failed", failed,
		)
		return
	}
	slog.Info("[Scheduler] Tick completed", "sources", len(results))
}
