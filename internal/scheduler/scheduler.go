package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/foodbuzz/internal/pipeline"
	"github.com/elonfeng/foodbuzz/internal/runlock"
)

// Job is one scheduled pipeline pass.
type Job interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// Scheduler runs the pipeline on a fixed interval.
type Scheduler struct {
	job      Job
	interval time.Duration
	logger   *zerolog.Logger
}

// New creates a new scheduler. A zero interval means weekly.
func New(job Job, interval time.Duration, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 7 * 24 * time.Hour
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Scheduler{job: job, interval: interval, logger: logger}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	s.logger.Info().Msg("scheduler: initial run")
	s.runOnce(ctx)

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler: running")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	sum, err := s.job.Run(ctx)
	switch {
	case errors.Is(err, runlock.ErrLocked):
		s.logger.Warn().Err(err).Msg("scheduler: skipped, another run in progress")
	case err != nil:
		s.logger.Error().Err(err).Msg("scheduler: run failed")
	default:
		s.logger.Info().
			Str("run_id", sum.RunID).
			Int("entities", sum.Dedupe.Entities).
			Str("snapshot", sum.Snapshot.Key).
			Int("movers", len(sum.Movers.Movers)).
			Msg("scheduler: run complete")
	}
}
