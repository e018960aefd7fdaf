package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobFunc is one scheduled batch entry point.
type JobFunc func(ctx context.Context) error

// Job couples a cron expression with the batch function it drives.
type Job struct {
	Name string
	Spec string
	Run  JobFunc
}

// Scheduler drives the periodic batch jobs. Each invocation gets its own
// timeout-bounded context so one stalled external dependency cannot pin a
// job slot forever.
type Scheduler struct {
	cron       *cron.Cron
	jobTimeout time.Duration
	logger     zerolog.Logger
}

// New constructs a Scheduler.
func New(jobTimeout time.Duration, logger zerolog.Logger) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = 15 * time.Minute
	}
	return &Scheduler{
		cron:       cron.New(),
		jobTimeout: jobTimeout,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers a job against the context the run loop will carry.
func (s *Scheduler) Add(ctx context.Context, job Job) error {
	if job.Spec == "" {
		return fmt.Errorf("job %s: cron spec is required", job.Name)
	}

	logger := s.logger.With().Str("job", job.Name).Logger()
	_, err := s.cron.AddFunc(job.Spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()

		start := time.Now()
		logger.Info().Msg("job started")
		if err := job.Run(jobCtx); err != nil {
			logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("job failed")
			return
		}
		logger.Info().Dur("elapsed", time.Since(start)).Msg("job finished")
	})
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.Name, err)
	}
	return nil
}

// Run starts the cron loop and blocks until ctx is cancelled. Jobs already
// in flight are allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("scheduler stopped")
	return ctx.Err()
}
