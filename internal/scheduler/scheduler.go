package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job is one unit of periodic work.
type Job interface {
	Run(ctx context.Context) error
}

type JobFunc func(ctx context.Context) error

func (f JobFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type Scheduler struct {
	name     string
	job      Job
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewScheduler(name string, job Job, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		job:      job,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("job", name),
	}
}

// Start runs the job immediately and then on every tick until ctx is done.
// Runs never overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "timeout", s.timeout)

	s.runJob(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runJob(ctx)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.job.Run(runCtx); err != nil {
		s.logger.Error("job failed", "error", err)
	}
}
