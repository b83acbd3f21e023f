// Package scheduler runs the background maintenance jobs (token refresh,
// rematch sweep) on cron schedules inside the server process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// A job that has not finished by this deadline is abandoned; the next
// scheduled run starts fresh.
const jobTimeout = 10 * time.Minute

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner with per-job logging and timeouts.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates an empty scheduler. Specs use the standard five-field cron
// format or descriptors like "@hourly".
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// Add registers a job under the given cron spec.
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed",
				zap.String("job", name),
				zap.Error(err))
			return
		}
		s.logger.Info("scheduled job complete",
			zap.String("job", name),
			zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("registering job %q: %w", name, err)
	}

	s.logger.Info("scheduled job registered",
		zap.String("job", name),
		zap.String("spec", spec))
	return nil
}

// Start begins running jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further runs and waits for in-flight jobs, up to the
// context deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
