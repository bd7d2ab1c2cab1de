package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 30 * time.Minute
)

// ErrUnknownJob is returned by RunJob for a name that was never registered.
var ErrUnknownJob = errors.New("cron: unknown job")

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Locker     Locker
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per tick. Each job takes its own
// lease, so replicas split work instead of skipping whole cycles.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	locker     Locker
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := params.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		locker:     params.Locker,
		metrics:    params.Metrics,
		interval:   interval,
		jobTimeout: timeout,
	}, nil
}

// Run executes a cycle immediately and then on every interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"interval": s.interval.String(),
		"jobs":     s.registry.Names(),
	})
	s.logg.Info(ctx, "cron.started")

	s.report(ctx, s.runCycle(ctx))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
			s.report(ctx, s.runCycle(ctx))
		}
	}
}

// RunJob executes one job by name, honoring its lease. Used for one-shot
// runs from the command line.
func (s *Service) RunJob(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.runJob(ctx, job)
}

// runCycle keeps going after a failed job and returns every failure combined.
func (s *Service) runCycle(ctx context.Context) error {
	var errs error
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

func (s *Service) report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	for _, jobErr := range multierr.Errors(err) {
		s.logg.Error(ctx, "cron.cycle_failed", jobErr)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   name,
		"event": "cron.job",
	})

	acquired, err := s.locker.Acquire(jobCtx, name)
	if err != nil {
		return fmt.Errorf("%s: acquire lock: %w", name, err)
	}
	if !acquired {
		s.metrics.Skipped(name)
		s.logg.Info(jobCtx, "cron.job_skipped_locked")
		return nil
	}
	defer func() {
		// release with the parent context so a timed-out job still frees its lease
		if relErr := s.locker.Release(context.WithoutCancel(ctx), name); relErr != nil {
			s.logg.Error(jobCtx, "cron.lock_release_failed", relErr)
		}
	}()

	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err = job.Run(runCtx)
	elapsed := time.Since(start)
	s.metrics.Observe(name, elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron.job_failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logg.Info(jobCtx, "cron.job_completed")
	return nil
}
