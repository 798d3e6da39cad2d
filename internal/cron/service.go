package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/motorhub/marketplace-backend/pkg/logger"
	"github.com/motorhub/marketplace-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ServiceParams configure the cron service. A non-empty Schedule (standard
// five-field cron syntax, evaluated in Location) takes precedence over Interval.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Schedule string
	Location *time.Location
	Interval time.Duration
}

// Service executes registered cron jobs on a schedule.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	schedule robfigcron.Schedule
	spec     string
	loc      *time.Location
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	svc := &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		loc:      loc,
		interval: interval,
	}
	if spec := strings.TrimSpace(params.Schedule); spec != "" {
		schedule, err := robfigcron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("parse cron schedule %q: %w", spec, err)
		}
		svc.schedule = schedule
		svc.spec = spec
	}
	return svc, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.schedule != nil {
		return s.runScheduled(ctx)
	}
	return s.runInterval(ctx)
}

func (s *Service) runScheduled(ctx context.Context) error {
	runner := robfigcron.New(robfigcron.WithLocation(s.loc))
	runner.Schedule(s.schedule, robfigcron.FuncJob(func() {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
	}))
	runner.Start()

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"schedule": s.spec,
		"timezone": s.loc.String(),
		"next_run": s.NextRun(time.Now()),
	})
	s.logg.Info(logCtx, "cron scheduler started")

	<-ctx.Done()
	stopped := runner.Stop()
	<-stopped.Done()
	s.logg.Info(ctx, "cron service context canceled")
	return ctx.Err()
}

func (s *Service) runInterval(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// NextRun reports when the next cycle starts after from.
func (s *Service) NextRun(from time.Time) time.Time {
	if s.schedule == nil {
		return from.Add(s.interval)
	}
	return s.schedule.Next(from.In(s.loc))
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncSkipped()
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
}
