package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/citylibrary/libraryops-backend/pkg/logger"
	"github.com/citylibrary/libraryops-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// Job is one unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ServiceParams configure the scheduled runner.
type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Metrics  *metrics.JobMetrics
	Interval time.Duration
}

// Service executes its jobs once per interval until the context ends.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	metrics  *metrics.JobMetrics
	interval time.Duration
}

// NewService builds the runner.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(params.Jobs) == 0 {
		return nil, fmt.Errorf("at least one job required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		jobs:     params.Jobs,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes one cycle immediately, then on every tick.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "scheduled runner stopping")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// RunOnce executes a single cycle; the worker binary uses it for ad hoc runs.
func (s *Service) RunOnce(ctx context.Context) {
	s.runCycle(ctx)
}

func (s *Service) runCycle(ctx context.Context) {
	for _, job := range s.jobs {
		jctx := s.logg.WithField(ctx, "job", job.Name())
		start := time.Now()
		err := job.Run(jctx)
		s.metrics.ObserveDuration(job.Name(), time.Since(start))
		if err != nil {
			s.metrics.IncFailure(job.Name())
			s.logg.Error(jctx, "scheduled job failed", err)
			continue
		}
		s.metrics.IncSuccess(job.Name())
		s.logg.Info(jctx, "scheduled job complete")
	}
}
