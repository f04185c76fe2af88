package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/metrics"
)

const defaultTick = time.Minute

// Job is one sweep executed by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule runs Job at most once per Every. A zero Every runs it on each tick.
type Schedule struct {
	Job   Job
	Every time.Duration
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger    *logger.Logger
	Schedules []Schedule
	Lock      Lock
	Metrics   *metrics.JobMetrics
	Tick      time.Duration
}

// Service wakes every tick, takes the sweep lock and runs the schedules that
// are due. Jobs run sequentially so the reconciler never races retention.
type Service struct {
	logg      *logger.Logger
	schedules []Schedule
	lastRun   map[string]time.Time
	lock      Lock
	metrics   *metrics.JobMetrics
	tick      time.Duration
	now       func() time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	schedules := make([]Schedule, 0, len(params.Schedules))
	seen := make(map[string]struct{}, len(params.Schedules))
	for _, sched := range params.Schedules {
		if sched.Job == nil {
			continue
		}
		if _, dup := seen[sched.Job.Name()]; dup {
			return nil, fmt.Errorf("duplicate cron job %q", sched.Job.Name())
		}
		seen[sched.Job.Name()] = struct{}{}
		schedules = append(schedules, sched)
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		logg:      params.Logger,
		schedules: schedules,
		lastRun:   make(map[string]time.Time, len(schedules)),
		lock:      params.Lock,
		metrics:   params.Metrics,
		tick:      tick,
		now:       time.Now,
	}, nil
}

// Run sweeps immediately and then on every tick until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "cron.cycle_failed", err)
	}
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "cron.cycle_failed", err)
			}
		}
	}
}

func (s *Service) due() []Job {
	now := s.now()
	var jobs []Job
	for _, sched := range s.schedules {
		last, ran := s.lastRun[sched.Job.Name()]
		if !ran || sched.Every <= 0 || now.Sub(last) >= sched.Every {
			jobs = append(jobs, sched.Job)
		}
	}
	return jobs
}

// runCycle returns the lock error or the combined job failures.
func (s *Service) runCycle(ctx context.Context) error {
	jobs := s.due()
	if len(jobs) == 0 {
		return nil
	}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "cron.lock_held")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", relErr)
		}
	}()

	var errs error
	for _, job := range jobs {
		if err := s.runJob(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	start := s.now()
	s.lastRun[name] = start

	err := job.Run(jobCtx)
	end := s.now()
	duration := end.Sub(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	s.metrics.ObserveRun(name, end, duration, err)
	if err != nil {
		s.logg.Warn(jobCtx, "cron.job_failed")
		return err
	}
	s.logg.Info(jobCtx, "cron.job_done")
	return nil
}
