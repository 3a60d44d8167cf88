package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyQueued is returned by Trigger when a run is already waiting.
var ErrAlreadyQueued = errors.New("run already queued")

// ErrNotStarted is returned by Trigger before Start or after Stop.
var ErrNotStarted = errors.New("scheduler not started")

// Job is one scheduled execution.
type Job struct {
	Reason   string
	Attempt  int
	Enqueued time.Time
}

// Handler performs a job. Returning an error schedules a retry.
type Handler func(context.Context, Job) error

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Scheduler runs a handler on a fixed interval and on demand. A single worker
// executes jobs, so two runs never overlap; at most one job waits behind the
// running one.
type Scheduler struct {
	name    string
	handler Handler

	interval   time.Duration
	runOnStart bool
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler builds a scheduler for handler.
func NewScheduler(name string, handler Handler, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scheduler{
		name:       name,
		handler:    handler,
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan Job, 1),
	}
}

// Start launches the ticker and the worker. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Add(2)
	go s.worker()
	go s.tick()
	if s.runOnStart {
		_ = s.enqueueLocked(Job{Reason: "startup"})
	}
	s.logger.Sugar().Infow("scheduler started", "scheduler", s.name, "interval", s.interval.String())
}

// Stop cancels the running job and waits for the goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped", "scheduler", s.name)
}

// Trigger queues an immediate run.
func (s *Scheduler) Trigger(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	return s.enqueueLocked(Job{Reason: reason})
}

func (s *Scheduler) enqueueLocked(job Job) error {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrAlreadyQueued
	}
}

func (s *Scheduler) tick() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if err := s.enqueueLocked(Job{Reason: "interval"}); err != nil {
				s.logger.Sugar().Debugw("interval run skipped", "scheduler", s.name, "error", err)
			}
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.jobs:
			s.run(job)
		}
	}
}

func (s *Scheduler) run(job Job) {
	for {
		err := s.handler(s.ctx, job)
		if err == nil || s.ctx.Err() != nil {
			return
		}
		job.Attempt++
		if job.Attempt > s.maxRetries {
			s.logger.Sugar().Errorw("job exceeded retries", "scheduler", s.name, "reason", job.Reason, "error", err)
			return
		}
		s.logger.Sugar().Warnw("job failed, retrying", "scheduler", s.name, "reason", job.Reason, "attempt", job.Attempt, "error", err)

		timer := time.NewTimer(s.retryDelay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
