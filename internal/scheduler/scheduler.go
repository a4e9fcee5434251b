// Package scheduler runs the sync jobs on their cron schedules and re-runs
// failed runs according to the configured retry policy.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/logger"
	"wealthsync/internal/metrics"
)

// Run statuses reported to metrics.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Job is a named unit of scheduled work.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler owns the cron runner. At most one run per job is in flight; a
// tick that arrives while the previous run (including its retries) is still
// going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	attempts int
	backoff  []time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	metrics  *metrics.Metrics

	mu   sync.Mutex
	jobs map[string]Job
}

// New creates a scheduler using the retry policy from cfg. Cron expressions
// are evaluated in UTC.
func New(cfg config.Jobs) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: logger.Get().Named("cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:      ctx,
		cancel:   cancel,
		attempts: cfg.RetryAttempts + 1,
		backoff:  cfg.RetryBackoff,
		sleep:    sleepContext,
		metrics:  metrics.Get(),
		jobs:     make(map[string]Job),
	}
}

// Register schedules job on its cron spec.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.RunJob(s.ctx, job) }); err != nil {
		return fmt.Errorf("scheduling %s with %q: %w", job.Name, job.Spec, err)
	}
	s.jobs[job.Name] = job
	logger.Get().Infow("job scheduled", "job", job.Name, "cron", job.Spec)
	return nil
}

// Start starts the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels in-flight runs and waits for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunJob runs job once and retries failures with the configured backoff.
// Cancellation and configuration errors are not retried.
func (s *Scheduler) RunJob(ctx context.Context, job Job) error {
	log := logger.Job(job.Name)

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			wait := s.backoffFor(attempt - 1)
			log.Warnw("retrying job", "attempt", attempt, "wait", wait.String(), "error", err)
			if serr := s.sleep(ctx, wait); serr != nil {
				s.metrics.ObserveRun(job.Name, 0, StatusCancelled)
				return serr
			}
			s.metrics.JobRetriesTotal.WithLabelValues(job.Name).Inc()
		}

		start := time.Now()
		err = job.Run(ctx)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			s.metrics.ObserveRun(job.Name, elapsed, StatusSuccess)
			log.Infow("job finished", "attempt", attempt, "elapsed", elapsed.String())
			return nil
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			s.metrics.ObserveRun(job.Name, elapsed, StatusCancelled)
			log.Warnw("job cancelled", "attempt", attempt, "error", err)
			return err
		default:
			s.metrics.ObserveRun(job.Name, elapsed, StatusError)
			if !retryable(err) {
				log.Errorw("job failed permanently", "attempt", attempt, "error", err)
				return err
			}
		}
	}

	log.Errorw("job failed", "attempts", s.attempts, "error", err)
	return err
}

// backoffFor returns the wait before retry n (1-based). The last configured
// delay repeats when there are more retries than delays.
func (s *Scheduler) backoffFor(n int) time.Duration {
	if len(s.backoff) == 0 {
		return 0
	}
	if n > len(s.backoff) {
		return s.backoff[len(s.backoff)-1]
	}
	return s.backoff[n-1]
}

func retryable(err error) bool {
	return !errors.Is(err, apperrors.ErrInvalidExclusionRules)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
