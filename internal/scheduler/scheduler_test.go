package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
)

func newTestScheduler(t *testing.T, attempts int, backoff ...time.Duration) (*Scheduler, *[]time.Duration) {
	t.Helper()
	cfg := config.DefaultJobs()
	cfg.RetryAttempts = attempts
	cfg.RetryBackoff = backoff

	s := New(cfg)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	var waits []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return s, &waits
}

func TestRunJob(t *testing.T) {
	t.Run("succeeds_first_time", func(t *testing.T) {
		s, waits := newTestScheduler(t, 2, time.Minute, 5*time.Minute)
		calls := 0
		err := s.RunJob(context.Background(), Job{Name: "ok", Run: func(context.Context) error {
			calls++
			return nil
		}})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Empty(t, *waits)
	})

	t.Run("retries_with_backoff_schedule", func(t *testing.T) {
		s, waits := newTestScheduler(t, 2, time.Minute, 5*time.Minute)
		calls := 0
		err := s.RunJob(context.Background(), Job{Name: "flaky", Run: func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("upstream unavailable")
			}
			return nil
		}})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{time.Minute, 5 * time.Minute}, *waits)
	})

	t.Run("gives_up_after_attempts", func(t *testing.T) {
		s, waits := newTestScheduler(t, 2, time.Minute, 5*time.Minute)
		calls := 0
		err := s.RunJob(context.Background(), Job{Name: "broken", Run: func(context.Context) error {
			calls++
			return apperrors.ErrQuoteFetchFailed
		}})

		assert.ErrorIs(t, err, apperrors.ErrQuoteFetchFailed)
		assert.Equal(t, 3, calls)
		assert.Len(t, *waits, 2)
	})

	t.Run("repeats_last_delay", func(t *testing.T) {
		s, waits := newTestScheduler(t, 3, time.Second)
		_ = s.RunJob(context.Background(), Job{Name: "broken", Run: func(context.Context) error {
			return errors.New("boom")
		}})

		assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, *waits)
	})

	t.Run("no_retries_configured", func(t *testing.T) {
		s, _ := newTestScheduler(t, 0)
		calls := 0
		err := s.RunJob(context.Background(), Job{Name: "once", Run: func(context.Context) error {
			calls++
			return errors.New("boom")
		}})

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("does_not_retry_cancellation", func(t *testing.T) {
		s, waits := newTestScheduler(t, 2, time.Minute)
		calls := 0
		err := s.RunJob(context.Background(), Job{Name: "cancelled", Run: func(context.Context) error {
			calls++
			return context.Canceled
		}})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
		assert.Empty(t, *waits)
	})

	t.Run("stops_when_context_cancelled_during_backoff", func(t *testing.T) {
		s, _ := newTestScheduler(t, 2, time.Minute)
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := s.RunJob(ctx, Job{Name: "slow", Run: func(context.Context) error {
			calls++
			cancel()
			return apperrors.ErrQuoteFetchFailed
		}})

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("does_not_retry_invalid_config", func(t *testing.T) {
		s, _ := newTestScheduler(t, 2, time.Minute)
		calls := 0
		err := s.RunJob(context.Background(), Job{Name: "misconfigured", Run: func(context.Context) error {
			calls++
			return apperrors.Wrap(apperrors.ErrInvalidExclusionRules, errors.New("missing )"))
		}})

		assert.ErrorIs(t, err, apperrors.ErrInvalidExclusionRules)
		assert.Equal(t, 1, calls)
	})
}

func TestRegister(t *testing.T) {
	s, _ := newTestScheduler(t, 0)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register(Job{Name: "a", Spec: "30 23 * * *", Run: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Spec: "@daily", Run: noop}), "duplicate name")
	assert.Error(t, s.Register(Job{Name: "b", Spec: "61 * * * *", Run: noop}), "bad spec")
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
