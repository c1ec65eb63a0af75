package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fatalErr struct{}

func (fatalErr) Error() string   { return "bad request" }
func (fatalErr) Retryable() bool { return false }

type unknownTokenErr struct{}

func (unknownTokenErr) Error() string   { return "token not listed" }
func (unknownTokenErr) Retryable() bool { return false }
func (unknownTokenErr) NotFound() bool  { return true }

func fastSettings() Settings {
	return Settings{
		Policy: Policy{
			MaxRetries:  2,
			BackoffBase: time.Millisecond,
			BackoffCap:  2 * time.Millisecond,
			CallTimeout: 50 * time.Millisecond,
		},
		Breaker: BreakerSettings{
			FailureThreshold: 3,
			Window:           time.Minute,
			Cooldown:         40 * time.Millisecond,
		},
	}
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	ex := NewExecutor("rpc", fastSettings(), nil)

	var calls int32
	v, err := Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, StateClosed, ex.State())
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	ex := NewExecutor("rpc", fastSettings(), nil)

	var calls int32
	v, err := Execute(context.Background(), ex, func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(3), calls)
}

func TestExecute_ExhaustsRetries(t *testing.T) {
	s := fastSettings()
	s.Breaker.FailureThreshold = 100
	ex := NewExecutor("rpc", s, nil)

	var calls int32
	_, err := Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("down")
	})

	require.Error(t, err)
	assert.EqualError(t, err, "down")
	assert.Equal(t, int32(3), calls, "one attempt plus two retries")
}

func TestExecute_NonRetryableStopsImmediately(t *testing.T) {
	ex := NewExecutor("rpc", fastSettings(), nil)

	var calls int32
	_, err := Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, fatalErr{}
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls)
	assert.False(t, errors.Is(err, ErrCircuitOpen))
}

func TestExecute_AttemptHasDeadline(t *testing.T) {
	s := fastSettings()
	s.Policy.MaxRetries = -1
	ex := NewExecutor("rpc", s, nil)

	_, err := Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBreaker_OpensAndShortCircuits(t *testing.T) {
	s := fastSettings()
	s.Policy.MaxRetries = -1
	ex := NewExecutor("birdeye", s, nil)

	failing := func(ctx context.Context) (int, error) { return 0, errors.New("500") }
	for i := 0; i < 3; i++ {
		_, _ = Execute(context.Background(), ex, failing)
	}
	require.Equal(t, StateOpen, ex.State())

	var calls int32
	_, err := Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	var coe *CircuitOpenError
	require.True(t, errors.As(err, &coe))
	assert.Equal(t, "birdeye", coe.Name)
	assert.Zero(t, calls, "open circuit must not perform I/O")
}

func TestBreaker_HalfOpenTrialCloses(t *testing.T) {
	s := fastSettings()
	s.Policy.MaxRetries = -1
	ex := NewExecutor("jupiter", s, nil)

	for i := 0; i < 3; i++ {
		_, _ = Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
			return 0, errors.New("boom")
		})
	}
	require.Equal(t, StateOpen, ex.State())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, ex.State())

	v, err := Execute(context.Background(), ex, func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, StateClosed, ex.State())
}

func TestBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	ex := NewExecutor("solscan", fastSettings(), nil)

	for i := 0; i < 3; i++ {
		_, _ = Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
			return 0, fatalErr{}
		})
	}
	require.Equal(t, StateOpen, ex.State())
	time.Sleep(60 * time.Millisecond)

	var calls int32
	_, err := Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, errors.New("still down")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen, "the retry after a failed trial hits the reopened breaker")
	assert.Equal(t, int32(1), calls, "only one trial call is admitted")
	assert.Equal(t, StateOpen, ex.State())
}

func TestBreaker_HalfOpenAdmitsExactlyOneConcurrentTrial(t *testing.T) {
	s := fastSettings()
	s.Policy.MaxRetries = -1
	ex := NewExecutor("dexscreener", s, nil)

	for i := 0; i < 3; i++ {
		_, _ = Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
			return 0, fatalErr{}
		})
	}
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, ex.State())

	release := make(chan struct{})
	var calls int32
	var rejected int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 1, nil
			})
			if errors.Is(err, ErrCircuitOpen) {
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&rejected) == 4 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, StateClosed, ex.State())
}

func TestExecute_CanceledParentDoesNotTrip(t *testing.T) {
	s := fastSettings()
	s.Breaker.FailureThreshold = 1
	ex := NewExecutor("rpc", s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, ex, func(ctx context.Context) (int, error) { return 1, nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, ex.State())
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	s := fastSettings()
	s.Breaker.FailureThreshold = 1
	ex := NewExecutor("dexscreener", s, nil)

	var calls int32
	for i := 0; i < 5; i++ {
		_, err := Execute(context.Background(), ex, func(ctx context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 0, fmt.Errorf("lookup: %w", unknownTokenErr{})
		})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}
	assert.Equal(t, int32(5), calls, "one attempt per call, no retries")
	assert.Equal(t, StateClosed, ex.State())
	assert.Zero(t, ex.Counts().TotalFailures)

	_, _ = Execute(context.Background(), ex, func(ctx context.Context) (int, error) { return 0, fatalErr{} })
	assert.Equal(t, StateOpen, ex.State())
}

func TestSettings_WithDefaultsAndValidate(t *testing.T) {
	s := Settings{}.WithDefaults()
	assert.Equal(t, DefaultSettings(), s)
	require.NoError(t, s.Validate())

	bad := DefaultSettings()
	bad.Policy.BackoffBase = 5 * time.Second
	assert.Error(t, bad.Validate())

	bad = DefaultSettings()
	bad.Breaker.Cooldown = -time.Second
	assert.Error(t, bad.Validate())
}
