// Package resilience wraps fallible calls in retry-with-backoff and a per-name
// circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Policy controls retries for one executor.
type Policy struct {
	MaxRetries  int           `yaml:"max_retries"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffCap  time.Duration `yaml:"backoff_cap"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// BreakerSettings controls when the circuit opens and how long it stays open.
type BreakerSettings struct {
	FailureThreshold uint32        `yaml:"failure_threshold"`
	Window           time.Duration `yaml:"window"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// Settings is the full configuration of one executor.
type Settings struct {
	Policy  Policy          `yaml:"policy"`
	Breaker BreakerSettings `yaml:"breaker"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Policy: Policy{
			MaxRetries:  2,
			BackoffBase: 200 * time.Millisecond,
			BackoffCap:  2 * time.Second,
			CallTimeout: 5 * time.Second,
		},
		Breaker: BreakerSettings{
			FailureThreshold: 5,
			Window:           60 * time.Second,
			Cooldown:         30 * time.Second,
		},
	}
}

// WithDefaults fills zero fields from DefaultSettings. A negative MaxRetries
// means no retries.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.Policy.MaxRetries == 0 {
		s.Policy.MaxRetries = d.Policy.MaxRetries
	}
	if s.Policy.BackoffBase == 0 {
		s.Policy.BackoffBase = d.Policy.BackoffBase
	}
	if s.Policy.BackoffCap == 0 {
		s.Policy.BackoffCap = d.Policy.BackoffCap
	}
	if s.Policy.CallTimeout == 0 {
		s.Policy.CallTimeout = d.Policy.CallTimeout
	}
	if s.Breaker.FailureThreshold == 0 {
		s.Breaker.FailureThreshold = d.Breaker.FailureThreshold
	}
	if s.Breaker.Window == 0 {
		s.Breaker.Window = d.Breaker.Window
	}
	if s.Breaker.Cooldown == 0 {
		s.Breaker.Cooldown = d.Breaker.Cooldown
	}
	return s
}

// Validate rejects settings that cannot drive a breaker.
func (s Settings) Validate() error {
	if s.Policy.BackoffBase < 0 || s.Policy.BackoffCap < 0 || s.Policy.CallTimeout < 0 {
		return fmt.Errorf("resilience: negative duration in policy")
	}
	if s.Policy.BackoffCap > 0 && s.Policy.BackoffBase > s.Policy.BackoffCap {
		return fmt.Errorf("resilience: backoff base %v exceeds cap %v", s.Policy.BackoffBase, s.Policy.BackoffCap)
	}
	if s.Breaker.Window < 0 || s.Breaker.Cooldown < 0 {
		return fmt.Errorf("resilience: negative duration in breaker settings")
	}
	return nil
}

// State is a breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// StateListener is notified of every breaker transition.
type StateListener func(name string, from, to State)

// ErrCircuitOpen matches any CircuitOpenError via errors.Is.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitOpenError is returned without any I/O while a breaker rejects calls.
type CircuitOpenError struct {
	Name string
	Err  error
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %s open: %v", e.Name, e.Err)
}

func (e *CircuitOpenError) Unwrap() error { return e.Err }

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// retryable is implemented by errors that know whether another attempt can help.
type retryable interface {
	Retryable() bool
}

// notFound is implemented by errors meaning the dependency answered but had
// nothing for the request. They reach the caller without counting as breaker
// failures.
type notFound interface {
	NotFound() bool
}

func isNotFound(err error) bool {
	var nf notFound
	return errors.As(err, &nf) && nf.NotFound()
}

// Executor is a named breaker plus its retry policy. It is safe for concurrent use.
type Executor struct {
	name    string
	policy  Policy
	breaker *gobreaker.CircuitBreaker
}

// NewExecutor builds an executor. onChange may be nil.
func NewExecutor(name string, settings Settings, onChange StateListener) *Executor {
	settings = settings.WithDefaults()
	threshold := settings.Breaker.FailureThreshold

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    settings.Breaker.Window,
		Timeout:     settings.Breaker.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || isNotFound(err)
		},
	}
	if onChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			onChange(name, fromGobreaker(from), fromGobreaker(to))
		}
	}

	return &Executor{
		name:    name,
		policy:  settings.Policy,
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// Name returns the breaker name.
func (e *Executor) Name() string { return e.name }

// State returns the current breaker state.
func (e *Executor) State() State { return fromGobreaker(e.breaker.State()) }

// Counts returns the breaker's counters for the current window.
func (e *Executor) Counts() gobreaker.Counts { return e.breaker.Counts() }

func (e *Executor) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.policy.BackoffBase
	b.MaxInterval = e.policy.BackoffCap
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	retries := e.policy.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Execute runs op through the executor's breaker, retrying with jittered
// exponential backoff while the breaker admits calls. Every attempt gets its
// own CallTimeout deadline.
func Execute[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}

		out, err := e.breaker.Execute(func() (interface{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, e.policy.CallTimeout)
			defer cancel()
			return op(callCtx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return zero, backoff.Permanent(&CircuitOpenError{Name: e.name, Err: err})
			}
			var r retryable
			if errors.As(err, &r) && !r.Retryable() {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		v, _ := out.(T)
		return v, nil
	}

	return backoff.RetryWithData(attempt, e.backoff(ctx))
}

// Do is Execute for operations without a result.
func Do(ctx context.Context, e *Executor, op func(context.Context) error) error {
	_, err := Execute(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
