// Package external fans out to the five market-data providers and gathers
// whatever they return into an ExternalDataBundle.
package external

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/providers"
	"github.com/sawpanic/tokenrisk/internal/resilience"
)

// Config bounds how long the aggregator waits.
type Config struct {
	// Timeout is the aggregator's own wait. Providers still pending when it
	// fires are reported as absent.
	Timeout time.Duration `yaml:"timeout"`
	// ProviderDeadline bounds each provider call, including retries,
	// independently of Timeout.
	ProviderDeadline time.Duration `yaml:"provider_deadline"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.ProviderDeadline <= 0 {
		c.ProviderDeadline = 15 * time.Second
	}
	return c
}

// Executors hands out the resilience executor for a provider name.
type Executors interface {
	Get(name string) *resilience.Executor
}

// Recorder observes how each provider call settled.
type Recorder interface {
	ProviderResult(provider string, status token.ProviderStatus, elapsed time.Duration)
}

type Option func(*Aggregator)

// WithRecorder reports per-provider outcomes, typically to metrics.
func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

// Aggregator queries every provider concurrently. It never fails as a whole.
type Aggregator struct {
	fetchers  providers.Fetchers
	executors Executors
	cfg       Config
	recorder  Recorder
}

func New(fetchers providers.Fetchers, executors Executors, cfg Config, opts ...Option) *Aggregator {
	a := &Aggregator{fetchers: fetchers, executors: executors, cfg: cfg.withDefaults()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type result struct {
	provider string
	value    interface{}
	err      error
	elapsed  time.Duration
}

// FetchAll waits for every provider to settle or for the aggregator timeout,
// whichever comes first. A failing provider never cancels its siblings.
func (a *Aggregator) FetchAll(ctx context.Context, addr token.Address) token.ExternalDataBundle {
	bundle := token.ExternalDataBundle{Status: make(map[string]token.ProviderStatus, len(token.ProviderNames))}

	// Buffered so that goroutines finishing after the timeout never block.
	results := make(chan result, len(token.ProviderNames))
	pending := make(map[string]struct{}, len(token.ProviderNames))

	start := func(name string, fetch func(context.Context) (interface{}, error)) {
		pending[name] = struct{}{}
		go func() {
			callCtx, cancel := context.WithTimeout(ctx, a.cfg.ProviderDeadline)
			defer cancel()

			began := time.Now()
			v, err := resilience.Execute(callCtx, a.executors.Get(name), fetch)
			results <- result{provider: name, value: v, err: err, elapsed: time.Since(began)}
		}()
	}

	if f := a.fetchers.RugCheck; f != nil {
		start(token.ProviderRugCheck, func(ctx context.Context) (interface{}, error) { return f.Fetch(ctx, addr) })
	}
	if f := a.fetchers.DexScreener; f != nil {
		start(token.ProviderDexScreener, func(ctx context.Context) (interface{}, error) { return f.Fetch(ctx, addr) })
	}
	if f := a.fetchers.Birdeye; f != nil {
		start(token.ProviderBirdeye, func(ctx context.Context) (interface{}, error) { return f.Fetch(ctx, addr) })
	}
	if f := a.fetchers.Solscan; f != nil {
		start(token.ProviderSolscan, func(ctx context.Context) (interface{}, error) { return f.Fetch(ctx, addr) })
	}
	if f := a.fetchers.Jupiter; f != nil {
		start(token.ProviderJupiter, func(ctx context.Context) (interface{}, error) { return f.Fetch(ctx, addr) })
	}
	for _, name := range token.ProviderNames {
		if _, ok := pending[name]; !ok {
			bundle.Status[name] = token.StatusError
		}
	}

	timer := time.NewTimer(a.cfg.Timeout)
	defer timer.Stop()

	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.provider)
			a.settle(&bundle, r, addr)
		case <-timer.C:
			a.expire(&bundle, pending, addr)
			return bundle
		case <-ctx.Done():
			a.expire(&bundle, pending, addr)
			return bundle
		}
	}
	return bundle
}

func (a *Aggregator) settle(b *token.ExternalDataBundle, r result, addr token.Address) {
	status := statusOf(r.err)
	if status == token.StatusOK && !assign(b, r.provider, r.value) {
		status = token.StatusError
	}
	b.Status[r.provider] = status

	if r.err != nil {
		log.Warn().Err(r.err).
			Str("token", addr.String()).
			Str("provider", r.provider).
			Str("status", string(status)).
			Dur("duration", r.elapsed).
			Msg("Provider unavailable")
	}
	if a.recorder != nil {
		a.recorder.ProviderResult(r.provider, status, r.elapsed)
	}
}

func (a *Aggregator) expire(b *token.ExternalDataBundle, pending map[string]struct{}, addr token.Address) {
	for name := range pending {
		b.Status[name] = token.StatusTimeout
		log.Warn().Str("token", addr.String()).Str("provider", name).Msg("Provider still pending at aggregator timeout")
		if a.recorder != nil {
			a.recorder.ProviderResult(name, token.StatusTimeout, a.cfg.Timeout)
		}
	}
}

func statusOf(err error) token.ProviderStatus {
	var pe *providers.ProviderError
	switch {
	case err == nil:
		return token.StatusOK
	case errors.Is(err, resilience.ErrCircuitOpen):
		return token.StatusCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return token.StatusTimeout
	case errors.As(err, &pe) && pe.Kind == providers.KindTimeout:
		return token.StatusTimeout
	default:
		return token.StatusError
	}
}

// assign stores a provider datum, reporting false for a nil result.
func assign(b *token.ExternalDataBundle, provider string, v interface{}) bool {
	switch provider {
	case token.ProviderRugCheck:
		d, _ := v.(*token.RugCheckData)
		b.RugCheck = d
		return d != nil
	case token.ProviderDexScreener:
		d, _ := v.(*token.DexScreenerData)
		b.DexScreener = d
		return d != nil
	case token.ProviderBirdeye:
		d, _ := v.(*token.BirdeyeData)
		b.Birdeye = d
		return d != nil
	case token.ProviderSolscan:
		d, _ := v.(*token.SolscanData)
		b.Solscan = d
		return d != nil
	case token.ProviderJupiter:
		d, _ := v.(*token.JupiterData)
		b.Jupiter = d
		return d != nil
	}
	return false
}
