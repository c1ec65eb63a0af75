// Package engine orchestrates one token analysis: cache tiers, the base
// security report, external providers, derived analyzers and final scoring.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/analysis/derived"
	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/score"
)

// BaseAnalyzer produces the on-chain security report. It never fails.
type BaseAnalyzer interface {
	Analyze(ctx context.Context, addr token.Address) *token.BaseSecurityReport
}

// ExternalAggregator gathers provider data. It never fails.
type ExternalAggregator interface {
	FetchAll(ctx context.Context, addr token.Address) token.ExternalDataBundle
}

// Recorder receives engine metrics.
type Recorder interface {
	AnalysisCompleted(result string, elapsed time.Duration)
	CacheLookup(tier, result string)
	PhaseCompleted(phase Phase, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) AnalysisCompleted(string, time.Duration) {}
func (nopRecorder) CacheLookup(string, string)              {}
func (nopRecorder) PhaseCompleted(Phase, time.Duration)     {}

// Analysis results, used as metric labels.
const (
	ResultComputed = "computed"
	ResultCached   = "cached"
	ResultFallback = "fallback"
	ResultError    = "error"
)

// Deps are the engine's collaborators. Fast and Durable may be nil.
type Deps struct {
	Base     BaseAnalyzer
	External ExternalAggregator
	Fast     FastCache
	Durable  DurableStore
	Recorder Recorder
	Clock    func() time.Time
}

// Config controls cache lifetimes and scoring.
type Config struct {
	FastTTL  time.Duration  `yaml:"fast_ttl"`
	StaleTTL time.Duration  `yaml:"stale_ttl"`
	Policy   derived.Policy `yaml:"-"`
	Weights  score.Weights  `yaml:"-"`
}

func (c Config) withDefaults() Config {
	if c.FastTTL <= 0 {
		c.FastTTL = 10 * time.Minute
	}
	if c.StaleTTL <= 0 {
		c.StaleTTL = 2 * time.Hour
	}
	if c.Weights == nil {
		c.Weights = score.DefaultWeights()
	}
	c.Policy = c.Policy.WithDefaults()
	return c
}

// Options tune a single AnalyzeToken call.
type Options struct {
	ForceRefresh bool
	Observer     Observer
}

// Engine is safe for concurrent use. Identical concurrent requests each run
// their own analysis.
type Engine struct {
	base     BaseAnalyzer
	external ExternalAggregator
	fast     FastCache
	durable  DurableStore
	recorder Recorder
	now      func() time.Time
	cfg      Config
}

// New wires an engine.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Base == nil || deps.External == nil {
		return nil, fmt.Errorf("engine: base analyzer and external aggregator are required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e := &Engine{
		base:     deps.Base,
		external: deps.External,
		fast:     deps.Fast,
		durable:  deps.Durable,
		recorder: deps.Recorder,
		now:      deps.Clock,
		cfg:      cfg,
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// AnalyzeToken validates the address, serves it from cache when possible and
// otherwise runs the full analysis. A failed analysis falls back to any stored
// entry, however old, before returning a *PipelineError.
func (e *Engine) AnalyzeToken(ctx context.Context, address string, opts Options) (*token.SuperTokenScore, error) {
	addr, err := token.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	notify := func(p Phase) {
		if opts.Observer != nil {
			opts.Observer.OnPhase(p)
		}
	}

	notify(PhaseCacheLookup)
	var stale *token.CacheEntry
	if !opts.ForceRefresh {
		if hit := e.lookupFast(ctx, addr); hit != nil {
			return e.served(addr, hit.WithCacheState(true, false), ResultCached, started, notify), nil
		}
		stale = e.lookupDurable(ctx, addr)
		if stale != nil && stale.IsFresh(e.now(), e.cfg.StaleTTL) {
			e.writeFast(ctx, &stale.Payload)
			return e.served(addr, stale.Payload.WithCacheState(true, false), ResultCached, started, notify), nil
		}
	}

	result, err := e.run(ctx, addr, notify)
	if err != nil {
		if stale == nil {
			stale = e.lookupDurable(ctx, addr)
		}
		if stale != nil {
			log.Warn().Err(err).
				Str("token", addr.String()).
				Time("analyzed_at", stale.AnalyzedAt).
				Msg("Analysis failed, serving stale cached score")
			return e.served(addr, stale.Payload.WithCacheState(true, true), ResultFallback, started, notify), nil
		}
		e.recorder.AnalysisCompleted(ResultError, time.Since(started))
		log.Error().Err(err).Str("token", addr.String()).Msg("Analysis failed with no cached fallback")
		return nil, err
	}

	notify(PhaseCacheWrite)
	e.writeFast(ctx, result)
	e.writeDurable(ctx, result)

	return e.served(addr, result, ResultComputed, started, notify), nil
}

func (e *Engine) served(addr token.Address, s *token.SuperTokenScore, result string, started time.Time, notify func(Phase)) *token.SuperTokenScore {
	notify(PhaseComplete)
	elapsed := time.Since(started)
	e.recorder.AnalysisCompleted(result, elapsed)
	log.Info().
		Str("token", addr.String()).
		Str("result", result).
		Int("super_score", s.SuperScore).
		Str("risk_level", string(s.GlobalRiskLevel)).
		Dur("duration", elapsed).
		Msg("Token analysis served")
	return s
}

// run executes the analysis phases in order. A panic anywhere in the pipeline
// becomes a *PipelineError for the phase it happened in.
func (e *Engine) run(ctx context.Context, addr token.Address, notify func(Phase)) (result *token.SuperTokenScore, err error) {
	started := e.now()
	phase := PhaseBaseSecurity
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("token", addr.String()).Str("phase", string(phase)).Msg("Analysis pipeline panicked")
			result, err = nil, &PipelineError{Token: addr, Phase: phase, Panic: true, Err: fmt.Errorf("%v", p)}
		}
	}()

	var (
		base     *token.BaseSecurityReport
		external token.ExternalDataBundle
		outcome  derived.Outcome
	)
	steps := []struct {
		phase Phase
		fn    func()
	}{
		{PhaseBaseSecurity, func() { base = e.base.Analyze(ctx, addr) }},
		{PhaseExternalData, func() { external = e.external.FetchAll(ctx, addr) }},
		{PhaseDerivedAnalysis, func() {
			outcome = derived.RunAll(derived.Input{Base: base, External: external, Policy: e.cfg.Policy, Now: started})
		}},
		{PhaseScoring, func() { result = e.assemble(addr, base, external, outcome, started) }},
	}
	for _, step := range steps {
		phase = step.phase
		if err := ctx.Err(); err != nil {
			return nil, &PipelineError{Token: addr, Phase: phase, Err: err}
		}
		notify(phase)
		stepStart := time.Now()
		step.fn()
		e.recorder.PhaseCompleted(phase, time.Since(stepStart))
		log.Debug().Str("token", addr.String()).Str("phase", string(phase)).Dur("duration", time.Since(stepStart)).Msg("Analysis phase completed")
	}
	if base == nil {
		return nil, &PipelineError{Token: addr, Phase: PhaseBaseSecurity, Err: fmt.Errorf("no base security report")}
	}
	return result, nil
}

func (e *Engine) assemble(addr token.Address, base *token.BaseSecurityReport, ext token.ExternalDataBundle, out derived.Outcome, started time.Time) *token.SuperTokenScore {
	var red, green, info token.FlagSet
	if base != nil {
		red.Add(base.RedFlags...)
		green.Add(base.GreenFlags...)
		info.Add(base.InfoFlags...)
	}
	red.Add(out.Red...)
	green.Add(out.Green...)
	info.Add(out.Info...)
	for _, name := range token.ProviderNames {
		if st, ok := ext.Status[name]; ok && st != token.StatusOK {
			info.Add(token.Info(token.CategoryProvider, fmt.Sprintf("Provider %s unavailable (%s)", name, st)))
		}
	}

	redFlags := red.Slice()
	superScore := e.cfg.Weights.Composite(out.Breakdown)
	rugged := base != nil && base.Rugged
	level := score.Classify(superScore, redFlags, rugged)

	s := &token.SuperTokenScore{
		TokenAddress:       addr,
		SuperScore:         superScore,
		GlobalRiskLevel:    level,
		Recommendation:     score.Recommendation(level),
		ScoreBreakdown:     out.Breakdown,
		Analyses:           out.Analyses,
		AllRedFlags:        redFlags,
		GreenFlags:         green.Slice(),
		InfoFlags:          info.Slice(),
		BaseSecurityReport: base,
		RugCheckData:       ext.RugCheck,
		DexScreenerData:    ext.DexScreener,
		BirdeyeData:        ext.Birdeye,
		SolscanData:        ext.Solscan,
		JupiterData:        ext.Jupiter,
		ProviderStatus:     ext.Status,
		LowConfidence:      (base != nil && base.LowConfidence) || ext.Available() == 0,
		AnalyzedAt:         e.now().UTC(),
		AnalysisTimeMs:     e.now().Sub(started).Milliseconds(),
	}
	s.TokenName, s.TokenSymbol = names(ext, base)
	return s
}

// names prefers the DEX pair's naming, then the explorer's, then the on-chain
// metadata.
func names(ext token.ExternalDataBundle, base *token.BaseSecurityReport) (name, symbol string) {
	if d := ext.DexScreener; d != nil {
		if d.Name != nil {
			name = *d.Name
		}
		if d.Symbol != nil {
			symbol = *d.Symbol
		}
	}
	if s := ext.Solscan; s != nil {
		if name == "" && s.Name != nil {
			name = *s.Name
		}
		if symbol == "" && s.Symbol != nil {
			symbol = *s.Symbol
		}
	}
	if base != nil {
		if name == "" {
			name = base.Metadata.Name
		}
		if symbol == "" {
			symbol = base.Metadata.Symbol
		}
	}
	return name, symbol
}
