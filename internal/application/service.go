// Package application wires configuration into a running analysis stack.
package application

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/analysis/base"
	"github.com/sawpanic/tokenrisk/internal/analysis/external"
	"github.com/sawpanic/tokenrisk/internal/cache"
	"github.com/sawpanic/tokenrisk/internal/config"
	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/engine"
	"github.com/sawpanic/tokenrisk/internal/infrastructure/db"
	httpapi "github.com/sawpanic/tokenrisk/internal/interfaces/http"
	"github.com/sawpanic/tokenrisk/internal/metrics"
	"github.com/sawpanic/tokenrisk/internal/persistence"
	"github.com/sawpanic/tokenrisk/internal/providers"
	"github.com/sawpanic/tokenrisk/internal/providers/birdeye"
	"github.com/sawpanic/tokenrisk/internal/providers/dexscreener"
	"github.com/sawpanic/tokenrisk/internal/providers/httpjson"
	"github.com/sawpanic/tokenrisk/internal/providers/jupiter"
	"github.com/sawpanic/tokenrisk/internal/providers/rugcheck"
	"github.com/sawpanic/tokenrisk/internal/providers/solana"
	"github.com/sawpanic/tokenrisk/internal/providers/solscan"
	"github.com/sawpanic/tokenrisk/internal/ratelimit"
	"github.com/sawpanic/tokenrisk/internal/resilience"
	"github.com/sawpanic/tokenrisk/internal/secrets"
)

// ErrNoDurableStore is returned by the durable store queries when Postgres is
// not configured.
var ErrNoDurableStore = errors.New("durable score store is not enabled")

// Service holds the wired analysis stack.
type Service struct {
	Config   *config.AppConfig
	Engine   *engine.Engine
	Breakers *resilience.Registry
	Metrics  *metrics.MetricsRegistry
	Health   *httpapi.HealthHandler

	// Scores is nil unless Postgres is enabled and reachable.
	Scores persistence.ScoreRepo

	closers []func() error
}

type options struct {
	registerer prometheus.Registerer
	version    string
}

// Option customizes Build.
type Option func(*options)

// WithRegisterer registers metrics somewhere other than the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// Build constructs every component named in cfg. Cache tiers that cannot be
// reached at startup are replaced by in-process ones.
func Build(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Service, error) {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	m := metrics.NewMetricsRegistry(o.registerer)
	breakers := resilience.NewRegistry(cfg.Resilience.Defaults, cfg.Resilience.Overrides, m.BreakerChanged)
	limiter := ratelimit.NewLimiter(ratelimit.Limit{}, cfg.RateLimits(solana.LimiterKey))

	rpc := solana.New(cfg.Chain.Config, limiter)
	aggregator := external.New(buildFetchers(cfg, limiter), breakers, cfg.Aggregator, external.WithRecorder(m))

	s := &Service{Config: cfg, Breakers: breakers, Metrics: m}
	checks := make(map[string]httpapi.Pinger)
	fast := s.fastTier(ctx, checks)
	durable := s.durableTier(ctx, checks)

	eng, err := engine.New(engine.Deps{
		Base:     base.New(rpc, breakers, cfg.Base),
		External: aggregator,
		Fast:     fast,
		Durable:  durable,
		Recorder: m,
	}, engine.Config{
		FastTTL:  cfg.Cache.FastTTL,
		StaleTTL: cfg.Cache.StaleTTL,
		Policy:   cfg.Policy,
		Weights:  cfg.Weights,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Engine = eng
	s.Health = httpapi.NewHealthHandler(breakers, checks, o.version)

	log.Info().
		Bool("redis", checks["redis"] != nil).
		Bool("postgres", s.Scores != nil).
		Int("providers", enabledProviders(cfg)).
		Str("rpc", secrets.RedactURL(cfg.Chain.Endpoint)).
		Msg("Analysis stack ready")
	return s, nil
}

func (s *Service) fastTier(ctx context.Context, checks map[string]httpapi.Pinger) engine.FastCache {
	if s.Config.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, s.Config.Redis)
		if err == nil {
			checks["redis"] = rc
			s.closers = append(s.closers, rc.Close)
			return rc
		}
		log.Warn().Err(err).Str("addr", s.Config.Redis.Addr).Msg("Redis unavailable, using in-process fast cache")
	}
	mem := cache.NewMemory(time.Minute)
	s.closers = append(s.closers, func() error { mem.Close(); return nil })
	return mem
}

func (s *Service) durableTier(ctx context.Context, checks map[string]httpapi.Pinger) engine.DurableStore {
	if s.Config.Database.Enabled {
		mgr, err := db.NewManager(ctx, s.Config.Database)
		if err == nil && mgr.IsEnabled() {
			checks["postgres"] = mgr.Health()
			s.closers = append(s.closers, mgr.Close)
			s.Scores = mgr.Repository().Scores
			return s.Scores
		}
		if err != nil {
			log.Warn().Str("error", secrets.Redact(err.Error())).Msg("Postgres unavailable, using in-process durable store")
		}
	}
	return cache.NewMemoryStore()
}

// Server builds the HTTP transport over the engine.
func (s *Service) Server() *httpapi.Server {
	sc := s.Config.Server
	return httpapi.NewServer(httpapi.ServerConfig{
		Addr:           sc.Addr(),
		RequestTimeout: sc.RequestTimeout,
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
	}, httpapi.Deps{
		Analyzer: s.Engine,
		Health:   s.Health,
		Metrics:  s.Metrics.MetricsHandler(),
		Streams:  s.Metrics,
	})
}

// Prune deletes durable entries analyzed more than maxAge ago.
func (s *Service) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if s.Scores == nil {
		return 0, ErrNoDurableStore
	}
	return s.Scores.DeleteOlderThan(ctx, time.Now().Add(-maxAge))
}

// Recent lists the latest durable entries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]persistence.ScoreRecord, error) {
	if s.Scores == nil {
		return nil, ErrNoDurableStore
	}
	return s.Scores.ListRecent(ctx, limit)
}

// RiskLevelCounts totals durable entries per global risk level.
func (s *Service) RiskLevelCounts(ctx context.Context) (map[string]int64, error) {
	if s.Scores == nil {
		return nil, ErrNoDurableStore
	}
	return s.Scores.CountByRiskLevel(ctx)
}

// Close releases cache and database connections.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func buildFetchers(cfg *config.AppConfig, limiter *ratelimit.Limiter) providers.Fetchers {
	transport := sharedTransport()
	opts := func(name string) []httpjson.Option {
		timeout := cfg.Providers[name].Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return []httpjson.Option{
			httpjson.WithLimiter(limiter),
			httpjson.WithHTTPClient(&http.Client{Timeout: timeout, Transport: transport}),
		}
	}

	var f providers.Fetchers
	if cfg.Enabled(token.ProviderRugCheck) {
		p := cfg.Providers[token.ProviderRugCheck]
		f.RugCheck = rugcheck.New(p.BaseURL, p.APIKey, opts(token.ProviderRugCheck)...)
	}
	if cfg.Enabled(token.ProviderDexScreener) {
		p := cfg.Providers[token.ProviderDexScreener]
		f.DexScreener = dexscreener.New(p.BaseURL, opts(token.ProviderDexScreener)...)
	}
	if cfg.Enabled(token.ProviderBirdeye) {
		p := cfg.Providers[token.ProviderBirdeye]
		f.Birdeye = birdeye.New(p.BaseURL, p.APIKey, opts(token.ProviderBirdeye)...)
	}
	if cfg.Enabled(token.ProviderSolscan) {
		p := cfg.Providers[token.ProviderSolscan]
		f.Solscan = solscan.New(p.BaseURL, p.APIKey, opts(token.ProviderSolscan)...)
	}
	if cfg.Enabled(token.ProviderJupiter) {
		p := cfg.Providers[token.ProviderJupiter]
		f.Jupiter = jupiter.New(p.BaseURL, cfg.Policy.SimulationSizesSOL, opts(token.ProviderJupiter)...)
	}
	return f
}

// sharedTransport pools connections across all provider clients.
func sharedTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

func enabledProviders(cfg *config.AppConfig) int {
	n := 0
	for _, name := range token.ProviderNames {
		if cfg.Enabled(name) {
			n++
		}
	}
	return n
}
