// Package base produces the on-chain BaseSecurityReport: authorities, holder
// concentration, liquidity locks and trading-pattern heuristics.
package base

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/providers"
	"github.com/sawpanic/tokenrisk/internal/resilience"
)

// Executor names, one breaker per sub-check.
const (
	CheckAuthorities  = "solana.authorities"
	CheckHolders      = "solana.holders"
	CheckLiquidity    = "solana.liquidity"
	CheckTransactions = "solana.transactions"
)

// Sub-check weights in the security score.
const (
	weightAuthorities = 0.35
	weightHolders     = 0.30
	weightLiquidity   = 0.20
	weightPatterns    = 0.15

	neutralScore = 50
)

// Executors hands out the resilience executor for a name.
type Executors interface {
	Get(name string) *resilience.Executor
}

// Config holds the heuristics' thresholds.
type Config struct {
	// ExcludedOwners are wallets (AMM authorities, burn address) ignored when
	// measuring holder concentration.
	ExcludedOwners []string `yaml:"excluded_owners"`

	BundleMinSigners int     `yaml:"bundle_min_signers"`
	SnipeSlots       uint64  `yaml:"snipe_slots"`
	SnipeMinBuyers   int     `yaml:"snipe_min_buyers"`
	WashSignerShare  float64 `yaml:"wash_signer_share"`
	HoneypotMinBuys  int     `yaml:"honeypot_min_buys"`
}

// DefaultConfig returns the thresholds used when none are configured.
func DefaultConfig() Config {
	return Config{
		ExcludedOwners: []string{
			"5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1", // Raydium AMM v4 authority
			"1nc1nerator11111111111111111111111111111111",
		},
		BundleMinSigners: 3,
		SnipeSlots:       2,
		SnipeMinBuyers:   5,
		WashSignerShare:  25,
		HoneypotMinBuys:  5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ExcludedOwners == nil {
		c.ExcludedOwners = d.ExcludedOwners
	}
	if c.BundleMinSigners <= 0 {
		c.BundleMinSigners = d.BundleMinSigners
	}
	if c.SnipeSlots == 0 {
		c.SnipeSlots = d.SnipeSlots
	}
	if c.SnipeMinBuyers <= 0 {
		c.SnipeMinBuyers = d.SnipeMinBuyers
	}
	if c.WashSignerShare <= 0 {
		c.WashSignerShare = d.WashSignerShare
	}
	if c.HoneypotMinBuys <= 0 {
		c.HoneypotMinBuys = d.HoneypotMinBuys
	}
	return c
}

// Analyzer runs the four on-chain sub-checks.
type Analyzer struct {
	rpc       providers.ChainRPC
	executors Executors
	cfg       Config
	excluded  map[string]struct{}
	now       func() time.Time
}

// New creates an analyzer.
func New(rpc providers.ChainRPC, executors Executors, cfg Config) *Analyzer {
	cfg = cfg.withDefaults()
	excluded := make(map[string]struct{}, len(cfg.ExcludedOwners))
	for _, o := range cfg.ExcludedOwners {
		excluded[o] = struct{}{}
	}
	return &Analyzer{
		rpc:       rpc,
		executors: executors,
		cfg:       cfg,
		excluded:  excluded,
		now:       time.Now,
	}
}

type fetched struct {
	authorities *token.AuthorityState
	holders     *token.HolderDistribution
	pools       []token.LiquidityPool
	sample      *token.TransactionSample

	authErr, holdersErr, poolsErr, sampleErr error
}

// Analyze never fails: a sub-check whose RPC calls are exhausted degrades to
// a neutral score and an informational flag.
func (a *Analyzer) Analyze(ctx context.Context, addr token.Address) *token.BaseSecurityReport {
	f := a.fetch(ctx, addr)

	report := &token.BaseSecurityReport{
		TokenAddress: addr,
		AnalyzedAt:   a.now().UTC(),
	}
	var red, green, info token.FlagSet

	report.Authorities = a.authorities(f, &red, &green)
	report.Holders = a.holders(f, &red, &green)
	report.Liquidity = a.liquidity(f, &red, &green)
	report.TradingPatterns = a.patterns(f, &red, &green, &info)

	if f.authorities != nil {
		report.Metadata.Name = f.authorities.Name
		report.Metadata.Symbol = f.authorities.Symbol
		report.Metadata.Decimals = int(f.authorities.Decimals)
		report.Metadata.Supply = float64(f.authorities.Supply) / math.Pow10(int(f.authorities.Decimals))
	}

	if rugged, reason := a.honeypot(f); rugged {
		report.Rugged = true
		red.Add(token.Red(token.CategoryRugged, token.SeverityCritical, reason))
	}

	for _, d := range []struct {
		name     string
		degraded bool
	}{
		{"authorities", report.Authorities.Degraded},
		{"holders", report.Holders.Degraded},
		{"liquidity", report.Liquidity.Degraded},
		{"trading_patterns", report.TradingPatterns.Degraded},
	} {
		if d.degraded {
			report.Degraded = append(report.Degraded, d.name)
			info.Add(token.Info(token.CategoryConfidence, "On-chain "+d.name+" check unavailable, using neutral score"))
		}
	}
	if len(report.Degraded) == 4 {
		report.LowConfidence = true
		info.Add(token.Info(token.CategoryConfidence, "All on-chain checks failed, report is low confidence"))
	}

	score := weightAuthorities*float64(report.Authorities.Score) +
		weightHolders*float64(report.Holders.Score) +
		weightLiquidity*float64(report.Liquidity.Score) +
		weightPatterns*float64(report.TradingPatterns.Score)
	report.SecurityScore = clamp(int(math.Round(score)))
	report.RiskLevel = token.WorstOf(
		report.Authorities.RiskLevel,
		report.Holders.RiskLevel,
		report.Liquidity.RiskLevel,
		report.TradingPatterns.RiskLevel,
		levelForScore(report.SecurityScore),
	)
	if report.Rugged {
		report.RiskLevel = token.RiskCritical
	}

	report.RedFlags = red.Slice()
	report.GreenFlags = green.Slice()
	report.InfoFlags = info.Slice()

	log.Debug().
		Str("token", addr.String()).
		Int("security_score", report.SecurityScore).
		Str("risk_level", string(report.RiskLevel)).
		Strs("degraded", report.Degraded).
		Msg("Base security analysis complete")
	return report
}

// fetch runs the four RPC reads concurrently, each behind its own breaker.
func (a *Analyzer) fetch(ctx context.Context, addr token.Address) fetched {
	var f fetched
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		f.authorities, f.authErr = resilience.Execute(ctx, a.executors.Get(CheckAuthorities),
			func(ctx context.Context) (*token.AuthorityState, error) { return a.rpc.GetAuthorities(ctx, addr) })
	}()
	go func() {
		defer wg.Done()
		f.holders, f.holdersErr = resilience.Execute(ctx, a.executors.Get(CheckHolders),
			func(ctx context.Context) (*token.HolderDistribution, error) { return a.rpc.GetHolderDistribution(ctx, addr) })
	}()
	go func() {
		defer wg.Done()
		f.pools, f.poolsErr = resilience.Execute(ctx, a.executors.Get(CheckLiquidity),
			func(ctx context.Context) ([]token.LiquidityPool, error) { return a.rpc.GetLiquidityPools(ctx, addr) })
	}()
	go func() {
		defer wg.Done()
		f.sample, f.sampleErr = resilience.Execute(ctx, a.executors.Get(CheckTransactions),
			func(ctx context.Context) (*token.TransactionSample, error) { return a.rpc.GetTransactionSample(ctx, addr) })
	}()
	wg.Wait()

	for name, err := range map[string]error{
		CheckAuthorities:  f.authErr,
		CheckHolders:      f.holdersErr,
		CheckLiquidity:    f.poolsErr,
		CheckTransactions: f.sampleErr,
	} {
		if err != nil {
			log.Warn().Err(err).Str("token", addr.String()).Str("check", name).Msg("On-chain check degraded")
		}
	}
	return f
}

func levelForScore(score int) token.RiskLevel {
	switch {
	case score >= 70:
		return token.RiskLow
	case score >= 50:
		return token.RiskMedium
	case score >= 30:
		return token.RiskHigh
	default:
		return token.RiskCritical
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
