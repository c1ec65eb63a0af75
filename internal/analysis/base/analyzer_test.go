package base

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/resilience"
)

const addr = token.Address("So11111111111111111111111111111111111111112")

type fakeRPC struct {
	authorities *token.AuthorityState
	holders     *token.HolderDistribution
	pools       []token.LiquidityPool
	sample      *token.TransactionSample

	authErr, holdersErr, poolsErr, sampleErr error
}

func (f *fakeRPC) GetAuthorities(ctx context.Context, _ token.Address) (*token.AuthorityState, error) {
	return f.authorities, f.authErr
}

func (f *fakeRPC) GetHolderDistribution(ctx context.Context, _ token.Address) (*token.HolderDistribution, error) {
	return f.holders, f.holdersErr
}

func (f *fakeRPC) GetLiquidityPools(ctx context.Context, _ token.Address) ([]token.LiquidityPool, error) {
	return f.pools, f.poolsErr
}

func (f *fakeRPC) GetTransactionSample(ctx context.Context, _ token.Address) (*token.TransactionSample, error) {
	return f.sample, f.sampleErr
}

func registry() *resilience.Registry {
	return resilience.NewRegistry(resilience.Settings{
		Policy: resilience.Policy{MaxRetries: -1, BackoffBase: time.Millisecond, BackoffCap: time.Millisecond, CallTimeout: time.Second},
	}, nil)
}

func ptr(s string) *string { return &s }

func evenHolders(n int, pct float64) *token.HolderDistribution {
	d := &token.HolderDistribution{TotalSupply: 1_000_000}
	for i := 0; i < n; i++ {
		d.Holders = append(d.Holders, token.Holder{
			Address: string(rune('a' + i)),
			Owner:   string(rune('A' + i)),
			Amount:  pct * 10_000,
			Percent: pct,
		})
	}
	return d
}

func healthyRPC() *fakeRPC {
	slot := uint64(1000)
	return &fakeRPC{
		authorities: &token.AuthorityState{Supply: 1_000_000_000_000, Decimals: 6, Name: "Healthy Token", Symbol: "HLT"},
		holders:     evenHolders(10, 1),
		pools:       []token.LiquidityPool{{Address: "pool", LPSupply: 0, BurnedPercent: 100}},
		sample: &token.TransactionSample{
			CreationSlot: &slot,
			Creator:      "dev",
			Earliest: []token.Transaction{
				{Slot: 1000, Signer: "dev", Side: token.SideBuy},
				{Slot: 1050, Signer: "w1", Side: token.SideBuy},
			},
			Recent: []token.Transaction{
				{Slot: 5000, Signer: "w2", Side: token.SideBuy},
				{Slot: 5001, Signer: "w3", Side: token.SideSell},
				{Slot: 5002, Signer: "w4", Side: token.SideBuy},
			},
		},
	}
}

func TestAnalyze_HealthyToken(t *testing.T) {
	report := New(healthyRPC(), registry(), Config{}).Analyze(context.Background(), addr)

	assert.Equal(t, addr, report.TokenAddress)
	assert.True(t, report.Authorities.IsRevoked)
	assert.Equal(t, token.RiskLow, report.Authorities.RiskLevel)
	assert.Equal(t, 10.0, report.Holders.Top10HoldersPercent)
	assert.True(t, report.Liquidity.LPBurned)
	assert.False(t, report.TradingPatterns.Bundled)
	assert.Empty(t, report.RedFlags)
	assert.NotEmpty(t, report.GreenFlags)
	assert.Empty(t, report.Degraded)
	assert.False(t, report.LowConfidence)
	assert.Equal(t, token.RiskLow, report.RiskLevel)
	assert.GreaterOrEqual(t, report.SecurityScore, 85)
	assert.Equal(t, 1_000_000.0, report.Metadata.Supply)
	assert.Equal(t, "Healthy Token", report.Metadata.Name)
	assert.Equal(t, "HLT", report.Metadata.Symbol)
}

func TestAnalyze_ActiveAuthoritiesAreCritical(t *testing.T) {
	rpc := healthyRPC()
	rpc.authorities.MintAuthority = ptr("minter")
	rpc.authorities.FreezeAuthority = ptr("freezer")

	report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)

	assert.Equal(t, token.RiskCritical, report.Authorities.RiskLevel)
	assert.Zero(t, report.Authorities.Score)
	assert.Equal(t, token.RiskCritical, report.RiskLevel)
	assert.True(t, token.HasSeverity(report.RedFlags, token.SeverityCritical))
}

func TestAnalyze_AuthorityRuleTable(t *testing.T) {
	tests := []struct {
		name   string
		mint   *string
		freeze *string
		level  token.RiskLevel
	}{
		{"none", nil, nil, token.RiskLow},
		{"freeze only", nil, ptr("f"), token.RiskMedium},
		{"mint only", ptr("m"), nil, token.RiskHigh},
		{"both", ptr("m"), ptr("f"), token.RiskCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := healthyRPC()
			rpc.authorities.MintAuthority = tt.mint
			rpc.authorities.FreezeAuthority = tt.freeze
			report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)
			assert.Equal(t, tt.level, report.Authorities.RiskLevel)
		})
	}
}

func TestAnalyze_HolderThresholds(t *testing.T) {
	tests := []struct {
		pct   float64
		level token.RiskLevel
	}{
		{1, token.RiskLow},
		{1.6, token.RiskMedium},
		{3.2, token.RiskHigh},
		{5.5, token.RiskCritical},
	}
	for _, tt := range tests {
		rpc := healthyRPC()
		rpc.holders = evenHolders(10, tt.pct)
		report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)
		assert.Equal(t, tt.level, report.Holders.RiskLevel, "top10 = %.1f%%", tt.pct*10)
	}
}

func TestAnalyze_ExcludedOwnersIgnored(t *testing.T) {
	rpc := healthyRPC()
	rpc.holders.Holders = append(rpc.holders.Holders, token.Holder{
		Address: "vault", Owner: "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1", Amount: 600_000, Percent: 60,
	})

	report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)
	assert.Equal(t, 10.0, report.Holders.Top10HoldersPercent)
}

func TestAnalyze_SingleCheckDegrades(t *testing.T) {
	rpc := healthyRPC()
	rpc.holdersErr = errors.New("rpc timeout")

	report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)

	assert.True(t, report.Holders.Degraded)
	assert.Equal(t, neutralScore, report.Holders.Score)
	assert.Equal(t, []string{"holders"}, report.Degraded)
	assert.False(t, report.LowConfidence)
	assert.True(t, token.HasCategory(report.InfoFlags, token.CategoryConfidence))
	assert.False(t, token.HasCategory(report.RedFlags, token.CategoryConfidence))
}

func TestAnalyze_AllChecksDegradeToLowConfidence(t *testing.T) {
	boom := errors.New("rpc down")
	rpc := &fakeRPC{authErr: boom, holdersErr: boom, poolsErr: boom, sampleErr: boom}

	report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)

	assert.True(t, report.LowConfidence)
	assert.Len(t, report.Degraded, 4)
	assert.Equal(t, neutralScore, report.SecurityScore)
	assert.Empty(t, report.RedFlags)
}

func TestAnalyze_BundledAndSniped(t *testing.T) {
	slot := uint64(200)
	rpc := healthyRPC()
	rpc.sample = &token.TransactionSample{
		CreationSlot: &slot,
		Creator:      "dev",
		Earliest: []token.Transaction{
			{Slot: 200, Signer: "dev", Side: token.SideBuy},
			{Slot: 200, Signer: "b1", Side: token.SideBuy},
			{Slot: 200, Signer: "b2", Side: token.SideBuy},
			{Slot: 200, Signer: "b3", Side: token.SideBuy},
			{Slot: 201, Signer: "s1", Side: token.SideBuy},
			{Slot: 201, Signer: "s2", Side: token.SideBuy},
			{Slot: 202, Signer: "s3", Side: token.SideBuy},
			{Slot: 202, Signer: "s4", Side: token.SideBuy},
			{Slot: 202, Signer: "s5", Side: token.SideBuy},
			{Slot: 230, Signer: "late", Side: token.SideBuy},
		},
	}

	report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)

	tp := report.TradingPatterns
	assert.Equal(t, 3, tp.BundledWallets)
	assert.Equal(t, 5, tp.SniperWallets)
	assert.True(t, tp.Bundled)
	assert.True(t, tp.Sniped)
	assert.Equal(t, 35, tp.Score)
	assert.Equal(t, token.RiskHigh, tp.RiskLevel)
}

func TestAnalyze_WashTrading(t *testing.T) {
	rpc := healthyRPC()
	var recent []token.Transaction
	for i := 0; i < 10; i++ {
		side := token.SideBuy
		if i%2 == 1 {
			side = token.SideSell
		}
		recent = append(recent, token.Transaction{Slot: uint64(100 + i), Signer: "washer", Side: side})
	}
	recent = append(recent, token.Transaction{Slot: 200, Signer: "honest", Side: token.SideBuy})
	rpc.sample.Recent = recent

	report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)

	assert.True(t, report.TradingPatterns.WashTrading)
	assert.InDelta(t, 90.91, report.TradingPatterns.WashTradePercent, 0.01)
}

func TestAnalyze_HoneypotMarksRugged(t *testing.T) {
	rpc := healthyRPC()
	rpc.authorities.FreezeAuthority = ptr("freezer")
	var recent []token.Transaction
	for i := 0; i < 6; i++ {
		recent = append(recent, token.Transaction{Slot: uint64(i), Signer: "buyer", Side: token.SideBuy})
	}
	recent = append(recent, token.Transaction{Slot: 9, Signer: "seller", Side: token.SideSell, Failed: true})
	rpc.sample.Recent = recent

	report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)

	assert.True(t, report.Rugged)
	assert.Equal(t, token.RiskCritical, report.RiskLevel)
	assert.True(t, token.HasCategory(report.RedFlags, token.CategoryRugged))
}

func TestAnalyze_NoPools(t *testing.T) {
	rpc := healthyRPC()
	rpc.pools = nil

	report := New(rpc, registry(), Config{}).Analyze(context.Background(), addr)
	assert.Zero(t, report.Liquidity.PoolCount)
	assert.Equal(t, token.RiskHigh, report.Liquidity.RiskLevel)
	assert.False(t, report.Liquidity.Degraded)
}

func TestGini(t *testing.T) {
	even := []token.Holder{{Amount: 10}, {Amount: 10}, {Amount: 10}, {Amount: 10}}
	assert.InDelta(t, 0, gini(even), 1e-9)

	skewed := []token.Holder{{Amount: 0}, {Amount: 0}, {Amount: 0}, {Amount: 100}}
	assert.InDelta(t, 0.75, gini(skewed), 1e-9)

	require.Zero(t, gini(nil))
}
