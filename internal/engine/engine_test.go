package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

const mint = "So11111111111111111111111111111111111111112"

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }
func boolp(v bool) *bool     { return &v }
func strp(v string) *string  { return &v }
func daysAgo(d int) *time.Time {
	t := now.Add(-time.Duration(d) * 24 * time.Hour)
	return &t
}

type fakeBase struct {
	calls  int32
	report func() *token.BaseSecurityReport
}

func (f *fakeBase) Analyze(ctx context.Context, addr token.Address) *token.BaseSecurityReport {
	atomic.AddInt32(&f.calls, 1)
	r := f.report()
	r.TokenAddress = addr
	return r
}

type fakeExternal struct {
	bundle func() token.ExternalDataBundle
}

func (f *fakeExternal) FetchAll(ctx context.Context, addr token.Address) token.ExternalDataBundle {
	return f.bundle()
}

type memFast struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func (m *memFast) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memFast) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = value
	return nil
}

type memDurable struct {
	mu      sync.Mutex
	entries map[token.Address]token.CacheEntry
	getErr  error
}

func (m *memDurable) Get(_ context.Context, addr token.Address) (*token.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[addr]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memDurable) Put(_ context.Context, e token.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[token.Address]token.CacheEntry{}
	}
	m.entries[e.TokenAddress] = e
	return nil
}

func healthyReport() *token.BaseSecurityReport {
	slot := uint64(1000)
	var holders []token.Holder
	for i := 0; i < 10; i++ {
		first := uint64(5000 + i)
		holders = append(holders, token.Holder{
			Address:   string(rune('a' + i)),
			Percent:   1,
			Amount:    10_000,
			FirstSeen: daysAgo(60),
			FirstSlot: &first,
		})
	}
	return &token.BaseSecurityReport{
		SecurityScore: 85,
		RiskLevel:     token.RiskLow,
		Authorities:   token.AuthorityAnalysis{IsRevoked: true, RiskLevel: token.RiskLow, Score: 100},
		Holders:       token.HolderAnalysis{Top10HoldersPercent: 10, TopHolders: holders, RiskLevel: token.RiskLow, Score: 88},
		Liquidity:     token.LiquidityAnalysis{LPBurned: true, PoolCount: 1, RiskLevel: token.RiskLow, Score: 100},
		TradingPatterns: token.TradingPatternAnalysis{
			CreationSlot: &slot,
			Creator:      "dev",
			Earliest:     []token.Transaction{{Signature: "e1", Slot: 1000, Signer: "dev", Side: token.SideBuy}},
			Recent: []token.Transaction{
				{Signature: "r1", Slot: 9000, Signer: "w1", Side: token.SideBuy},
				{Signature: "r2", Slot: 9001, Signer: "w2", Side: token.SideSell},
			},
			RiskLevel: token.RiskLow,
			Score:     100,
		},
		RedFlags:   []token.Flag{},
		GreenFlags: []token.Flag{token.Green(token.CategoryAuthority, 15, "Mint and freeze authorities are revoked")},
		InfoFlags:  []token.Flag{},
		AnalyzedAt: now,
	}
}

func criticalReport() *token.BaseSecurityReport {
	r := healthyReport()
	r.SecurityScore = 20
	r.RiskLevel = token.RiskCritical
	r.Authorities = token.AuthorityAnalysis{HasMintAuthority: true, HasFreezeAuthority: true, RiskLevel: token.RiskCritical}
	r.RedFlags = []token.Flag{token.Red(token.CategoryAuthority, token.SeverityCritical, "Mint authority is active: supply can be inflated")}
	r.GreenFlags = []token.Flag{}
	return r
}

func degradedReport() *token.BaseSecurityReport {
	return &token.BaseSecurityReport{
		SecurityScore: 50,
		RiskLevel:     token.RiskMedium,
		Authorities:   token.AuthorityAnalysis{RiskLevel: token.RiskMedium, Score: 50, Degraded: true},
		Holders:       token.HolderAnalysis{RiskLevel: token.RiskMedium, Score: 50, Degraded: true},
		Liquidity:     token.LiquidityAnalysis{RiskLevel: token.RiskMedium, Score: 50, Degraded: true},
		TradingPatterns: token.TradingPatternAnalysis{
			RiskLevel: token.RiskMedium, Score: 50, Degraded: true,
		},
		RedFlags:      []token.Flag{},
		GreenFlags:    []token.Flag{},
		InfoFlags:     []token.Flag{token.Info(token.CategoryConfidence, "All on-chain checks failed, report is low confidence")},
		Degraded:      []string{"authorities", "holders", "liquidity", "trading_patterns"},
		LowConfidence: true,
	}
}

func healthyBundle() token.ExternalDataBundle {
	return token.ExternalDataBundle{
		RugCheck: &token.RugCheckData{
			ScoreNormalised: intp(5),
			TotalHolders:    intp(12000),
			Rugged:          boolp(false),
			Lockers:         []token.RugCheckLocker{{Type: "team", UnlockAt: daysAgo(-180)}},
		},
		DexScreener: &token.DexScreenerData{
			Name:          strp("Healthy Token"),
			Symbol:        strp("HLT"),
			QuoteSymbol:   strp("SOL"),
			PriceUSD:      f64(0.5),
			PriceNative:   f64(0.0025),
			LiquidityUSD:  f64(2_000_000),
			MarketCap:     f64(10_000_000),
			Volume:        token.Window{H24: f64(800_000)},
			PriceChange:   token.Window{H1: f64(1), H6: f64(4), H24: f64(12)},
			TxnsH1:        &token.TxnCounts{Buys: 60, Sells: 40},
			TxnsH24:       &token.TxnCounts{Buys: 1400, Sells: 1100},
			PairCreatedAt: daysAgo(90),
			Websites:      []string{"https://example.org"},
			Socials:       []string{"https://x.com/example", "https://t.me/example"},
		},
		Birdeye: &token.BirdeyeData{
			LiquidityUSD:     f64(2_000_000),
			MarketCap:        f64(10_200_000),
			Volume24hUSD:     f64(800_000),
			Holders:          intp(12100),
			UniqueWallets24h: intp(1500),
			Trades24h:        intp(2500),
		},
		Solscan: &token.SolscanData{Name: strp("Explorer Name"), Holders: intp(11900), MarketCap: f64(9_900_000)},
		Jupiter: &token.JupiterData{
			Routable: boolp(true),
			Quotes: []token.JupiterQuote{
				{InputSOL: 1, PriceImpactPct: 0.01},
				{InputSOL: 10, PriceImpactPct: 0.1},
				{InputSOL: 100, PriceImpactPct: 0.9},
			},
		},
		Status: map[string]token.ProviderStatus{
			token.ProviderRugCheck:    token.StatusOK,
			token.ProviderDexScreener: token.StatusOK,
			token.ProviderBirdeye:     token.StatusOK,
			token.ProviderSolscan:     token.StatusOK,
			token.ProviderJupiter:     token.StatusOK,
		},
	}
}

func failedBundle() token.ExternalDataBundle {
	status := map[string]token.ProviderStatus{}
	for _, name := range token.ProviderNames {
		status[name] = token.StatusError
	}
	return token.ExternalDataBundle{Status: status}
}

type harness struct {
	engine  *Engine
	base    *fakeBase
	fast    *memFast
	durable *memDurable
}

func newHarness(t *testing.T, report func() *token.BaseSecurityReport, bundle func() token.ExternalDataBundle) *harness {
	t.Helper()
	h := &harness{
		base:    &fakeBase{report: report},
		fast:    &memFast{},
		durable: &memDurable{},
	}
	e, err := New(Deps{
		Base:     h.base,
		External: &fakeExternal{bundle: bundle},
		Fast:     h.fast,
		Durable:  h.durable,
		Clock:    clock,
	}, Config{})
	require.NoError(t, err)
	h.engine = e
	return h
}

func TestAnalyzeToken_HealthyScenario(t *testing.T) {
	h := newHarness(t, healthyReport, healthyBundle)

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.NoError(t, err)

	assert.Greater(t, s.SuperScore, 0)
	assert.GreaterOrEqual(t, s.SuperScore, 70)
	assert.Contains(t, []token.GlobalRiskLevel{token.UltraSafe, token.Safe}, s.GlobalRiskLevel)
	assert.Empty(t, s.AllRedFlags)
	assert.NotEmpty(t, s.GreenFlags)
	assert.NotEmpty(t, s.Recommendation)
	assert.Equal(t, "Healthy Token", s.TokenName)
	assert.Equal(t, "HLT", s.TokenSymbol)
	assert.False(t, s.Cached)
	assert.False(t, s.LowConfidence)
	assert.Equal(t, 85, s.ScoreBreakdown.BaseSecurityScore)
	assert.Len(t, s.ScoreBreakdown.Named(), 17)
	assert.Equal(t, now, s.AnalyzedAt)
}

func TestAnalyzeToken_CriticalScenario(t *testing.T) {
	h := newHarness(t, criticalReport, healthyBundle)

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, s.AllRedFlags)
	assert.True(t, token.HasSeverity(s.AllRedFlags, token.SeverityCritical))
	assert.NotEqual(t, token.UltraSafe, s.GlobalRiskLevel)
	assert.NotEqual(t, token.Safe, s.GlobalRiskLevel)
}

func TestAnalyzeToken_RuggedIsScam(t *testing.T) {
	h := newHarness(t, func() *token.BaseSecurityReport {
		r := healthyReport()
		r.Rugged = true
		return r
	}, healthyBundle)

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.NoError(t, err)
	assert.Equal(t, token.Scam, s.GlobalRiskLevel)
}

func TestAnalyzeToken_GracefulDegradation(t *testing.T) {
	h := newHarness(t, degradedReport, failedBundle)

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.NoError(t, err)

	assert.True(t, s.LowConfidence)
	assert.Empty(t, s.AllRedFlags)
	assert.NotEmpty(t, s.InfoFlags)
	assert.True(t, token.HasCategory(s.InfoFlags, token.CategoryProvider))
	assert.GreaterOrEqual(t, s.SuperScore, 0)
	assert.LessOrEqual(t, s.SuperScore, 100)
	assert.Equal(t, 50, s.SuperScore)
	for name, v := range s.ScoreBreakdown.Named() {
		assert.Equal(t, 50, v, name)
	}
	assert.Equal(t, token.StatusError, s.ProviderStatus[token.ProviderJupiter])
}

func TestAnalyzeToken_NamesFallBackToChainMetadata(t *testing.T) {
	h := newHarness(t, func() *token.BaseSecurityReport {
		r := healthyReport()
		r.Metadata.Name = "Wrapped SOL"
		r.Metadata.Symbol = "SOL"
		return r
	}, failedBundle)

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Wrapped SOL", s.TokenName)
	assert.Equal(t, "SOL", s.TokenSymbol)
}

func TestNamesPreference(t *testing.T) {
	base := &token.BaseSecurityReport{Metadata: token.Metadata{Name: "Chain Name", Symbol: "CHN"}}

	name, symbol := names(healthyBundle(), base)
	assert.Equal(t, "Healthy Token", name)
	assert.Equal(t, "HLT", symbol)

	name, symbol = names(token.ExternalDataBundle{Solscan: &token.SolscanData{Symbol: strp("SCN")}}, base)
	assert.Equal(t, "Chain Name", name)
	assert.Equal(t, "SCN", symbol)

	name, symbol = names(token.ExternalDataBundle{}, nil)
	assert.Empty(t, name)
	assert.Empty(t, symbol)
}

func TestAnalyzeToken_CacheRoundTrip(t *testing.T) {
	h := newHarness(t, healthyReport, healthyBundle)
	ctx := context.Background()

	first, err := h.engine.AnalyzeToken(ctx, mint, Options{})
	require.NoError(t, err)
	second, err := h.engine.AnalyzeToken(ctx, mint, Options{})
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.False(t, second.Fallback)
	assert.Equal(t, int32(1), h.base.calls)

	uncached := second.WithCacheState(false, false)
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(uncached)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestAnalyzeToken_ForceRefreshBypassesCache(t *testing.T) {
	h := newHarness(t, healthyReport, healthyBundle)
	ctx := context.Background()

	_, err := h.engine.AnalyzeToken(ctx, mint, Options{})
	require.NoError(t, err)
	s, err := h.engine.AnalyzeToken(ctx, mint, Options{ForceRefresh: true})
	require.NoError(t, err)

	assert.False(t, s.Cached)
	assert.Equal(t, int32(2), h.base.calls)
}

func TestAnalyzeToken_FreshDurableEntryBackfillsFastTier(t *testing.T) {
	h := newHarness(t, healthyReport, healthyBundle)
	stored := token.SuperTokenScore{TokenAddress: mint, SuperScore: 77, GlobalRiskLevel: token.Safe, AnalyzedAt: now.Add(-time.Hour)}
	require.NoError(t, h.durable.Put(context.Background(), token.CacheEntry{TokenAddress: mint, AnalyzedAt: stored.AnalyzedAt, Payload: stored}))

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.NoError(t, err)

	assert.True(t, s.Cached)
	assert.Equal(t, 77, s.SuperScore)
	assert.Zero(t, h.base.calls)
	_, ok, _ := h.fast.Get(context.Background(), token.Address(mint).CacheKey())
	assert.True(t, ok)
}

func TestAnalyzeToken_StaleDurableEntryTriggersRecompute(t *testing.T) {
	h := newHarness(t, healthyReport, healthyBundle)
	old := token.SuperTokenScore{TokenAddress: mint, SuperScore: 12, AnalyzedAt: now.Add(-3 * time.Hour)}
	require.NoError(t, h.durable.Put(context.Background(), token.CacheEntry{TokenAddress: mint, AnalyzedAt: old.AnalyzedAt, Payload: old}))

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.NoError(t, err)

	assert.False(t, s.Cached)
	assert.Equal(t, int32(1), h.base.calls)
	assert.NotEqual(t, 12, s.SuperScore)
	assert.Equal(t, now, h.durable.entries[mint].AnalyzedAt)
}

func TestAnalyzeToken_PanicFallsBackToStaleEntry(t *testing.T) {
	h := newHarness(t, func() *token.BaseSecurityReport { panic("rpc decoder exploded") }, healthyBundle)
	old := token.SuperTokenScore{TokenAddress: mint, SuperScore: 64, GlobalRiskLevel: token.Moderate, AnalyzedAt: now.Add(-3 * time.Hour)}
	require.NoError(t, h.durable.Put(context.Background(), token.CacheEntry{TokenAddress: mint, AnalyzedAt: old.AnalyzedAt, Payload: old}))

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.NoError(t, err)

	assert.True(t, s.Cached)
	assert.True(t, s.Fallback)
	assert.Equal(t, 64, s.SuperScore)
}

func TestAnalyzeToken_PanicWithoutEntryIsPipelineError(t *testing.T) {
	h := newHarness(t, func() *token.BaseSecurityReport { panic("boom") }, healthyBundle)

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.Error(t, err)
	assert.Nil(t, s)

	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.Panic)
	assert.Equal(t, PhaseBaseSecurity, pe.Phase)
	assert.True(t, errors.Is(err, ErrPipeline))
}

func TestAnalyzeToken_CanceledContext(t *testing.T) {
	h := newHarness(t, healthyReport, healthyBundle)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.AnalyzeToken(ctx, mint, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, ErrPipeline))
}

func TestAnalyzeToken_InvalidAddress(t *testing.T) {
	h := newHarness(t, healthyReport, healthyBundle)

	_, err := h.engine.AnalyzeToken(context.Background(), "not-a-mint", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, token.ErrInvalidAddress))
	assert.Zero(t, h.base.calls)
}

func TestAnalyzeToken_CacheFailuresFailOpen(t *testing.T) {
	h := newHarness(t, healthyReport, healthyBundle)
	h.fast.getErr = errors.New("redis: connection refused")
	h.fast.setErr = errors.New("redis: connection refused")
	h.durable.getErr = errors.New("pq: too many connections")

	s, err := h.engine.AnalyzeToken(context.Background(), mint, Options{})
	require.NoError(t, err)
	assert.False(t, s.Cached)
	assert.Equal(t, int32(1), h.base.calls)
}

func TestAnalyzeToken_PhasesInOrder(t *testing.T) {
	h := newHarness(t, healthyReport, healthyBundle)
	var phases []Phase
	obs := ObserverFunc(func(p Phase) { phases = append(phases, p) })

	_, err := h.engine.AnalyzeToken(context.Background(), mint, Options{Observer: obs})
	require.NoError(t, err)

	assert.Equal(t, []Phase{
		PhaseCacheLookup, PhaseBaseSecurity, PhaseExternalData, PhaseDerivedAnalysis,
		PhaseScoring, PhaseCacheWrite, PhaseComplete,
	}, phases)

	phases = nil
	_, err = h.engine.AnalyzeToken(context.Background(), mint, Options{Observer: obs})
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseCacheLookup, PhaseComplete}, phases)
}

func TestChannelObserverDropsWhenFull(t *testing.T) {
	o := NewChannelObserver(2)
	o.OnPhase(PhaseCacheLookup)
	o.OnPhase(PhaseBaseSecurity)
	o.OnPhase(PhaseExternalData)
	o.Close()

	var got []Phase
	for p := range o.Phases() {
		got = append(got, p)
	}
	assert.Equal(t, []Phase{PhaseCacheLookup, PhaseBaseSecurity}, got)
	assert.Equal(t, int64(1), o.Dropped())
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, Config{})
	assert.Error(t, err)
}
