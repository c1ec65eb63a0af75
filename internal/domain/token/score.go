package token

import "time"

// GlobalRiskLevel is the final classification exposed to callers.
type GlobalRiskLevel string

const (
	UltraSafe GlobalRiskLevel = "ULTRA_SAFE"
	Safe      GlobalRiskLevel = "SAFE"
	Moderate  GlobalRiskLevel = "MODERATE"
	Risky     GlobalRiskLevel = "RISKY"
	VeryRisky GlobalRiskLevel = "VERY_RISKY"
	Scam      GlobalRiskLevel = "SCAM"
)

// ScoreBreakdown has one field per named sub-score. Every field is always set.
type ScoreBreakdown struct {
	BaseSecurityScore      int `json:"baseSecurityScore"`
	NewWalletScore         int `json:"newWalletScore"`
	InsiderScore           int `json:"insiderScore"`
	VolumeScore            int `json:"volumeScore"`
	SocialScore            int `json:"socialScore"`
	BotDetectionScore      int `json:"botDetectionScore"`
	SmartMoneyScore        int `json:"smartMoneyScore"`
	TeamScore              int `json:"teamScore"`
	PricePatternScore      int `json:"pricePatternScore"`
	HistoricalHoldersScore int `json:"historicalHoldersScore"`
	LiquidityDepthScore    int `json:"liquidityDepthScore"`
	CrossChainScore        int `json:"crossChainScore"`
	CompetitorScore        int `json:"competitorScore"`
	RugCheckScore          int `json:"rugCheckScore"`
	DexScreenerScore       int `json:"dexScreenerScore"`
	BirdeyeScore           int `json:"birdeyeScore"`
	JupiterScore           int `json:"jupiterScore"`
}

// Named returns the breakdown keyed by its JSON names.
func (b ScoreBreakdown) Named() map[string]int {
	return map[string]int{
		"baseSecurityScore":      b.BaseSecurityScore,
		"newWalletScore":         b.NewWalletScore,
		"insiderScore":           b.InsiderScore,
		"volumeScore":            b.VolumeScore,
		"socialScore":            b.SocialScore,
		"botDetectionScore":      b.BotDetectionScore,
		"smartMoneyScore":        b.SmartMoneyScore,
		"teamScore":              b.TeamScore,
		"pricePatternScore":      b.PricePatternScore,
		"historicalHoldersScore": b.HistoricalHoldersScore,
		"liquidityDepthScore":    b.LiquidityDepthScore,
		"crossChainScore":        b.CrossChainScore,
		"competitorScore":        b.CompetitorScore,
		"rugCheckScore":          b.RugCheckScore,
		"dexScreenerScore":       b.DexScreenerScore,
		"birdeyeScore":           b.BirdeyeScore,
		"jupiterScore":           b.JupiterScore,
	}
}

// NewWalletAnalysis measures exposure to freshly created wallets.
type NewWalletAnalysis struct {
	NewWalletPercent float64 `json:"new_wallet_percent"`
	NewWallets       int     `json:"new_wallets"`
	SampledHolders   int     `json:"sampled_holders"`
	LowConfidence    bool    `json:"low_confidence,omitempty"`
}

// InsiderAnalysis measures holdings of wallets that bought right after launch.
type InsiderAnalysis struct {
	InsiderWallets int     `json:"insider_wallets"`
	InsiderPercent float64 `json:"insider_percent"`
	NetSelling     bool    `json:"net_selling"`
	LowConfidence  bool    `json:"low_confidence,omitempty"`
}

// VolumeAnalysis compares reported volume to an estimate of real volume.
type VolumeAnalysis struct {
	ReportedVolume24h  float64 `json:"reported_volume_24h"`
	RealVolumeEstimate float64 `json:"real_volume_estimate"`
	FakeVolumePercent  float64 `json:"fake_volume_percent"`
	Trades24h          int     `json:"trades_24h"`
	UniqueWallets24h   int     `json:"unique_wallets_24h"`
	LowConfidence      bool    `json:"low_confidence,omitempty"`
}

// BotAnalysis classifies sampled transactions into bot categories.
type BotAnalysis struct {
	BotPercent    float64 `json:"bot_percent"`
	MEVTxns       int     `json:"mev_txns"`
	BundleTxns    int     `json:"bundle_txns"`
	WashTxns      int     `json:"wash_txns"`
	SampledTxns   int     `json:"sampled_txns"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// SmartMoneySignal is the direction of tagged profitable wallets.
type SmartMoneySignal string

const (
	SignalStrongBuy  SmartMoneySignal = "STRONG_BUY"
	SignalBuy        SmartMoneySignal = "BUY"
	SignalNeutral    SmartMoneySignal = "NEUTRAL"
	SignalSell       SmartMoneySignal = "SELL"
	SignalStrongSell SmartMoneySignal = "STRONG_SELL"
)

// SmartMoneyAnalysis is the net position change of tagged wallets.
type SmartMoneyAnalysis struct {
	Signal        SmartMoneySignal `json:"signal"`
	SmartWallets  int              `json:"smart_wallets"`
	Buys          int              `json:"buys"`
	Sells         int              `json:"sells"`
	NetFlow       float64          `json:"net_flow"`
	LowConfidence bool             `json:"low_confidence,omitempty"`
}

// TeamAnalysis covers vesting and team-wallet selling.
type TeamAnalysis struct {
	TeamWallet    string     `json:"team_wallet,omitempty"`
	HasVesting    bool       `json:"has_vesting"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	TeamSelling   bool       `json:"team_selling"`
	TeamSells     int        `json:"team_sells"`
	LowConfidence bool       `json:"low_confidence,omitempty"`
}

// PricePattern classifies the recent price/volume trajectory.
type PricePattern string

const (
	PatternOrganicGrowth PricePattern = "ORGANIC_GROWTH"
	PatternAccumulation  PricePattern = "ACCUMULATION"
	PatternSideways      PricePattern = "SIDEWAYS"
	PatternDistribution  PricePattern = "DISTRIBUTION"
	PatternPumpAndDump   PricePattern = "PUMP_AND_DUMP"
)

// PricePatternAnalysis is the classified trajectory.
type PricePatternAnalysis struct {
	Pattern       PricePattern `json:"pattern"`
	Change1h      float64      `json:"change_1h"`
	Change6h      float64      `json:"change_6h"`
	Change24h     float64      `json:"change_24h"`
	BuySellRatio  float64      `json:"buy_sell_ratio"`
	LowConfidence bool         `json:"low_confidence,omitempty"`
}

// DepthHealth tiers liquidity depth.
type DepthHealth string

const (
	DepthExcellent DepthHealth = "EXCELLENT"
	DepthGood      DepthHealth = "GOOD"
	DepthFair      DepthHealth = "FAIR"
	DepthPoor      DepthHealth = "POOR"
	DepthCritical  DepthHealth = "CRITICAL"
)

// SlippagePoint is the price impact for a trade size in SOL.
type SlippagePoint struct {
	SizeSOL     float64 `json:"size_sol"`
	SlippagePct float64 `json:"slippage_pct"`
}

// LiquidityDepthAnalysis is the slippage simulation result.
type LiquidityDepthAnalysis struct {
	Health        DepthHealth     `json:"health"`
	Slippage      []SlippagePoint `json:"slippage"`
	Source        string          `json:"source"`
	LowConfidence bool            `json:"low_confidence,omitempty"`
}

// ConsistencyAnalysis compares providers against each other.
type ConsistencyAnalysis struct {
	HolderDiscrepancyPct    float64 `json:"holder_discrepancy_pct"`
	MarketCapDiscrepancyPct float64 `json:"market_cap_discrepancy_pct"`
	SourcesCompared         int     `json:"sources_compared"`
	Consistent              bool    `json:"consistent"`
	LowConfidence           bool    `json:"low_confidence,omitempty"`
}

// Analyses groups the nine derived category records.
type Analyses struct {
	NewWallets     NewWalletAnalysis      `json:"new_wallet_analysis"`
	Insiders       InsiderAnalysis        `json:"insider_analysis"`
	Volume         VolumeAnalysis         `json:"volume_analysis"`
	Bots           BotAnalysis            `json:"bot_analysis"`
	SmartMoney     SmartMoneyAnalysis     `json:"smart_money_analysis"`
	Team           TeamAnalysis           `json:"team_analysis"`
	PricePattern   PricePatternAnalysis   `json:"price_pattern_analysis"`
	LiquidityDepth LiquidityDepthAnalysis `json:"liquidity_depth_analysis"`
	Consistency    ConsistencyAnalysis    `json:"consistency_analysis"`
}

// SuperTokenScore is the result of one analysis. It is built once and never
// mutated; a cached copy differs only in Cached and Fallback.
type SuperTokenScore struct {
	TokenAddress       Address                   `json:"tokenAddress"`
	TokenSymbol        string                    `json:"tokenSymbol"`
	TokenName          string                    `json:"tokenName"`
	SuperScore         int                       `json:"superScore"`
	GlobalRiskLevel    GlobalRiskLevel           `json:"globalRiskLevel"`
	Recommendation     string                    `json:"recommendation"`
	ScoreBreakdown     ScoreBreakdown            `json:"scoreBreakdown"`
	Analyses           Analyses                  `json:"analyses"`
	AllRedFlags        []Flag                    `json:"allRedFlags"`
	GreenFlags         []Flag                    `json:"greenFlags"`
	InfoFlags          []Flag                    `json:"infoFlags"`
	BaseSecurityReport *BaseSecurityReport       `json:"baseSecurityReport"`
	RugCheckData       *RugCheckData             `json:"rugCheckData,omitempty"`
	DexScreenerData    *DexScreenerData          `json:"dexScreenerData,omitempty"`
	BirdeyeData        *BirdeyeData              `json:"birdeyeData,omitempty"`
	SolscanData        *SolscanData              `json:"solscanData,omitempty"`
	JupiterData        *JupiterData              `json:"jupiterData,omitempty"`
	ProviderStatus     map[string]ProviderStatus `json:"providerStatus,omitempty"`
	LowConfidence      bool                      `json:"lowConfidence"`
	AnalyzedAt         time.Time                 `json:"analyzedAt"`
	AnalysisTimeMs     int64                     `json:"analysisTimeMs"`
	Cached             bool                      `json:"cached"`
	Fallback           bool                      `json:"fallback,omitempty"`
}

// WithCacheState returns a copy marked with the given cache annotations.
func (s SuperTokenScore) WithCacheState(cached, fallback bool) *SuperTokenScore {
	s.Cached = cached
	s.Fallback = fallback
	return &s
}

// CacheEntry is a durable cache record.
type CacheEntry struct {
	TokenAddress Address         `json:"tokenAddress"`
	AnalyzedAt   time.Time       `json:"analyzedAt"`
	Payload      SuperTokenScore `json:"payload"`
}

// IsFresh reports whether the entry is younger than ttl at now.
func (e CacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.AnalyzedAt) < ttl
}
