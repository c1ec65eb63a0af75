package token

import "time"

// Metadata describes the token itself.
type Metadata struct {
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Supply   float64 `json:"supply"`
	Decimals int     `json:"decimals"`
}

// AuthorityAnalysis is the mint/freeze authority sub-check.
type AuthorityAnalysis struct {
	HasMintAuthority   bool      `json:"has_mint_authority"`
	HasFreezeAuthority bool      `json:"has_freeze_authority"`
	IsRevoked          bool      `json:"is_revoked"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Score              int       `json:"score"`
	Degraded           bool      `json:"degraded,omitempty"`
}

// HolderAnalysis is the holder concentration sub-check. Concentration is a Gini
// coefficient over the observed top holders.
type HolderAnalysis struct {
	TotalHolders        *int      `json:"total_holders,omitempty"`
	Top10HoldersPercent float64   `json:"top10_holders_percent"`
	Concentration       float64   `json:"concentration"`
	RiskLevel           RiskLevel `json:"risk_level"`
	Score               int       `json:"score"`
	TopHolders          []Holder  `json:"top_holders,omitempty"`
	Degraded            bool      `json:"degraded,omitempty"`
}

// LiquidityAnalysis is the LP lock/burn sub-check.
type LiquidityAnalysis struct {
	LPBurned        bool      `json:"lp_burned"`
	LPLocked        bool      `json:"lp_locked"`
	LPLockedPercent float64   `json:"lp_locked_percent"`
	PoolCount       int       `json:"pool_count"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Score           int       `json:"score"`
	Degraded        bool      `json:"degraded,omitempty"`
}

// TradingPatternAnalysis is the heuristic scan over early and recent transactions.
type TradingPatternAnalysis struct {
	Bundled          bool          `json:"bundled"`
	Sniped           bool          `json:"sniped"`
	WashTrading      bool          `json:"wash_trading"`
	BundledWallets   int           `json:"bundled_wallets"`
	SniperWallets    int           `json:"sniper_wallets"`
	WashTradePercent float64       `json:"wash_trade_percent"`
	CreationSlot     *uint64       `json:"creation_slot,omitempty"`
	Creator          string        `json:"creator,omitempty"`
	Earliest         []Transaction `json:"earliest,omitempty"`
	Recent           []Transaction `json:"recent,omitempty"`
	RiskLevel        RiskLevel     `json:"risk_level"`
	Score            int           `json:"score"`
	Degraded         bool          `json:"degraded,omitempty"`
}

// BaseSecurityReport is produced once per analysis by the base analyzer and is
// read-only for every later stage.
type BaseSecurityReport struct {
	TokenAddress    Address                `json:"token_address"`
	SecurityScore   int                    `json:"security_score"`
	RiskLevel       RiskLevel              `json:"risk_level"`
	Metadata        Metadata               `json:"metadata"`
	Authorities     AuthorityAnalysis      `json:"authorities"`
	Holders         HolderAnalysis         `json:"holders"`
	Liquidity       LiquidityAnalysis      `json:"liquidity_analysis"`
	TradingPatterns TradingPatternAnalysis `json:"trading_patterns"`
	RedFlags        []Flag                 `json:"red_flags"`
	GreenFlags      []Flag                 `json:"green_flags"`
	InfoFlags       []Flag                 `json:"info_flags"`
	Degraded        []string               `json:"degraded,omitempty"`
	LowConfidence   bool                   `json:"low_confidence"`
	Rugged          bool                   `json:"rugged"`
	AnalyzedAt      time.Time              `json:"analyzed_at"`
}
