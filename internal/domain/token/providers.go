package token

import "time"

// Provider names, used as breaker names, metric labels and status keys.
const (
	ProviderRugCheck    = "rugcheck"
	ProviderDexScreener = "dexscreener"
	ProviderBirdeye     = "birdeye"
	ProviderSolscan     = "solscan"
	ProviderJupiter     = "jupiter"
)

// ProviderNames lists the five external providers in a fixed order.
var ProviderNames = []string{
	ProviderRugCheck,
	ProviderDexScreener,
	ProviderBirdeye,
	ProviderSolscan,
	ProviderJupiter,
}

// RugCheckRisk is one finding from the rug-risk scorer.
type RugCheckRisk struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Level       string `json:"level"`
	Score       int    `json:"score"`
}

// RugCheckLocker is a token or LP lock reported by RugCheck.
type RugCheckLocker struct {
	Type      string     `json:"type"`
	UnlockAt  *time.Time `json:"unlock_at,omitempty"`
	USDLocked float64    `json:"usd_locked"`
}

// RugCheckData is the rug-risk scorer report. ScoreNormalised is a 0-100 risk
// where higher is riskier.
type RugCheckData struct {
	Score            *int             `json:"score,omitempty"`
	ScoreNormalised  *int             `json:"score_normalised,omitempty"`
	Rugged           *bool            `json:"rugged,omitempty"`
	Risks            []RugCheckRisk   `json:"risks,omitempty"`
	Lockers          []RugCheckLocker `json:"lockers,omitempty"`
	LPLockedPercent  *float64         `json:"lp_locked_percent,omitempty"`
	TotalHolders     *int             `json:"total_holders,omitempty"`
	InsidersDetected *int             `json:"insiders_detected,omitempty"`
	Creator          *string          `json:"creator,omitempty"`
}

// Window holds a metric across DexScreener's rolling windows.
type Window struct {
	M5  *float64 `json:"m5,omitempty"`
	H1  *float64 `json:"h1,omitempty"`
	H6  *float64 `json:"h6,omitempty"`
	H24 *float64 `json:"h24,omitempty"`
}

// TxnCounts is a buy/sell transaction count.
type TxnCounts struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// Total is buys plus sells.
func (t TxnCounts) Total() int {
	return t.Buys + t.Sells
}

// DexScreenerData describes the most liquid pair of the token.
type DexScreenerData struct {
	PairAddress   *string    `json:"pair_address,omitempty"`
	DexID         *string    `json:"dex_id,omitempty"`
	Name          *string    `json:"name,omitempty"`
	Symbol        *string    `json:"symbol,omitempty"`
	QuoteSymbol   *string    `json:"quote_symbol,omitempty"`
	PriceUSD      *float64   `json:"price_usd,omitempty"`
	PriceNative   *float64   `json:"price_native,omitempty"`
	LiquidityUSD  *float64   `json:"liquidity_usd,omitempty"`
	MarketCap     *float64   `json:"market_cap,omitempty"`
	FDV           *float64   `json:"fdv,omitempty"`
	Volume        Window     `json:"volume"`
	PriceChange   Window     `json:"price_change"`
	TxnsH1        *TxnCounts `json:"txns_h1,omitempty"`
	TxnsH24       *TxnCounts `json:"txns_h24,omitempty"`
	PairCreatedAt *time.Time `json:"pair_created_at,omitempty"`
	PairCount     int        `json:"pair_count"`
	Websites      []string   `json:"websites,omitempty"`
	Socials       []string   `json:"socials,omitempty"`
}

// BirdeyeData is the market-analytics token overview.
type BirdeyeData struct {
	Price            *float64 `json:"price,omitempty"`
	LiquidityUSD     *float64 `json:"liquidity_usd,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	Volume24hUSD     *float64 `json:"volume_24h_usd,omitempty"`
	Holders          *int     `json:"holders,omitempty"`
	UniqueWallets24h *int     `json:"unique_wallets_24h,omitempty"`
	Trades24h        *int     `json:"trades_24h,omitempty"`
	Buys24h          *int     `json:"buys_24h,omitempty"`
	Sells24h         *int     `json:"sells_24h,omitempty"`
	PriceChange24h   *float64 `json:"price_change_24h,omitempty"`
}

// SolscanData is the chain-explorer token metadata.
type SolscanData struct {
	Name      *string    `json:"name,omitempty"`
	Symbol    *string    `json:"symbol,omitempty"`
	Holders   *int       `json:"holders,omitempty"`
	Supply    *float64   `json:"supply,omitempty"`
	Decimals  *int       `json:"decimals,omitempty"`
	MarketCap *float64   `json:"market_cap,omitempty"`
	Price     *float64   `json:"price,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Creator   *string    `json:"creator,omitempty"`
}

// JupiterQuote is a SOL→token quote at one trade size.
type JupiterQuote struct {
	InputSOL       float64 `json:"input_sol"`
	OutAmount      float64 `json:"out_amount"`
	PriceImpactPct float64 `json:"price_impact_pct"`
	RouteHops      int     `json:"route_hops"`
}

// JupiterData is the swap-routing result across trade sizes.
type JupiterData struct {
	Routable *bool         `json:"routable,omitempty"`
	Quotes   []JupiterQuote `json:"quotes,omitempty"`
}

// ProviderStatus is how a provider call settled.
type ProviderStatus string

const (
	StatusOK          ProviderStatus = "ok"
	StatusError       ProviderStatus = "error"
	StatusCircuitOpen ProviderStatus = "circuit_open"
	StatusTimeout     ProviderStatus = "timeout"
)

// ExternalDataBundle carries whatever the five providers returned. A nil datum
// means the provider was unavailable.
type ExternalDataBundle struct {
	RugCheck    *RugCheckData             `json:"rugcheck,omitempty"`
	DexScreener *DexScreenerData          `json:"dexscreener,omitempty"`
	Birdeye     *BirdeyeData              `json:"birdeye,omitempty"`
	Solscan     *SolscanData              `json:"solscan,omitempty"`
	Jupiter     *JupiterData              `json:"jupiter,omitempty"`
	Status      map[string]ProviderStatus `json:"status,omitempty"`
}

// Available counts the providers that returned data.
func (b ExternalDataBundle) Available() int {
	n := 0
	if b.RugCheck != nil {
		n++
	}
	if b.DexScreener != nil {
		n++
	}
	if b.Birdeye != nil {
		n++
	}
	if b.Solscan != nil {
		n++
	}
	if b.Jupiter != nil {
		n++
	}
	return n
}
