package token

import "time"

// AuthorityState is the mint account as read from the chain.
type AuthorityState struct {
	MintAuthority   *string `json:"mint_authority,omitempty"`
	FreezeAuthority *string `json:"freeze_authority,omitempty"`
	Supply          uint64  `json:"supply"`
	Decimals        uint8   `json:"decimals"`

	// Name and Symbol come from the Metaplex metadata account and are empty
	// when the mint has none.
	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// Holder is one token account among the largest holders.
type Holder struct {
	Address   string     `json:"address"`
	Owner     string     `json:"owner,omitempty"`
	Amount    float64    `json:"amount"`
	Percent   float64    `json:"percent"`
	FirstSeen *time.Time `json:"first_seen,omitempty"`
	FirstSlot *uint64    `json:"first_slot,omitempty"`
}

// HolderDistribution is the top of the holder table. TotalHolders is unknown
// when the RPC node cannot enumerate every token account.
type HolderDistribution struct {
	TotalSupply  float64  `json:"total_supply"`
	TotalHolders *int     `json:"total_holders,omitempty"`
	Holders      []Holder `json:"holders"`
}

// LiquidityPool is an AMM pool quoting the token.
type LiquidityPool struct {
	Address       string  `json:"address"`
	Program       string  `json:"program"`
	LPMint        string  `json:"lp_mint"`
	LPSupply      float64 `json:"lp_supply"`
	BurnedPercent float64 `json:"burned_percent"`
	LockedPercent float64 `json:"locked_percent"`
}

// TradeSide is the direction of a transaction relative to the token.
type TradeSide string

const (
	SideBuy     TradeSide = "buy"
	SideSell    TradeSide = "sell"
	SideUnknown TradeSide = "unknown"
)

// Transaction is a summarized on-chain transaction touching the mint.
type Transaction struct {
	Signature string     `json:"signature"`
	Slot      uint64     `json:"slot"`
	BlockTime *time.Time `json:"block_time,omitempty"`
	Signer    string     `json:"signer"`
	Side      TradeSide  `json:"side"`
	Amount    float64    `json:"amount"`
	Failed    bool       `json:"failed,omitempty"`
}

// TransactionSample holds the earliest transactions after token creation and the
// most recent ones, both in slot order.
type TransactionSample struct {
	CreationSlot *uint64       `json:"creation_slot,omitempty"`
	Creator      string        `json:"creator,omitempty"`
	Earliest     []Transaction `json:"earliest"`
	Recent       []Transaction `json:"recent"`
}
