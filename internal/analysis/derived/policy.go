package derived

import "fmt"

// Policy holds every threshold used by the derived analyzers.
type Policy struct {
	NewWalletAgeDays    int     `yaml:"new_wallet_age_days"`
	NewWalletPenaltyPct float64 `yaml:"new_wallet_penalty_pct"`

	InsiderSlots   uint64  `yaml:"insider_slots"`
	InsiderHoldPct float64 `yaml:"insider_hold_pct"`

	FakeVolumePct   float64 `yaml:"fake_volume_pct"`
	TradesPerWallet float64 `yaml:"trades_per_wallet"`

	BotPct float64 `yaml:"bot_pct"`

	CrossSourceTolerancePct float64 `yaml:"cross_source_tolerance_pct"`

	// SlippageTiers are the upper bounds, in percent, of the EXCELLENT, GOOD,
	// FAIR and POOR depth tiers.
	SlippageTiers      []float64 `yaml:"slippage_tiers"`
	SimulationSizesSOL []float64 `yaml:"simulation_sizes_sol"`
	ReferenceSizeSOL   float64   `yaml:"reference_size_sol"`
	DefaultSOLPriceUSD float64   `yaml:"default_sol_price_usd"`

	// SmartWallets are wallets tagged as consistently profitable.
	SmartWallets []string `yaml:"smart_wallets"`
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		NewWalletAgeDays:        10,
		NewWalletPenaltyPct:     30,
		InsiderSlots:            10,
		InsiderHoldPct:          10,
		FakeVolumePct:           30,
		TradesPerWallet:         3,
		BotPct:                  40,
		CrossSourceTolerancePct: 25,
		SlippageTiers:           []float64{1, 3, 10, 25},
		SimulationSizesSOL:      []float64{1, 10, 100},
		ReferenceSizeSOL:        10,
		DefaultSOLPriceUSD:      150,
	}
}

// WithDefaults fills unset thresholds.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.NewWalletAgeDays <= 0 {
		p.NewWalletAgeDays = d.NewWalletAgeDays
	}
	if p.NewWalletPenaltyPct <= 0 {
		p.NewWalletPenaltyPct = d.NewWalletPenaltyPct
	}
	if p.InsiderSlots == 0 {
		p.InsiderSlots = d.InsiderSlots
	}
	if p.InsiderHoldPct <= 0 {
		p.InsiderHoldPct = d.InsiderHoldPct
	}
	if p.FakeVolumePct <= 0 {
		p.FakeVolumePct = d.FakeVolumePct
	}
	if p.TradesPerWallet <= 0 {
		p.TradesPerWallet = d.TradesPerWallet
	}
	if p.BotPct <= 0 {
		p.BotPct = d.BotPct
	}
	if p.CrossSourceTolerancePct <= 0 {
		p.CrossSourceTolerancePct = d.CrossSourceTolerancePct
	}
	if len(p.SlippageTiers) == 0 {
		p.SlippageTiers = d.SlippageTiers
	}
	if len(p.SimulationSizesSOL) == 0 {
		p.SimulationSizesSOL = d.SimulationSizesSOL
	}
	if p.ReferenceSizeSOL <= 0 {
		p.ReferenceSizeSOL = d.ReferenceSizeSOL
	}
	if p.DefaultSOLPriceUSD <= 0 {
		p.DefaultSOLPriceUSD = d.DefaultSOLPriceUSD
	}
	return p
}

// Validate rejects thresholds the analyzers cannot work with.
func (p Policy) Validate() error {
	if len(p.SlippageTiers) != 0 && len(p.SlippageTiers) != 4 {
		return fmt.Errorf("policy: slippage_tiers needs 4 bounds, got %d", len(p.SlippageTiers))
	}
	for i := 1; i < len(p.SlippageTiers); i++ {
		if p.SlippageTiers[i] <= p.SlippageTiers[i-1] {
			return fmt.Errorf("policy: slippage_tiers must be increasing")
		}
	}
	for _, s := range p.SimulationSizesSOL {
		if s <= 0 {
			return fmt.Errorf("policy: simulation size %v must be positive", s)
		}
	}
	if p.NewWalletPenaltyPct > 100 || p.FakeVolumePct > 100 || p.BotPct > 100 {
		return fmt.Errorf("policy: percentage thresholds must be at most 100")
	}
	return nil
}
