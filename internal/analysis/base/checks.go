package base

import (
	"fmt"
	"math"
	"sort"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

func (a *Analyzer) authorities(f fetched, red, green *token.FlagSet) token.AuthorityAnalysis {
	if f.authErr != nil || f.authorities == nil {
		return token.AuthorityAnalysis{RiskLevel: token.RiskMedium, Score: neutralScore, Degraded: true}
	}

	out := token.AuthorityAnalysis{
		HasMintAuthority:   f.authorities.MintAuthority != nil,
		HasFreezeAuthority: f.authorities.FreezeAuthority != nil,
	}
	out.IsRevoked = !out.HasMintAuthority && !out.HasFreezeAuthority

	switch {
	case out.HasMintAuthority && out.HasFreezeAuthority:
		out.RiskLevel, out.Score = token.RiskCritical, 0
	case out.HasMintAuthority:
		out.RiskLevel, out.Score = token.RiskHigh, 25
	case out.HasFreezeAuthority:
		out.RiskLevel, out.Score = token.RiskMedium, 55
	default:
		out.RiskLevel, out.Score = token.RiskLow, 100
	}

	if out.HasMintAuthority {
		red.Add(token.Red(token.CategoryAuthority, token.SeverityCritical,
			"Mint authority is active: supply can be inflated").WithImpact(-35))
	}
	if out.HasFreezeAuthority {
		red.Add(token.Red(token.CategoryAuthority, token.SeverityHigh,
			"Freeze authority is active: holder accounts can be frozen").WithImpact(-20))
	}
	if out.IsRevoked {
		green.Add(token.Green(token.CategoryAuthority, 15, "Mint and freeze authorities are revoked"))
	}
	return out
}

func (a *Analyzer) holders(f fetched, red, green *token.FlagSet) token.HolderAnalysis {
	if f.holdersErr != nil || f.holders == nil {
		return token.HolderAnalysis{RiskLevel: token.RiskMedium, Score: neutralScore, Degraded: true}
	}

	var counted []token.Holder
	for _, h := range f.holders.Holders {
		if _, skip := a.excluded[h.Owner]; skip {
			continue
		}
		counted = append(counted, h)
	}
	sort.SliceStable(counted, func(i, j int) bool { return counted[i].Amount > counted[j].Amount })

	var top10 float64
	for i, h := range counted {
		if i >= 10 {
			break
		}
		top10 += h.Percent
	}
	top10 = math.Min(top10, 100)

	out := token.HolderAnalysis{
		TotalHolders:        f.holders.TotalHolders,
		Top10HoldersPercent: round2(top10),
		Concentration:       round2(gini(counted)),
		TopHolders:          f.holders.Holders,
		Score:               clamp(int(math.Round(100 - top10*1.2))),
	}

	msg := fmt.Sprintf("Top 10 holders own %.1f%% of supply", top10)
	switch {
	case top10 >= 50:
		out.RiskLevel = token.RiskCritical
		red.Add(token.Red(token.CategoryHolders, token.SeverityCritical, msg).WithImpact(-30))
	case top10 >= 30:
		out.RiskLevel = token.RiskHigh
		red.Add(token.Red(token.CategoryHolders, token.SeverityHigh, msg).WithImpact(-20))
	case top10 >= 15:
		out.RiskLevel = token.RiskMedium
		red.Add(token.Red(token.CategoryHolders, token.SeverityMedium, msg).WithImpact(-10))
	default:
		out.RiskLevel = token.RiskLow
		green.Add(token.Green(token.CategoryHolders, 10, msg))
	}
	return out
}

// gini is the Gini coefficient of holder amounts: 0 for a perfectly even
// distribution, approaching 1 when one wallet holds everything.
func gini(holders []token.Holder) float64 {
	n := len(holders)
	if n < 2 {
		return 0
	}
	amounts := make([]float64, n)
	var total float64
	for i, h := range holders {
		amounts[i] = h.Amount
		total += h.Amount
	}
	if total == 0 {
		return 0
	}
	sort.Float64s(amounts)

	var weighted float64
	for i, v := range amounts {
		weighted += float64(i+1) * v
	}
	return (2*weighted)/(float64(n)*total) - float64(n+1)/float64(n)
}

func (a *Analyzer) liquidity(f fetched, red, green *token.FlagSet) token.LiquidityAnalysis {
	if f.poolsErr != nil {
		return token.LiquidityAnalysis{RiskLevel: token.RiskMedium, Score: neutralScore, Degraded: true}
	}

	out := token.LiquidityAnalysis{PoolCount: len(f.pools)}
	if len(f.pools) == 0 {
		out.RiskLevel, out.Score = token.RiskHigh, 30
		red.Add(token.Red(token.CategoryLiquidity, token.SeverityHigh, "No AMM liquidity pool found"))
		return out
	}

	// The pool with the largest LP supply decides.
	main := f.pools[0]
	for _, p := range f.pools[1:] {
		if p.LPSupply > main.LPSupply {
			main = p
		}
	}
	out.LPBurned = main.BurnedPercent >= 90
	out.LPLockedPercent = round2(math.Min(main.BurnedPercent+main.LockedPercent, 100))
	out.LPLocked = main.LockedPercent >= 50

	switch {
	case out.LPBurned:
		out.RiskLevel, out.Score = token.RiskLow, 100
		green.Add(token.Green(token.CategoryLiquidity, 15, "Liquidity pool tokens are burned"))
	case out.LPLockedPercent >= 90:
		out.RiskLevel, out.Score = token.RiskLow, 85
		green.Add(token.Green(token.CategoryLiquidity, 10, fmt.Sprintf("%.0f%% of liquidity is locked", out.LPLockedPercent)))
	case out.LPLockedPercent >= 50:
		out.RiskLevel, out.Score = token.RiskMedium, 60
		red.Add(token.Red(token.CategoryLiquidity, token.SeverityMedium,
			fmt.Sprintf("Only %.0f%% of liquidity is locked or burned", out.LPLockedPercent)))
	default:
		out.RiskLevel, out.Score = token.RiskHigh, 20
		red.Add(token.Red(token.CategoryLiquidity, token.SeverityHigh,
			"Liquidity is neither locked nor burned: it can be pulled").WithImpact(-25))
	}
	return out
}

func (a *Analyzer) patterns(f fetched, red, green, info *token.FlagSet) token.TradingPatternAnalysis {
	if f.sampleErr != nil || f.sample == nil {
		return token.TradingPatternAnalysis{RiskLevel: token.RiskMedium, Score: neutralScore, Degraded: true}
	}

	s := f.sample
	out := token.TradingPatternAnalysis{
		CreationSlot: s.CreationSlot,
		Creator:      s.Creator,
		Earliest:     s.Earliest,
		Recent:       s.Recent,
	}
	if len(s.Earliest) == 0 && len(s.Recent) == 0 {
		out.RiskLevel, out.Score = token.RiskMedium, neutralScore
		info.Add(token.Info(token.CategoryTrading, "No transactions available for pattern analysis"))
		return out
	}

	if s.CreationSlot != nil {
		out.BundledWallets = bundledBuyers(s.Earliest, *s.CreationSlot, s.Creator)
		out.SniperWallets = sniperBuyers(s.Earliest, *s.CreationSlot, a.cfg.SnipeSlots, s.Creator)
		out.Bundled = out.BundledWallets >= a.cfg.BundleMinSigners
		out.Sniped = out.SniperWallets >= a.cfg.SnipeMinBuyers
	}
	out.WashTradePercent = round2(washShare(s.Recent, a.cfg.WashSignerShare))
	out.WashTrading = out.WashTradePercent >= a.cfg.WashSignerShare

	score := 100
	out.RiskLevel = token.RiskLow
	if out.Bundled {
		score -= 35
		out.RiskLevel = token.WorstOf(out.RiskLevel, token.RiskHigh)
		red.Add(token.Red(token.CategoryTrading, token.SeverityHigh,
			fmt.Sprintf("Launch was bundled: %d wallets bought in the creation slot", out.BundledWallets)))
	}
	if out.Sniped {
		score -= 30
		out.RiskLevel = token.WorstOf(out.RiskLevel, token.RiskMedium)
		red.Add(token.Red(token.CategoryTrading, token.SeverityMedium,
			fmt.Sprintf("Launch was sniped: %d wallets bought within %d slots", out.SniperWallets, a.cfg.SnipeSlots)))
	}
	if out.WashTrading {
		score -= 35
		out.RiskLevel = token.WorstOf(out.RiskLevel, token.RiskHigh)
		red.Add(token.Red(token.CategoryTrading, token.SeverityHigh,
			fmt.Sprintf("Wash trading: %.0f%% of recent transactions come from wallets trading both sides", out.WashTradePercent)))
	}
	if !out.Bundled && !out.Sniped && !out.WashTrading {
		green.Add(token.Green(token.CategoryTrading, 5, "No bundling, sniping or wash trading detected"))
	}
	out.Score = clamp(score)
	return out
}

// bundledBuyers counts distinct non-creator buyers landing in the creation slot.
func bundledBuyers(txs []token.Transaction, creationSlot uint64, creator string) int {
	seen := map[string]struct{}{}
	for _, tx := range txs {
		if tx.Slot == creationSlot && tx.Side == token.SideBuy && !tx.Failed && tx.Signer != creator {
			seen[tx.Signer] = struct{}{}
		}
	}
	return len(seen)
}

// sniperBuyers counts distinct non-creator buyers in the slots right after creation.
func sniperBuyers(txs []token.Transaction, creationSlot, window uint64, creator string) int {
	seen := map[string]struct{}{}
	for _, tx := range txs {
		if tx.Slot > creationSlot && tx.Slot <= creationSlot+window &&
			tx.Side == token.SideBuy && !tx.Failed && tx.Signer != creator {
			seen[tx.Signer] = struct{}{}
		}
	}
	return len(seen)
}

// washShare is the percentage of recent transactions signed by wallets that
// both buy and sell and individually account for at least minShare/2 percent.
func washShare(txs []token.Transaction, minShare float64) float64 {
	if len(txs) == 0 {
		return 0
	}
	type sides struct{ buys, sells int }
	bySigner := map[string]*sides{}
	for _, tx := range txs {
		if tx.Failed || tx.Signer == "" {
			continue
		}
		s, ok := bySigner[tx.Signer]
		if !ok {
			s = &sides{}
			bySigner[tx.Signer] = s
		}
		switch tx.Side {
		case token.SideBuy:
			s.buys++
		case token.SideSell:
			s.sells++
		}
	}

	total := float64(len(txs))
	var washTxns int
	for _, s := range bySigner {
		n := s.buys + s.sells
		if s.buys > 0 && s.sells > 0 && float64(n)/total*100 >= minShare/2 {
			washTxns += n
		}
	}
	return float64(washTxns) / total * 100
}

// honeypot flags tokens whose holders cannot sell: an active freeze authority
// and a run of recent buys with no successful sell.
func (a *Analyzer) honeypot(f fetched) (bool, string) {
	if f.authorities == nil || f.authorities.FreezeAuthority == nil || f.sample == nil {
		return false, ""
	}
	var buys, sells int
	for _, tx := range f.sample.Recent {
		if tx.Failed {
			continue
		}
		switch tx.Side {
		case token.SideBuy:
			buys++
		case token.SideSell:
			sells++
		}
	}
	if buys >= a.cfg.HoneypotMinBuys && sells == 0 {
		return true, fmt.Sprintf("Possible honeypot: %d recent buys, no successful sells, freeze authority active", buys)
	}
	return false, ""
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
