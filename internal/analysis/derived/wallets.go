package derived

import (
	"time"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

// NewWallets measures how many sampled top holders are freshly created wallets.
func NewWallets(in Input) (token.NewWalletAnalysis, Result) {
	var out token.NewWalletAnalysis
	if !baseUsable(in.Base) || in.Base.Holders.Degraded {
		out.LowConfidence = true
		return out, neutral(token.CategoryNewWallets, "holder data unavailable for wallet age analysis")
	}

	cutoff := in.Now.Add(-time.Duration(in.Policy.NewWalletAgeDays) * 24 * time.Hour)
	for _, h := range in.Base.Holders.TopHolders {
		if h.FirstSeen == nil {
			continue
		}
		out.SampledHolders++
		if h.FirstSeen.After(cutoff) {
			out.NewWallets++
		}
	}
	if out.SampledHolders == 0 {
		out.LowConfidence = true
		return out, neutral(token.CategoryNewWallets, "no holder wallet ages could be sampled")
	}

	out.NewWalletPercent = round2(float64(out.NewWallets) / float64(out.SampledHolders) * 100)
	r := Result{Score: score(100 - out.NewWalletPercent)}
	switch {
	case out.NewWalletPercent >= 2*in.Policy.NewWalletPenaltyPct:
		r.red(token.CategoryNewWallets, token.SeverityHigh,
			"%.0f%% of top holders are wallets younger than %d days", out.NewWalletPercent, in.Policy.NewWalletAgeDays)
	case out.NewWalletPercent >= in.Policy.NewWalletPenaltyPct:
		r.red(token.CategoryNewWallets, token.SeverityMedium,
			"%.0f%% of top holders are wallets younger than %d days", out.NewWalletPercent, in.Policy.NewWalletAgeDays)
	case out.NewWalletPercent < in.Policy.NewWalletPenaltyPct/3:
		r.green(token.CategoryNewWallets, 5, "Top holders are mostly established wallets")
	}
	return out, r
}

// Insiders measures holdings of wallets whose first activity landed within the
// insider window after token creation.
func Insiders(in Input) (token.InsiderAnalysis, Result) {
	var out token.InsiderAnalysis
	if !baseUsable(in.Base) || in.Base.Holders.Degraded || in.Base.TradingPatterns.CreationSlot == nil {
		out.LowConfidence = true
		r := neutral(token.CategoryInsiders, "creation slot or holder history unavailable")
		if rc := in.External.RugCheck; rc != nil && rc.InsidersDetected != nil && *rc.InsidersDetected > 0 {
			r.Info = append(r.Info, token.Info(token.CategoryInsiders, "RugCheck reports an insider wallet network"))
		}
		return out, r
	}

	created := *in.Base.TradingPatterns.CreationSlot
	var dated int
	for _, h := range in.Base.Holders.TopHolders {
		if h.FirstSlot == nil {
			continue
		}
		dated++
		if *h.FirstSlot <= created+in.Policy.InsiderSlots {
			out.InsiderWallets++
			out.InsiderPercent += h.Percent
		}
	}
	if dated == 0 {
		out.LowConfidence = true
		return out, neutral(token.CategoryInsiders, "no holder first-activity slots available")
	}
	out.InsiderPercent = round2(out.InsiderPercent)

	if dex := in.External.DexScreener; dex != nil && dex.TxnsH1 != nil && out.InsiderPercent > in.Policy.InsiderHoldPct {
		out.NetSelling = dex.TxnsH1.Sells > 2*dex.TxnsH1.Buys
	}

	r := Result{Score: score(100 - out.InsiderPercent*1.5)}
	switch {
	case out.InsiderPercent >= 2*in.Policy.InsiderHoldPct:
		r.red(token.CategoryInsiders, token.SeverityHigh,
			"Launch insiders still hold %.1f%% of supply across %d wallets", out.InsiderPercent, out.InsiderWallets)
	case out.InsiderPercent >= in.Policy.InsiderHoldPct:
		r.red(token.CategoryInsiders, token.SeverityMedium,
			"Launch insiders still hold %.1f%% of supply", out.InsiderPercent)
	case out.InsiderWallets == 0:
		r.green(token.CategoryInsiders, 5, "No launch insiders among top holders")
	}
	if out.NetSelling {
		r.Score = clamp(r.Score - 20)
		r.red(token.CategoryInsiders, token.SeverityHigh, "Insiders are net selling: sells outnumber buys 2:1 in the last hour")
	}
	if rc := in.External.RugCheck; rc != nil && rc.InsidersDetected != nil && *rc.InsidersDetected > 0 {
		r.Info = append(r.Info, token.Info(token.CategoryInsiders, "RugCheck reports an insider wallet network"))
	}
	return out, r
}

// SmartMoney derives a signal from the sampled trades of tagged wallets.
func SmartMoney(in Input) (token.SmartMoneyAnalysis, Result) {
	out := token.SmartMoneyAnalysis{Signal: token.SignalNeutral}
	if len(in.Policy.SmartWallets) == 0 {
		out.LowConfidence = true
		return out, neutral(token.CategorySmartMoney, "no smart wallets configured")
	}
	if !baseUsable(in.Base) || in.Base.TradingPatterns.Degraded {
		out.LowConfidence = true
		return out, neutral(token.CategorySmartMoney, "transaction sample unavailable")
	}

	tagged := make(map[string]struct{}, len(in.Policy.SmartWallets))
	for _, w := range in.Policy.SmartWallets {
		tagged[w] = struct{}{}
	}
	active := map[string]struct{}{}
	for _, tx := range sampledTxns(in.Base) {
		if _, ok := tagged[tx.Signer]; !ok || tx.Failed {
			continue
		}
		active[tx.Signer] = struct{}{}
		switch tx.Side {
		case token.SideBuy:
			out.Buys++
			out.NetFlow += tx.Amount
		case token.SideSell:
			out.Sells++
			out.NetFlow -= tx.Amount
		}
	}
	out.SmartWallets = len(active)
	out.NetFlow = round2(out.NetFlow)

	total := out.Buys + out.Sells
	if total == 0 {
		return out, Result{Score: NeutralScore, Info: []token.Flag{
			token.Info(token.CategorySmartMoney, "No smart-money activity in the sampled transactions"),
		}}
	}

	ratio := float64(out.Buys-out.Sells) / float64(total)
	r := Result{}
	switch {
	case ratio >= 0.6 && total >= 3:
		out.Signal, r.Score = token.SignalStrongBuy, 90
		r.green(token.CategorySmartMoney, 10, "Smart money is accumulating: %d buys, %d sells", out.Buys, out.Sells)
	case ratio > 0:
		out.Signal, r.Score = token.SignalBuy, 70
	case ratio == 0:
		out.Signal, r.Score = token.SignalNeutral, NeutralScore
	case ratio <= -0.6 && total >= 3:
		out.Signal, r.Score = token.SignalStrongSell, 10
		r.red(token.CategorySmartMoney, token.SeverityHigh, "Smart money is exiting: %d sells, %d buys", out.Sells, out.Buys)
	default:
		out.Signal, r.Score = token.SignalSell, 30
		r.red(token.CategorySmartMoney, token.SeverityMedium, "Smart money is net selling")
	}
	return out, r
}

// Team inspects the deployer wallet for vesting locks and selling.
func Team(in Input) (token.TeamAnalysis, Result) {
	var out token.TeamAnalysis
	rc := in.External.RugCheck

	switch {
	case in.Base != nil && in.Base.TradingPatterns.Creator != "":
		out.TeamWallet = in.Base.TradingPatterns.Creator
	case rc != nil && rc.Creator != nil:
		out.TeamWallet = *rc.Creator
	case in.External.Solscan != nil && in.External.Solscan.Creator != nil:
		out.TeamWallet = *in.External.Solscan.Creator
	}

	if rc != nil {
		for _, l := range rc.Lockers {
			if l.UnlockAt == nil || !l.UnlockAt.After(in.Now) {
				continue
			}
			out.HasVesting = true
			if out.LockedUntil == nil || l.UnlockAt.After(*out.LockedUntil) {
				u := *l.UnlockAt
				out.LockedUntil = &u
			}
		}
	}

	if out.TeamWallet == "" && rc == nil {
		out.LowConfidence = true
		return out, neutral(token.CategoryTeam, "team wallet and lock data unavailable")
	}

	if out.TeamWallet != "" && in.Base != nil {
		for _, tx := range in.Base.TradingPatterns.Recent {
			if tx.Signer == out.TeamWallet && tx.Side == token.SideSell && !tx.Failed {
				out.TeamSells++
			}
		}
	}
	out.TeamSelling = out.TeamSells > 0

	r := Result{Score: 60}
	if out.HasVesting {
		r.Score += 25
		r.green(token.CategoryTeam, 10, "Team tokens are locked until %s", out.LockedUntil.Format("2006-01-02"))
	}
	if out.TeamSelling {
		r.Score -= 40
		r.red(token.CategoryTeam, token.SeverityHigh, "Deployer wallet sold %d times in recent transactions", out.TeamSells)
	}
	if out.TeamWallet == "" {
		out.LowConfidence = true
		r.Info = append(r.Info, token.Info(token.CategoryTeam, "Low confidence: deployer wallet unknown"))
	}
	r.Score = clamp(r.Score)
	return out, r
}

// HistoricalHolders combines the holder count with the share of aged wallets
// among sampled top holders.
func HistoricalHolders(in Input) Result {
	count, haveCount := holderCount(in)

	var sampled, aged int
	if baseUsable(in.Base) {
		cutoff := in.Now.Add(-time.Duration(in.Policy.NewWalletAgeDays) * 24 * time.Hour)
		for _, h := range in.Base.Holders.TopHolders {
			if h.FirstSeen == nil {
				continue
			}
			sampled++
			if !h.FirstSeen.After(cutoff) {
				aged++
			}
		}
	}
	if !haveCount && sampled == 0 {
		return neutral(token.CategoryHolders, "holder count and wallet ages unavailable")
	}

	var r Result
	var countScore int
	if haveCount {
		switch {
		case count >= 10000:
			countScore = 90
			r.green(token.CategoryHolders, 5, "%d holders", count)
		case count >= 1000:
			countScore = 75
		case count >= 100:
			countScore = 55
		default:
			countScore = 30
			r.red(token.CategoryHolders, token.SeverityMedium, "Only %d holders", count)
		}
	}

	switch {
	case haveCount && sampled > 0:
		r.Score = score((float64(countScore) + float64(aged)/float64(sampled)*100) / 2)
	case haveCount:
		r.Score = countScore
	default:
		r.Score = score(float64(aged) / float64(sampled) * 100)
	}
	return r
}

// holderCount picks the first provider that reports a total holder count.
func holderCount(in Input) (int, bool) {
	if b := in.External.Birdeye; b != nil {
		if n, ok := derefInt(b.Holders); ok {
			return n, true
		}
	}
	if s := in.External.Solscan; s != nil {
		if n, ok := derefInt(s.Holders); ok {
			return n, true
		}
	}
	if rc := in.External.RugCheck; rc != nil {
		if n, ok := derefInt(rc.TotalHolders); ok {
			return n, true
		}
	}
	if in.Base != nil {
		return derefInt(in.Base.Holders.TotalHolders)
	}
	return 0, false
}

func sampledTxns(b *token.BaseSecurityReport) []token.Transaction {
	out := make([]token.Transaction, 0, len(b.TradingPatterns.Earliest)+len(b.TradingPatterns.Recent))
	seen := map[string]struct{}{}
	for _, set := range [][]token.Transaction{b.TradingPatterns.Earliest, b.TradingPatterns.Recent} {
		for _, tx := range set {
			if tx.Signature != "" {
				if _, dup := seen[tx.Signature]; dup {
					continue
				}
				seen[tx.Signature] = struct{}{}
			}
			out = append(out, tx)
		}
	}
	return out
}
