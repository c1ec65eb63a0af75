package derived

import (
	"math"
	"sort"
	"strings"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

// Volume estimates how much of the reported 24h volume is real by capping the
// trade count at a plausible number of trades per unique wallet.
func Volume(in Input) (token.VolumeAnalysis, Result) {
	var out token.VolumeAnalysis
	b := in.External.Birdeye
	if b == nil || b.Trades24h == nil || b.UniqueWallets24h == nil {
		out.LowConfidence = true
		return out, neutral(token.CategoryVolume, "trade and wallet counts unavailable")
	}

	out.Trades24h = *b.Trades24h
	out.UniqueWallets24h = *b.UniqueWallets24h
	if v, ok := deref(b.Volume24hUSD); ok {
		out.ReportedVolume24h = v
	} else if d := in.External.DexScreener; d != nil {
		out.ReportedVolume24h, _ = deref(d.Volume.H24)
	}

	if out.Trades24h <= 0 {
		out.LowConfidence = true
		return out, Result{Score: NeutralScore, Info: []token.Flag{
			token.Info(token.CategoryVolume, "No trades in the last 24h"),
		}}
	}

	genuine := math.Min(float64(out.Trades24h), float64(out.UniqueWallets24h)*in.Policy.TradesPerWallet)
	realShare := genuine / float64(out.Trades24h)
	out.FakeVolumePercent = round2((1 - realShare) * 100)
	out.RealVolumeEstimate = round2(out.ReportedVolume24h * realShare)

	r := Result{Score: score(100 - out.FakeVolumePercent)}
	switch {
	case out.FakeVolumePercent >= 2*in.Policy.FakeVolumePct:
		r.red(token.CategoryVolume, token.SeverityHigh,
			"An estimated %.0f%% of 24h volume is artificial", out.FakeVolumePercent)
	case out.FakeVolumePercent >= in.Policy.FakeVolumePct:
		r.red(token.CategoryVolume, token.SeverityMedium,
			"An estimated %.0f%% of 24h volume is artificial", out.FakeVolumePercent)
	case out.FakeVolumePercent == 0:
		r.green(token.CategoryVolume, 5, "Trading volume is spread across %d wallets", out.UniqueWallets24h)
	}
	return out, r
}

// Bots classifies sampled transactions as MEV (a signer trading both sides in
// one slot), launch bundles, or wash trades.
func Bots(in Input) (token.BotAnalysis, Result) {
	var out token.BotAnalysis
	if !baseUsable(in.Base) || in.Base.TradingPatterns.Degraded {
		out.LowConfidence = true
		return out, neutral(token.CategoryBots, "transaction sample unavailable")
	}
	tp := in.Base.TradingPatterns
	txs := sampledTxns(in.Base)
	for _, tx := range txs {
		if !tx.Failed {
			out.SampledTxns++
		}
	}
	if out.SampledTxns == 0 {
		out.LowConfidence = true
		return out, neutral(token.CategoryBots, "no transactions sampled")
	}

	type slotSigner struct {
		slot   uint64
		signer string
	}
	groups := map[slotSigner][]token.TradeSide{}
	for _, tx := range txs {
		if tx.Failed || tx.Signer == "" {
			continue
		}
		k := slotSigner{tx.Slot, tx.Signer}
		groups[k] = append(groups[k], tx.Side)
	}
	for _, sides := range groups {
		var buy, sell bool
		for _, s := range sides {
			buy = buy || s == token.SideBuy
			sell = sell || s == token.SideSell
		}
		if buy && sell {
			out.MEVTxns += len(sides)
		}
	}

	out.BundleTxns = tp.BundledWallets
	out.WashTxns = int(math.Round(tp.WashTradePercent / 100 * float64(len(tp.Recent))))

	bots := out.MEVTxns + out.BundleTxns + out.WashTxns
	out.BotPercent = round2(math.Min(100, float64(bots)/float64(out.SampledTxns)*100))

	r := Result{Score: score(100 - out.BotPercent)}
	switch {
	case out.BotPercent >= in.Policy.BotPct:
		r.red(token.CategoryBots, token.SeverityHigh, "%.0f%% of sampled transactions look automated", out.BotPercent)
	case out.BotPercent >= in.Policy.BotPct/2:
		r.red(token.CategoryBots, token.SeverityLow, "%.0f%% of sampled transactions look automated", out.BotPercent)
	case bots == 0:
		r.green(token.CategoryBots, 5, "No bot activity in sampled transactions")
	}
	return out, r
}

// PricePattern classifies the price trajectory from windowed price changes and
// the buy/sell balance.
func PricePattern(in Input) (token.PricePatternAnalysis, Result) {
	var out token.PricePatternAnalysis
	var buys, sells int
	var haveH1 bool

	switch d := in.External.DexScreener; {
	case d != nil && d.PriceChange.H24 != nil:
		out.Change24h = *d.PriceChange.H24
		out.Change1h, haveH1 = deref(d.PriceChange.H1)
		out.Change6h, _ = deref(d.PriceChange.H6)
		if d.TxnsH24 != nil {
			buys, sells = d.TxnsH24.Buys, d.TxnsH24.Sells
		}
	case in.External.Birdeye != nil && in.External.Birdeye.PriceChange24h != nil:
		b := in.External.Birdeye
		out.Change24h = *b.PriceChange24h
		buys, _ = derefInt(b.Buys24h)
		sells, _ = derefInt(b.Sells24h)
	default:
		out.Pattern = token.PatternSideways
		out.LowConfidence = true
		return out, neutral(token.CategoryPrice, "price history unavailable")
	}

	switch {
	case sells > 0:
		out.BuySellRatio = round2(float64(buys) / float64(sells))
	case buys > 0:
		out.BuySellRatio = float64(buys)
	}

	h1, h24 := out.Change1h, out.Change24h
	fb, fs := float64(buys), float64(sells)
	r := Result{}
	switch {
	case h24 > 100 && haveH1 && h1 < -20:
		out.Pattern, r.Score = token.PatternPumpAndDump, 10
		r.red(token.CategoryPrice, token.SeverityHigh,
			"Pump and dump: +%.0f%% over 24h then %.0f%% in the last hour", h24, h1)
	case fs > 1.3*fb && h24 < 0:
		out.Pattern, r.Score = token.PatternDistribution, 35
		r.red(token.CategoryPrice, token.SeverityMedium, "Distribution: sells outpace buys while price falls %.0f%%", h24)
	case h24 >= 5 && h24 <= 100 && fb >= fs && h1 > -10:
		out.Pattern, r.Score = token.PatternOrganicGrowth, 85
		r.green(token.CategoryPrice, 5, "Organic growth: +%.0f%% over 24h with buyers in control", h24)
	case math.Abs(h24) < 10 && fb > 1.2*fs:
		out.Pattern, r.Score = token.PatternAccumulation, 75
	default:
		out.Pattern, r.Score = token.PatternSideways, 60
	}
	return out, r
}

// LiquidityDepth measures slippage across trade sizes, from routing quotes
// when available and otherwise from a constant-product simulation over the
// reported pool liquidity.
func LiquidityDepth(in Input) (token.LiquidityDepthAnalysis, Result) {
	var out token.LiquidityDepthAnalysis
	p := in.Policy.WithDefaults()

	if j := in.External.Jupiter; j != nil && j.Routable != nil && !*j.Routable {
		out.Health, out.Source = token.DepthCritical, "jupiter"
		r := Result{Score: 5}
		r.red(token.CategoryDepth, token.SeverityHigh, "No swap route: the token cannot be bought or sold through the aggregator")
		return out, r
	}

	switch j := in.External.Jupiter; {
	case j != nil && len(j.Quotes) > 0:
		out.Source = "jupiter"
		for _, q := range j.Quotes {
			out.Slippage = append(out.Slippage, token.SlippagePoint{SizeSOL: q.InputSOL, SlippagePct: round2(q.PriceImpactPct)})
		}
	default:
		liq, ok := liquidityUSD(in.External)
		if !ok || liq <= 0 {
			out.Health = token.DepthFair
			out.LowConfidence = true
			return out, neutral(token.CategoryDepth, "no quotes or pool liquidity to measure depth")
		}
		out.Source = "simulation"
		solUSD := solPriceUSD(in.External.DexScreener, p.DefaultSOLPriceUSD)
		reserve := liq / 2
		for _, size := range p.SimulationSizesSOL {
			trade := size * solUSD
			out.Slippage = append(out.Slippage, token.SlippagePoint{
				SizeSOL:     size,
				SlippagePct: round2(trade / (reserve + trade) * 100),
			})
		}
	}
	sort.Slice(out.Slippage, func(i, j int) bool { return out.Slippage[i].SizeSOL < out.Slippage[j].SizeSOL })

	ref := referenceSlippage(out.Slippage, p.ReferenceSizeSOL)
	tiers := p.SlippageTiers
	r := Result{}
	switch {
	case ref < tiers[0]:
		out.Health, r.Score = token.DepthExcellent, 100
		r.green(token.CategoryDepth, 10, "Deep liquidity: %.2f%% slippage at %.0f SOL", ref, p.ReferenceSizeSOL)
	case ref < tiers[1]:
		out.Health, r.Score = token.DepthGood, 80
	case ref < tiers[2]:
		out.Health, r.Score = token.DepthFair, 60
	case ref < tiers[3]:
		out.Health, r.Score = token.DepthPoor, 35
		r.red(token.CategoryDepth, token.SeverityMedium, "Shallow liquidity: %.1f%% slippage at %.0f SOL", ref, p.ReferenceSizeSOL)
	default:
		out.Health, r.Score = token.DepthCritical, 10
		r.red(token.CategoryDepth, token.SeverityHigh, "Critically thin liquidity: %.1f%% slippage at %.0f SOL", ref, p.ReferenceSizeSOL)
	}
	return out, r
}

// referenceSlippage picks the largest measured size not above ref, or the
// smallest size when all are larger.
func referenceSlippage(points []token.SlippagePoint, ref float64) float64 {
	if len(points) == 0 {
		return 0
	}
	pick := points[0]
	for _, pt := range points {
		if pt.SizeSOL <= ref {
			pick = pt
		}
	}
	return pick.SlippagePct
}

func liquidityUSD(b token.ExternalDataBundle) (float64, bool) {
	if b.DexScreener != nil {
		if v, ok := deref(b.DexScreener.LiquidityUSD); ok {
			return v, true
		}
	}
	if b.Birdeye != nil {
		return deref(b.Birdeye.LiquidityUSD)
	}
	return 0, false
}

// solPriceUSD derives the SOL price from a SOL-quoted pair, falling back to def.
func solPriceUSD(d *token.DexScreenerData, def float64) float64 {
	if d == nil || d.QuoteSymbol == nil || d.PriceUSD == nil || d.PriceNative == nil {
		return def
	}
	if q := strings.ToUpper(*d.QuoteSymbol); q != "SOL" && q != "WSOL" {
		return def
	}
	if *d.PriceNative <= 0 || *d.PriceUSD <= 0 {
		return def
	}
	return *d.PriceUSD / *d.PriceNative
}

// Consistency compares holder counts and market caps across sources.
func Consistency(in Input) (token.ConsistencyAnalysis, Result) {
	var out token.ConsistencyAnalysis
	sources := map[string]struct{}{}

	var holders []float64
	add := func(dst *[]float64, name string, v float64, ok bool) {
		if ok && v > 0 {
			*dst = append(*dst, v)
			sources[name] = struct{}{}
		}
	}
	ext := in.External
	if ext.RugCheck != nil {
		n, ok := derefInt(ext.RugCheck.TotalHolders)
		add(&holders, token.ProviderRugCheck, float64(n), ok)
	}
	if ext.Birdeye != nil {
		n, ok := derefInt(ext.Birdeye.Holders)
		add(&holders, token.ProviderBirdeye, float64(n), ok)
	}
	if ext.Solscan != nil {
		n, ok := derefInt(ext.Solscan.Holders)
		add(&holders, token.ProviderSolscan, float64(n), ok)
	}

	var caps []float64
	if ext.DexScreener != nil {
		v, ok := deref(ext.DexScreener.MarketCap)
		add(&caps, token.ProviderDexScreener, v, ok)
	}
	if ext.Birdeye != nil {
		v, ok := deref(ext.Birdeye.MarketCap)
		add(&caps, token.ProviderBirdeye, v, ok)
	}
	if ext.Solscan != nil {
		v, ok := deref(ext.Solscan.MarketCap)
		add(&caps, token.ProviderSolscan, v, ok)
	}

	out.SourcesCompared = len(sources)
	if len(holders) < 2 && len(caps) < 2 {
		out.LowConfidence = true
		return out, neutral(token.CategoryConsistency, "fewer than two sources to cross-check")
	}
	out.HolderDiscrepancyPct = round2(spread(holders))
	out.MarketCapDiscrepancyPct = round2(spread(caps))

	worst := math.Max(out.HolderDiscrepancyPct, out.MarketCapDiscrepancyPct)
	tol := in.Policy.CrossSourceTolerancePct
	out.Consistent = worst <= tol

	r := Result{}
	if out.Consistent {
		r.Score = score(100 - worst*0.4)
		r.green(token.CategoryConsistency, 5, "%d sources agree within %.0f%%", out.SourcesCompared, tol)
		return out, r
	}
	r.Score = score(90 - worst)
	sev := token.SeverityMedium
	if worst >= 2*tol {
		sev = token.SeverityHigh
	}
	r.red(token.CategoryConsistency, sev, "Data sources disagree by %.0f%%", worst)
	return out, r
}

// spread is (max-min)/max in percent; zero with fewer than two values.
func spread(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == 0 {
		return 0
	}
	return (hi - lo) / hi * 100
}

// Competitor scores market positioning by liquidity relative to market cap.
func Competitor(in Input) Result {
	liq, okL := liquidityUSD(in.External)
	mcap, okM := marketCap(in.External)
	if !okL || !okM || mcap <= 0 {
		return neutral(token.CategoryLiquidity, "market cap or liquidity unavailable for positioning")
	}

	ratio := liq / mcap
	var r Result
	switch {
	case ratio >= 0.10:
		r.Score = 85
	case ratio >= 0.05:
		r.Score = 70
	case ratio >= 0.02:
		r.Score = 50
	default:
		r.Score = 25
		r.red(token.CategoryLiquidity, token.SeverityMedium,
			"Liquidity is only %.1f%% of market cap", ratio*100)
	}
	return r
}

func marketCap(b token.ExternalDataBundle) (float64, bool) {
	if b.DexScreener != nil {
		if v, ok := deref(b.DexScreener.MarketCap); ok {
			return v, true
		}
		if v, ok := deref(b.DexScreener.FDV); ok {
			return v, true
		}
	}
	if b.Birdeye != nil {
		return deref(b.Birdeye.MarketCap)
	}
	return 0, false
}
