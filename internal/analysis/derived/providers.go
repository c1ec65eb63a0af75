package derived

import (
	"strings"
	"time"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

// Social scores the project's public presence from the pair's links.
func Social(in Input) Result {
	d := in.External.DexScreener
	if d == nil {
		return neutral(token.CategorySocial, "social links unavailable")
	}
	links := len(d.Websites) + len(d.Socials)
	var r Result
	switch {
	case links >= 3:
		r.Score = 90
		r.green(token.CategorySocial, 5, "Project lists %d websites and social channels", links)
	case links == 2:
		r.Score = 75
	case links == 1:
		r.Score = 60
	default:
		r.Score = 30
		r.red(token.CategorySocial, token.SeverityLow, "No website or social channels listed")
	}
	return r
}

// RugCheck inverts the rug-risk scorer's normalised risk into a safety score.
func RugCheck(in Input) Result {
	rc := in.External.RugCheck
	if rc == nil {
		return neutral(token.CategoryProvider, "RugCheck report unavailable")
	}
	if rc.Rugged != nil && *rc.Rugged {
		r := Result{Score: 0}
		r.red(token.CategoryRugged, token.SeverityCritical, "RugCheck reports the token as rugged")
		return r
	}

	var r Result
	if n, ok := derefInt(rc.ScoreNormalised); ok {
		r.Score = clamp(100 - n)
	} else {
		r.Score = NeutralScore
		r.LowConfidence = true
		r.Info = append(r.Info, token.Info(token.CategoryProvider, "Low confidence: RugCheck returned no normalised score"))
	}
	for _, risk := range rc.Risks {
		if strings.EqualFold(risk.Level, "danger") {
			r.red(token.CategoryProvider, token.SeverityHigh, "RugCheck: %s", risk.Name)
		}
	}
	if len(r.Red) == 0 && r.Score >= 80 {
		r.green(token.CategoryProvider, 5, "RugCheck reports no dangerous risks")
	}
	return r
}

// DexScreener scores pool liquidity and pair age.
func DexScreener(in Input) Result {
	d := in.External.DexScreener
	if d == nil || d.LiquidityUSD == nil {
		return neutral(token.CategoryProvider, "DexScreener pair data unavailable")
	}

	liq := *d.LiquidityUSD
	var r Result
	switch {
	case liq >= 100_000:
		r.Score = 85
	case liq >= 25_000:
		r.Score = 65
	case liq >= 5_000:
		r.Score = 45
	default:
		r.Score = 20
		r.red(token.CategoryLiquidity, token.SeverityHigh, "Pool liquidity is only $%.0f", liq)
	}
	if d.PairCreatedAt != nil && in.Now.Sub(*d.PairCreatedAt) < 24*time.Hour {
		r.Score = clamp(r.Score - 10)
		r.red(token.CategoryProvider, token.SeverityLow, "Trading pair was created less than 24 hours ago")
	}
	return r
}

// Birdeye scores trading activity breadth: unique wallets, liquidity and volume.
func Birdeye(in Input) Result {
	b := in.External.Birdeye
	if b == nil {
		return neutral(token.CategoryProvider, "Birdeye overview unavailable")
	}

	known := 0
	s := 40
	if w, ok := derefInt(b.UniqueWallets24h); ok {
		known++
		switch {
		case w >= 500:
			s += 25
		case w >= 100:
			s += 15
		case w < 20:
			s -= 15
		}
	}
	if l, ok := deref(b.LiquidityUSD); ok {
		known++
		switch {
		case l >= 50_000:
			s += 20
		case l >= 10_000:
			s += 10
		}
	}
	if v, ok := deref(b.Volume24hUSD); ok {
		known++
		if v > 0 {
			s += 10
		}
	}
	if known == 0 {
		return neutral(token.CategoryProvider, "Birdeye overview had no usable fields")
	}
	return Result{Score: clamp(s)}
}

// Jupiter scores routability and the price impact of the largest quote.
func Jupiter(in Input) Result {
	j := in.External.Jupiter
	if j == nil {
		return neutral(token.CategoryProvider, "Jupiter quotes unavailable")
	}
	if j.Routable != nil && !*j.Routable {
		r := Result{Score: 0}
		r.red(token.CategoryProvider, token.SeverityHigh, "Jupiter finds no swap route for the token")
		return r
	}
	if len(j.Quotes) == 0 {
		return neutral(token.CategoryProvider, "Jupiter returned no quotes")
	}

	largest := j.Quotes[0]
	for _, q := range j.Quotes[1:] {
		if q.InputSOL > largest.InputSOL {
			largest = q
		}
	}
	switch impact := largest.PriceImpactPct; {
	case impact < 1:
		return Result{Score: 95}
	case impact < 5:
		return Result{Score: 75}
	case impact < 15:
		return Result{Score: 50}
	default:
		return Result{Score: 25}
	}
}
