// Package derived computes the category sub-scores that sit on top of the base
// security report and the external provider data. Every analyzer is a pure
// function of its Input.
package derived

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

// NeutralScore is used whenever an analyzer lacks the data it needs.
const NeutralScore = 50

// Input is everything a derived analyzer may read.
type Input struct {
	Base     *token.BaseSecurityReport
	External token.ExternalDataBundle
	Policy   Policy
	Now      time.Time
}

// Result is an analyzer's score and findings. Missing data never produces a
// red flag, only an informational one.
type Result struct {
	Score         int
	Red           []token.Flag
	Green         []token.Flag
	Info          []token.Flag
	LowConfidence bool
}

func (r *Result) red(category string, severity token.Severity, format string, args ...interface{}) {
	r.Red = append(r.Red, token.Red(category, severity, fmt.Sprintf(format, args...)))
}

func (r *Result) green(category string, boost int, format string, args ...interface{}) {
	r.Green = append(r.Green, token.Green(category, boost, fmt.Sprintf(format, args...)))
}

func neutral(category, message string) Result {
	return Result{
		Score:         NeutralScore,
		Info:          []token.Flag{token.Info(category, "Low confidence: "+message)},
		LowConfidence: true,
	}
}

// Outcome is the merged output of every analyzer.
type Outcome struct {
	Breakdown token.ScoreBreakdown
	Analyses  token.Analyses
	Red       []token.Flag
	Green     []token.Flag
	Info      []token.Flag
}

type job struct {
	name string
	run  func() Result
	set  func(b *token.ScoreBreakdown, score int)
}

// RunAll runs every analyzer concurrently and merges their results in a fixed
// order. BaseSecurityScore is copied from the base report.
func RunAll(in Input) Outcome {
	in.Policy = in.Policy.WithDefaults()
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	var out Outcome
	a := &out.Analyses
	jobs := []job{
		{"new_wallets", capture(&a.NewWallets, NewWallets, in),
			func(b *token.ScoreBreakdown, s int) { b.NewWalletScore = s }},
		{"insiders", capture(&a.Insiders, Insiders, in),
			func(b *token.ScoreBreakdown, s int) { b.InsiderScore = s }},
		{"volume", capture(&a.Volume, Volume, in),
			func(b *token.ScoreBreakdown, s int) { b.VolumeScore = s }},
		{"social", plain(Social, in),
			func(b *token.ScoreBreakdown, s int) { b.SocialScore = s }},
		{"bots", capture(&a.Bots, Bots, in),
			func(b *token.ScoreBreakdown, s int) { b.BotDetectionScore = s }},
		{"smart_money", capture(&a.SmartMoney, SmartMoney, in),
			func(b *token.ScoreBreakdown, s int) { b.SmartMoneyScore = s }},
		{"team", capture(&a.Team, Team, in),
			func(b *token.ScoreBreakdown, s int) { b.TeamScore = s }},
		{"price_pattern", capture(&a.PricePattern, PricePattern, in),
			func(b *token.ScoreBreakdown, s int) { b.PricePatternScore = s }},
		{"historical_holders", plain(HistoricalHolders, in),
			func(b *token.ScoreBreakdown, s int) { b.HistoricalHoldersScore = s }},
		{"liquidity_depth", capture(&a.LiquidityDepth, LiquidityDepth, in),
			func(b *token.ScoreBreakdown, s int) { b.LiquidityDepthScore = s }},
		{"consistency", capture(&a.Consistency, Consistency, in),
			func(b *token.ScoreBreakdown, s int) { b.CrossChainScore = s }},
		{"competitor", plain(Competitor, in),
			func(b *token.ScoreBreakdown, s int) { b.CompetitorScore = s }},
		{"rugcheck", plain(RugCheck, in),
			func(b *token.ScoreBreakdown, s int) { b.RugCheckScore = s }},
		{"dexscreener", plain(DexScreener, in),
			func(b *token.ScoreBreakdown, s int) { b.DexScreenerScore = s }},
		{"birdeye", plain(Birdeye, in),
			func(b *token.ScoreBreakdown, s int) { b.BirdeyeScore = s }},
		{"jupiter", plain(Jupiter, in),
			func(b *token.ScoreBreakdown, s int) { b.JupiterScore = s }},
	}

	results := make([]Result, len(jobs))
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, j := range jobs {
		go func(i int, j job) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					log.Error().Interface("panic", p).Str("analyzer", j.name).Msg("Derived analyzer panicked")
					results[i] = neutral(token.CategoryConfidence, j.name+" analyzer failed")
				}
			}()
			results[i] = j.run()
		}(i, j)
	}
	wg.Wait()

	if in.Base != nil {
		out.Breakdown.BaseSecurityScore = clamp(in.Base.SecurityScore)
	} else {
		out.Breakdown.BaseSecurityScore = NeutralScore
	}
	for i, j := range jobs {
		r := results[i]
		j.set(&out.Breakdown, clamp(r.Score))
		out.Red = append(out.Red, r.Red...)
		out.Green = append(out.Green, r.Green...)
		out.Info = append(out.Info, r.Info...)
	}
	return out
}

// capture runs an analyzer and stores its typed analysis in dst.
func capture[T any](dst *T, analyze func(Input) (T, Result), in Input) func() Result {
	return func() Result {
		v, r := analyze(in)
		*dst = v
		return r
	}
}

func plain(analyze func(Input) Result, in Input) func() Result {
	return func() Result { return analyze(in) }
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func score(v float64) int {
	return clamp(int(math.Round(v)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

func derefInt(p *int) (int, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// baseUsable reports whether the on-chain report exists and is not wholly degraded.
func baseUsable(b *token.BaseSecurityReport) bool {
	return b != nil && !b.LowConfidence
}
