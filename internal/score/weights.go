// Package score folds the breakdown into the composite super score and maps it
// to a global risk level and recommendation.
package score

import (
	"fmt"
	"math"
	"sort"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

// Weights assigns each breakdown key its share of the composite.
type Weights map[string]float64

// DefaultWeights is the fixed weight table. It sums to 1.0.
func DefaultWeights() Weights {
	return Weights{
		"baseSecurityScore":      0.28, // 28%
		"newWalletScore":         0.05,
		"insiderScore":           0.06,
		"volumeScore":            0.05,
		"socialScore":            0.03,
		"botDetectionScore":      0.05,
		"smartMoneyScore":        0.04,
		"teamScore":              0.05,
		"pricePatternScore":      0.05,
		"historicalHoldersScore": 0.03,
		"liquidityDepthScore":    0.06,
		"crossChainScore":        0.03,
		"competitorScore":        0.02,
		"rugCheckScore":          0.07,
		"dexScreenerScore":       0.05,
		"birdeyeScore":           0.04,
		"jupiterScore":           0.04,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Validate checks that every breakdown key is weighted, nothing else is, no
// weight is negative, and the table sums to 1.
func (w Weights) Validate() error {
	keys := token.ScoreBreakdown{}.Named()
	for k := range keys {
		if _, ok := w[k]; !ok {
			return fmt.Errorf("weights: missing key %s", k)
		}
	}
	for k, v := range w {
		if _, ok := keys[k]; !ok {
			return fmt.Errorf("weights: unknown key %s", k)
		}
		if v < 0 {
			return fmt.Errorf("weights: %s is negative (%.3f)", k, v)
		}
	}
	if sum := w.Sum(); sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("weights sum to %.3f, expected 1.000", sum)
	}
	return nil
}

// Composite is round(Σ wᵢ·sᵢ) clamped to [0,100].
func (w Weights) Composite(b token.ScoreBreakdown) int {
	named := b.Named()
	keys := make([]string, 0, len(named))
	for k := range named {
		keys = append(keys, k)
	}
	// Fixed summation order keeps the rounding deterministic.
	sort.Strings(keys)

	var total float64
	for _, k := range keys {
		total += w[k] * float64(named[k])
	}
	v := int(math.Round(total))
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
