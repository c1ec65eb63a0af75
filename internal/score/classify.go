package score

import "github.com/sawpanic/tokenrisk/internal/domain/token"

// tiers from safest to riskiest with their lower score bounds.
var tiers = []struct {
	min   int
	level token.GlobalRiskLevel
}{
	{85, token.UltraSafe},
	{70, token.Safe},
	{50, token.Moderate},
	{30, token.Risky},
	{15, token.VeryRisky},
	{0, token.Scam},
}

var recommendations = map[token.GlobalRiskLevel]string{
	token.UltraSafe: "Low risk profile across every check. Standard position sizing applies.",
	token.Safe:      "Generally safe. Review the flagged items before sizing up.",
	token.Moderate:  "Mixed signals. Use small positions and monitor liquidity and holders.",
	token.Risky:     "High risk. Only trade with capital you can afford to lose.",
	token.VeryRisky: "Very high risk of loss. Avoid unless you fully understand the red flags.",
	token.Scam:      "Likely scam or rug pull. Do not buy.",
}

// Bucket maps a composite score to its tier without any adjustments.
func Bucket(superScore int) token.GlobalRiskLevel {
	for _, t := range tiers {
		if superScore >= t.min {
			return t.level
		}
	}
	return token.Scam
}

// Classify buckets the score, downgrades one tier when any red flag is
// CRITICAL, and forces SCAM for rugged tokens.
func Classify(superScore int, redFlags []token.Flag, rugged bool) token.GlobalRiskLevel {
	if rugged || token.HasCategory(redFlags, token.CategoryRugged) {
		return token.Scam
	}
	level := Bucket(superScore)
	if token.HasSeverity(redFlags, token.SeverityCritical) {
		level = downgrade(level)
	}
	return level
}

func downgrade(level token.GlobalRiskLevel) token.GlobalRiskLevel {
	for i, t := range tiers {
		if t.level == level && i+1 < len(tiers) {
			return tiers[i+1].level
		}
	}
	return level
}

// Recommendation is the fixed advice text for a tier.
func Recommendation(level token.GlobalRiskLevel) string {
	return recommendations[level]
}
