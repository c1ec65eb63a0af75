package token

// Severity grades a red flag.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities so the worst of several can be picked.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// RiskLevel shares the severity scale for report-level risk.
type RiskLevel = Severity

const (
	RiskLow      = SeverityLow
	RiskMedium   = SeverityMedium
	RiskHigh     = SeverityHigh
	RiskCritical = SeverityCritical
)

// WorstOf returns the highest-ranked level.
func WorstOf(levels ...RiskLevel) RiskLevel {
	worst := RiskLow
	for _, l := range levels {
		if l.Rank() > worst.Rank() {
			worst = l
		}
	}
	return worst
}

// Well-known flag categories. The rugged category forces a SCAM classification.
const (
	CategoryAuthority   = "authority"
	CategoryHolders     = "holders"
	CategoryLiquidity   = "liquidity"
	CategoryTrading     = "trading"
	CategoryRugged      = "rugged"
	CategoryConfidence  = "confidence"
	CategoryNewWallets  = "new_wallets"
	CategoryInsiders    = "insiders"
	CategoryVolume      = "volume"
	CategoryBots        = "bots"
	CategorySmartMoney  = "smart_money"
	CategoryTeam        = "team"
	CategoryPrice       = "price_pattern"
	CategoryDepth       = "liquidity_depth"
	CategoryConsistency = "consistency"
	CategorySocial      = "social"
	CategoryProvider    = "provider"
)

// Flag is a discrete human-readable finding. Red flags carry a Severity, green
// flags carry a ScoreBoost, informational flags carry neither.
type Flag struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity,omitempty"`
	ScoreBoost  int      `json:"score_boost,omitempty"`
	Message     string   `json:"message"`
	ScoreImpact *int     `json:"score_impact,omitempty"`
}

// Red builds a red flag.
func Red(category string, severity Severity, message string) Flag {
	return Flag{Category: category, Severity: severity, Message: message}
}

// Green builds a green flag.
func Green(category string, boost int, message string) Flag {
	return Flag{Category: category, ScoreBoost: boost, Message: message}
}

// Info builds an informational flag.
func Info(category, message string) Flag {
	return Flag{Category: category, Message: message}
}

// WithImpact returns a copy of the flag carrying a score impact.
func (f Flag) WithImpact(impact int) Flag {
	f.ScoreImpact = &impact
	return f
}

type flagKey struct {
	category string
	message  string
}

// FlagSet is an append-only, deduplicating flag list.
type FlagSet struct {
	seen  map[flagKey]struct{}
	flags []Flag
}

// Add appends flags not already present by (category, message).
func (s *FlagSet) Add(flags ...Flag) {
	if s.seen == nil {
		s.seen = make(map[flagKey]struct{})
	}
	for _, f := range flags {
		k := flagKey{f.Category, f.Message}
		if _, dup := s.seen[k]; dup {
			continue
		}
		s.seen[k] = struct{}{}
		s.flags = append(s.flags, f)
	}
}

// Len reports the number of distinct flags.
func (s *FlagSet) Len() int {
	return len(s.flags)
}

// Slice returns a copy of the flags in insertion order, never nil.
func (s *FlagSet) Slice() []Flag {
	out := make([]Flag, len(s.flags))
	copy(out, s.flags)
	return out
}

// HasSeverity reports whether any flag carries the given severity.
func HasSeverity(flags []Flag, severity Severity) bool {
	for _, f := range flags {
		if f.Severity == severity {
			return true
		}
	}
	return false
}

// HasCategory reports whether any flag belongs to category.
func HasCategory(flags []Flag, category string) bool {
	for _, f := range flags {
		if f.Category == category {
			return true
		}
	}
	return false
}
