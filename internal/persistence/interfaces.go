package persistence

import (
	"context"
	"time"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

// ScoreRecord is one row of the token_scores table. Payload is the full
// SuperTokenScore as JSON; the other columns are copies for querying.
type ScoreRecord struct {
	TokenAddress    string    `json:"token_address" db:"token_address"`
	SuperScore      int       `json:"super_score" db:"super_score"`
	GlobalRiskLevel string    `json:"global_risk_level" db:"global_risk_level"`
	LowConfidence   bool      `json:"low_confidence" db:"low_confidence"`
	Payload         []byte    `json:"payload" db:"payload"`
	AnalyzedAt      time.Time `json:"analyzed_at" db:"analyzed_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ScoreRepo is the durable cache tier. It satisfies the engine's DurableStore.
type ScoreRepo interface {
	// Get returns nil without error when the token has never been scored.
	Get(ctx context.Context, addr token.Address) (*token.CacheEntry, error)

	// Put upserts the entry unless a newer analysis is already stored.
	Put(ctx context.Context, entry token.CacheEntry) error

	// ListRecent returns the most recently analyzed tokens, newest first.
	ListRecent(ctx context.Context, limit int) ([]ScoreRecord, error)

	// CountByRiskLevel groups stored scores by classification.
	CountByRiskLevel(ctx context.Context) (map[string]int64, error)

	// DeleteOlderThan prunes entries analyzed before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository aggregates all persistence interfaces
type Repository struct {
	Scores ScoreRepo
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	// Ping tests basic connectivity to database
	Ping(ctx context.Context) error

	// Describe summarizes connection pool usage
	Describe() string
}
