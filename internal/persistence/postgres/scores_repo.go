package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/persistence"
)

// scoresRepo implements persistence.ScoreRepo for PostgreSQL
type scoresRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScoresRepo creates a PostgreSQL score repository
func NewScoresRepo(db *sqlx.DB, timeout time.Duration) persistence.ScoreRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &scoresRepo{db: db, timeout: timeout}
}

const selectColumns = `token_address, super_score, global_risk_level, low_confidence, payload, analyzed_at, updated_at`

// Get returns the stored entry for addr, or nil when there is none.
func (r *scoresRepo) Get(ctx context.Context, addr token.Address) (*token.CacheEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rec persistence.ScoreRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+selectColumns+` FROM token_scores WHERE token_address = $1`, addr.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get score for %s: %w", addr, err)
	}

	var payload token.SuperTokenScore
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode stored score for %s: %w", addr, err)
	}
	return &token.CacheEntry{
		TokenAddress: token.Address(rec.TokenAddress),
		AnalyzedAt:   rec.AnalyzedAt,
		Payload:      payload,
	}, nil
}

// Put upserts entry. An older analysis never replaces a newer one.
func (r *scoresRepo) Put(ctx context.Context, entry token.CacheEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal score payload: %w", err)
	}

	query := `
		INSERT INTO token_scores (token_address, super_score, global_risk_level, low_confidence, payload, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_address) DO UPDATE SET
			super_score = EXCLUDED.super_score,
			global_risk_level = EXCLUDED.global_risk_level,
			low_confidence = EXCLUDED.low_confidence,
			payload = EXCLUDED.payload,
			analyzed_at = EXCLUDED.analyzed_at,
			updated_at = NOW()
		WHERE token_scores.analyzed_at <= EXCLUDED.analyzed_at`

	_, err = r.db.ExecContext(ctx, query,
		entry.TokenAddress.String(),
		entry.Payload.SuperScore,
		string(entry.Payload.GlobalRiskLevel),
		entry.Payload.LowConfidence,
		payload,
		entry.AnalyzedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23514" {
			return fmt.Errorf("score for %s violates table constraint %s: %w", entry.TokenAddress, pqErr.Constraint, err)
		}
		return fmt.Errorf("failed to upsert score for %s: %w", entry.TokenAddress, err)
	}
	return nil
}

// ListRecent returns the latest analyses, newest first.
func (r *scoresRepo) ListRecent(ctx context.Context, limit int) ([]persistence.ScoreRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	var out []persistence.ScoreRecord
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+selectColumns+` FROM token_scores ORDER BY analyzed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent scores: %w", err)
	}
	return out, nil
}

// CountByRiskLevel returns stored score counts grouped by classification
func (r *scoresRepo) CountByRiskLevel(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx,
		`SELECT global_risk_level, COUNT(*) FROM token_scores GROUP BY global_risk_level`)
	if err != nil {
		return nil, fmt.Errorf("failed to count scores by risk level: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var level string
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan risk level count: %w", err)
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

// DeleteOlderThan removes entries analyzed before cutoff
func (r *scoresRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM token_scores WHERE analyzed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune scores: %w", err)
	}
	return res.RowsAffected()
}
