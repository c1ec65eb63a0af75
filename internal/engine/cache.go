package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

// FastCache is the short-lived tier, keyed by token.Address.CacheKey.
type FastCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DurableStore is the long-lived tier. Get returns nil without error when no
// entry exists.
type DurableStore interface {
	Get(ctx context.Context, addr token.Address) (*token.CacheEntry, error)
	Put(ctx context.Context, entry token.CacheEntry) error
}

// Cache tiers, used as metric labels.
const (
	TierFast    = "fast"
	TierDurable = "durable"
)

// Lookup results, used as metric labels.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupStale = "stale"
	LookupError = "error"
)

func (e *Engine) lookupFast(ctx context.Context, addr token.Address) *token.SuperTokenScore {
	if e.fast == nil {
		return nil
	}
	raw, ok, err := e.fast.Get(ctx, addr.CacheKey())
	if err != nil {
		e.recorder.CacheLookup(TierFast, LookupError)
		log.Warn().Err(err).Str("token", addr.String()).Msg("Fast cache read failed, treating as miss")
		return nil
	}
	if !ok {
		e.recorder.CacheLookup(TierFast, LookupMiss)
		return nil
	}
	var s token.SuperTokenScore
	if err := json.Unmarshal(raw, &s); err != nil {
		e.recorder.CacheLookup(TierFast, LookupError)
		log.Warn().Err(err).Str("token", addr.String()).Msg("Fast cache entry undecodable, treating as miss")
		return nil
	}
	e.recorder.CacheLookup(TierFast, LookupHit)
	return &s
}

// lookupDurable returns the stored entry whatever its age; the caller decides
// whether it is fresh.
func (e *Engine) lookupDurable(ctx context.Context, addr token.Address) *token.CacheEntry {
	if e.durable == nil {
		return nil
	}
	entry, err := e.durable.Get(ctx, addr)
	if err != nil {
		e.recorder.CacheLookup(TierDurable, LookupError)
		log.Warn().Err(err).Str("token", addr.String()).Msg("Durable cache read failed, treating as miss")
		return nil
	}
	switch {
	case entry == nil:
		e.recorder.CacheLookup(TierDurable, LookupMiss)
	case entry.IsFresh(e.now(), e.cfg.StaleTTL):
		e.recorder.CacheLookup(TierDurable, LookupHit)
	default:
		e.recorder.CacheLookup(TierDurable, LookupStale)
	}
	return entry
}

func (e *Engine) writeFast(ctx context.Context, s *token.SuperTokenScore) {
	if e.fast == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		log.Warn().Err(err).Str("token", s.TokenAddress.String()).Msg("Score not serializable for fast cache")
		return
	}
	if err := e.fast.Set(ctx, s.TokenAddress.CacheKey(), raw, e.cfg.FastTTL); err != nil {
		log.Warn().Err(err).Str("token", s.TokenAddress.String()).Msg("Fast cache write failed")
	}
}

func (e *Engine) writeDurable(ctx context.Context, s *token.SuperTokenScore) {
	if e.durable == nil {
		return
	}
	entry := token.CacheEntry{TokenAddress: s.TokenAddress, AnalyzedAt: s.AnalyzedAt, Payload: *s}
	if err := e.durable.Put(ctx, entry); err != nil {
		log.Warn().Err(err).Str("token", s.TokenAddress.String()).Msg("Durable cache write failed")
	}
}
