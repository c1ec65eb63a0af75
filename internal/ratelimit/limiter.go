// Package ratelimit provides keyed token-bucket limiters for outbound calls.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limit is the rate for one key.
type Limit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Limiter keeps one token bucket per key (provider name or RPC endpoint).
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	fallback Limit
	perKey   map[string]Limit
}

// NewLimiter creates a limiter. Keys without an entry in perKey use fallback.
// A non-positive RPS disables limiting for that key.
func NewLimiter(fallback Limit, perKey map[string]Limit) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		fallback: fallback,
		perKey:   perKey,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}

	cfg, ok := l.perKey[key]
	if !ok {
		cfg = l.fallback
	}
	if cfg.RPS <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	l.limiters[key] = limiter
	return limiter
}

// Wait blocks until key may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	return l.get(key).Wait(ctx)
}
