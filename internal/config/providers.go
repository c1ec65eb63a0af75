package config

import (
	"fmt"
	"time"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/providers/birdeye"
	"github.com/sawpanic/tokenrisk/internal/providers/dexscreener"
	"github.com/sawpanic/tokenrisk/internal/providers/jupiter"
	"github.com/sawpanic/tokenrisk/internal/providers/rugcheck"
	"github.com/sawpanic/tokenrisk/internal/providers/solscan"
	"github.com/sawpanic/tokenrisk/internal/ratelimit"
)

// ProviderConfig represents configuration for a single provider
type ProviderConfig struct {
	BaseURL  string        `yaml:"base_url"` // Base URL for API calls
	APIKey   string        `yaml:"api_key"`
	RPS      float64       `yaml:"rps"`   // Requests per second
	Burst    int           `yaml:"burst"` // Burst capacity
	Timeout  time.Duration `yaml:"timeout"`
	Disabled bool          `yaml:"disabled"`
}

// DefaultProviders returns the public endpoints with conservative rates.
func DefaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		token.ProviderRugCheck:    {BaseURL: rugcheck.DefaultBaseURL, RPS: 2, Burst: 4, Timeout: 10 * time.Second},
		token.ProviderDexScreener: {BaseURL: dexscreener.DefaultBaseURL, RPS: 5, Burst: 5, Timeout: 10 * time.Second},
		token.ProviderBirdeye:     {BaseURL: birdeye.DefaultBaseURL, RPS: 1, Burst: 2, Timeout: 10 * time.Second},
		token.ProviderSolscan:     {BaseURL: solscan.DefaultBaseURL, RPS: 2, Burst: 2, Timeout: 10 * time.Second},
		token.ProviderJupiter:     {BaseURL: jupiter.DefaultBaseURL, RPS: 5, Burst: 5, Timeout: 10 * time.Second},
	}
}

// Validate ensures a provider configuration is valid
func (p ProviderConfig) Validate() error {
	if p.Disabled {
		return nil
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if p.RPS < 0 {
		return fmt.Errorf("rps cannot be negative, got %v", p.RPS)
	}
	if p.Burst < 0 {
		return fmt.Errorf("burst cannot be negative, got %d", p.Burst)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %v", p.Timeout)
	}
	return nil
}

// RateLimits returns the per-key limits for the shared limiter, including the
// chain RPC under chainKey.
func (c *AppConfig) RateLimits(chainKey string) map[string]ratelimit.Limit {
	out := make(map[string]ratelimit.Limit, len(c.Providers)+1)
	for name, p := range c.Providers {
		out[name] = ratelimit.Limit{RPS: p.RPS, Burst: p.Burst}
	}
	out[chainKey] = c.Chain.RateLimit
	return out
}

// Enabled reports whether the named provider should be wired.
func (c *AppConfig) Enabled(name string) bool {
	p, ok := c.Providers[name]
	return ok && !p.Disabled
}
