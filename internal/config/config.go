// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/tokenrisk/internal/analysis/base"
	"github.com/sawpanic/tokenrisk/internal/analysis/derived"
	"github.com/sawpanic/tokenrisk/internal/analysis/external"
	"github.com/sawpanic/tokenrisk/internal/cache"
	"github.com/sawpanic/tokenrisk/internal/infrastructure/db"
	"github.com/sawpanic/tokenrisk/internal/providers/solana"
	"github.com/sawpanic/tokenrisk/internal/ratelimit"
	"github.com/sawpanic/tokenrisk/internal/resilience"
	"github.com/sawpanic/tokenrisk/internal/score"
)

// AppConfig is the whole service configuration.
type AppConfig struct {
	Server       ServerConfig              `yaml:"server"`
	Redis        cache.RedisConfig         `yaml:"redis"`
	Database     db.Config                 `yaml:"database"`
	Cache        CacheConfig               `yaml:"cache"`
	Aggregator   external.Config           `yaml:"aggregator"`
	Resilience   ResilienceConfig          `yaml:"resilience"`
	Chain        ChainConfig               `yaml:"chain"`
	Base         base.Config               `yaml:"base"`
	Providers    map[string]ProviderConfig `yaml:"providers"`
	Policy       derived.Policy            `yaml:"policy"`
	Weights      score.Weights             `yaml:"weights"`
	SmartWallets []string                  `yaml:"smart_wallets"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// CacheConfig controls both cache tiers' lifetimes.
type CacheConfig struct {
	FastTTL  time.Duration `yaml:"fast_ttl"`
	StaleTTL time.Duration `yaml:"stale_ttl"`
}

// ResilienceConfig holds the default executor settings and per-name overrides
// keyed by provider name or chain sub-check (for example "solana.holders").
type ResilienceConfig struct {
	Defaults  resilience.Settings            `yaml:"defaults"`
	Overrides map[string]resilience.Settings `yaml:"overrides"`
}

// ChainConfig configures the Solana RPC adapter and its rate limit.
type ChainConfig struct {
	solana.Config `yaml:",inline"`
	RateLimit     ratelimit.Limit `yaml:"rate_limit"`
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RequestTimeout: 45 * time.Second,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   60 * time.Second,
		},
		Redis:    cache.RedisConfig{Addr: "localhost:6379"},
		Database: db.DefaultConfig(),
		Cache: CacheConfig{
			FastTTL:  10 * time.Minute,
			StaleTTL: 2 * time.Hour,
		},
		Aggregator: external.Config{
			Timeout:          10 * time.Second,
			ProviderDeadline: 15 * time.Second,
		},
		Resilience: ResilienceConfig{Defaults: resilience.DefaultSettings()},
		Chain: ChainConfig{
			Config:    solana.Config{Endpoint: solana.DefaultEndpoint},
			RateLimit: ratelimit.Limit{RPS: 10, Burst: 10},
		},
		Base:      base.DefaultConfig(),
		Providers: DefaultProviders(),
		Policy:    derived.DefaultPolicy(),
		Weights:   score.DefaultWeights(),
	}
}

// Load reads path (if non-empty and present) over the defaults, then applies
// environment overrides and validates.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
			return nil, fmt.Errorf("config file %s not found", path)
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyDefaults refills zero values a partial YAML file may have left.
func (c *AppConfig) applyDefaults() {
	d := Default()
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = d.Server.RequestTimeout
	}
	if c.Cache.FastTTL == 0 {
		c.Cache.FastTTL = d.Cache.FastTTL
	}
	if c.Cache.StaleTTL == 0 {
		c.Cache.StaleTTL = d.Cache.StaleTTL
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = d.Database.MaxOpenConns
	}
	if c.Database.QueryTimeout == 0 {
		c.Database.QueryTimeout = d.Database.QueryTimeout
	}
	if c.Weights == nil {
		c.Weights = d.Weights
	}
	if c.Providers == nil {
		c.Providers = d.Providers
	}
	for name, p := range d.Providers {
		if _, ok := c.Providers[name]; !ok {
			c.Providers[name] = p
		}
	}
	c.Policy = c.Policy.WithDefaults()
	if len(c.SmartWallets) > 0 {
		c.Policy.SmartWallets = append(c.Policy.SmartWallets, c.SmartWallets...)
	}
}

func applyEnvOverrides(c *AppConfig) {
	if v := os.Getenv("TOKENRISK_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("TOKENRISK_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Redis.Enabled = b
		}
	}
	if v := os.Getenv("PG_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PG_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Database.Enabled = b
		}
	}
	if v := os.Getenv("PG_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Database.QueryTimeout = d
		}
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		c.Chain.Endpoint = v
	}
	if v := os.Getenv("TOKENRISK_FAST_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.FastTTL = d
		}
	}
	if v := os.Getenv("TOKENRISK_STALE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.StaleTTL = d
		}
	}
	for env, name := range map[string]string{
		"RUGCHECK_API_KEY": "rugcheck",
		"BIRDEYE_API_KEY":  "birdeye",
		"SOLSCAN_API_KEY":  "solscan",
	} {
		if v := os.Getenv(env); v != "" {
			if c.Providers == nil {
				c.Providers = DefaultProviders()
			}
			p := c.Providers[name]
			p.APIKey = v
			c.Providers[name] = p
		}
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RequestTimeout < 0 || c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts cannot be negative")
	}
	if c.Cache.FastTTL < 0 || c.Cache.StaleTTL < 0 {
		return fmt.Errorf("cache TTLs cannot be negative")
	}
	if c.Aggregator.Timeout < 0 || c.Aggregator.ProviderDeadline < 0 {
		return fmt.Errorf("aggregator timeouts cannot be negative")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Resilience.Defaults.WithDefaults().Validate(); err != nil {
		return err
	}
	for name, s := range c.Resilience.Overrides {
		if s.Policy.BackoffBase < 0 || s.Policy.BackoffCap < 0 || s.Policy.CallTimeout < 0 ||
			s.Breaker.Window < 0 || s.Breaker.Cooldown < 0 {
			return fmt.Errorf("resilience override %s: negative duration", name)
		}
	}
	if c.Chain.RateLimit.RPS < 0 {
		return fmt.Errorf("chain.rate_limit.rps cannot be negative")
	}
	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	return nil
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
