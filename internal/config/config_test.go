package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokenrisk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Cache.FastTTL)
	assert.Equal(t, 2*time.Hour, cfg.Cache.StaleTTL)
	assert.Equal(t, 10*time.Second, cfg.Aggregator.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Aggregator.ProviderDeadline)
	assert.Equal(t, 2, cfg.Resilience.Defaults.Policy.MaxRetries)
	assert.Len(t, cfg.Providers, 5)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
cache:
  fast_ttl: 5m
providers:
  birdeye:
    base_url: https://birdeye.internal
    api_key: from-file
    rps: 3
smart_wallets:
  - 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Cache.FastTTL)
	assert.Equal(t, 2*time.Hour, cfg.Cache.StaleTTL)
	assert.Equal(t, "https://birdeye.internal", cfg.Providers[token.ProviderBirdeye].BaseURL)
	assert.Equal(t, "from-file", cfg.Providers[token.ProviderBirdeye].APIKey)
	assert.True(t, cfg.Enabled(token.ProviderJupiter))
	assert.Contains(t, cfg.Policy.SmartWallets, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("PG_DSN", "postgres://u:p@db/tokenrisk?sslmode=disable")
	t.Setenv("PG_ENABLED", "true")
	t.Setenv("SOLANA_RPC_URL", "https://rpc.example.org")
	t.Setenv("BIRDEYE_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "https://rpc.example.org", cfg.Chain.Endpoint)
	assert.Equal(t, "env-key", cfg.Providers[token.ProviderBirdeye].APIKey)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative ttl", "cache:\n  stale_ttl: -1m\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"weights not summing to one", "weights:\n  baseSecurityScore: 0.5\n"},
		{"db enabled without dsn", "database:\n  enabled: true\n"},
		{"negative provider rps", "providers:\n  jupiter:\n    base_url: http://x\n    rps: -1\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRateLimits(t *testing.T) {
	cfg := Default()
	limits := cfg.RateLimits("solana-rpc")
	assert.Len(t, limits, 6)
	assert.Equal(t, cfg.Chain.RateLimit, limits["solana-rpc"])
}
