package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
sources:
  sina:
    sleep_min_ms: 50
    sleep_max_ms: 200
  tushare:
    rate_limit_per_minute: 80
    token: file-token
  baostock:
    enabled: false
cache:
  bars_ttl_seconds: 600
  quotes_ttl_seconds: 15
manager:
  cooldown_seconds: 120
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Sources["sina"].SleepMinMs)
	assert.Equal(t, 80, cfg.Sources["tushare"].RateLimitPerMinute)
	assert.Equal(t, "file-token", cfg.Sources["tushare"].Token)
	assert.True(t, cfg.Sources["sina"].IsEnabled())
	assert.False(t, cfg.Sources["baostock"].IsEnabled())
	assert.Equal(t, 10*time.Minute, cfg.Cache.BarsTTL())
	assert.Equal(t, 15*time.Second, cfg.Cache.QuotesTTL())
	assert.Equal(t, 2*time.Minute, cfg.Manager.Cooldown())
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Cache.BarsTTL())
	assert.Equal(t, 30*time.Second, cfg.Cache.QuotesTTL())
	assert.Equal(t, 5*time.Minute, cfg.Manager.Cooldown())
}

func TestEnvOverridesFileToken(t *testing.T) {
	t.Setenv("TUSHARE_TOKEN", "env-token")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Sources["tushare"].Token)
}

func TestEnvTokenWithoutFile(t *testing.T) {
	t.Setenv("TUSHARE_TOKEN", "env-only")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Sources["tushare"].Token)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "sources: ["))
	require.Error(t, err)
}
