// Package config loads the source and cache configuration from YAML, with
// environment overlays for secrets. Every field has a working default so a
// missing file yields a fully usable setup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the root document.
type Config struct {
	Sources map[string]Source `yaml:"sources"`
	Cache   Cache             `yaml:"cache"`
	Manager Manager           `yaml:"manager"`
}

// Source holds per-adapter settings. Zero values fall back to the adapter's
// built-in defaults; Enabled defaults to true.
type Source struct {
	Enabled            *bool   `yaml:"enabled,omitempty"`
	SleepMinMs         int     `yaml:"sleep_min_ms,omitempty"`
	SleepMaxMs         int     `yaml:"sleep_max_ms,omitempty"`
	RateLimitPerMinute int     `yaml:"rate_limit_per_minute,omitempty"`
	Token              string  `yaml:"token,omitempty"`
	Priority           float64 `yaml:"priority,omitempty"`
}

// IsEnabled treats an absent flag as enabled.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Cache holds the manager-level TTLs.
type Cache struct {
	BarsTTLSeconds   int `yaml:"bars_ttl_seconds"`
	QuotesTTLSeconds int `yaml:"quotes_ttl_seconds"`
}

// BarsTTL with the 5-minute default.
func (c Cache) BarsTTL() time.Duration {
	if c.BarsTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.BarsTTLSeconds) * time.Second
}

// QuotesTTL with the 30-second default.
func (c Cache) QuotesTTL() time.Duration {
	if c.QuotesTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.QuotesTTLSeconds) * time.Second
}

// Manager holds failover settings.
type Manager struct {
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

// Cooldown with the 5-minute default.
func (m Manager) Cooldown() time.Duration {
	if m.CooldownSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(m.CooldownSeconds) * time.Second
}

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{Sources: map[string]Source{}}
}

// Load reads a YAML file and applies the environment overlay. An empty path
// yields the defaults (still overlaid, so TUSHARE_TOKEN alone is enough to
// enable the token-gated source).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if cfg.Sources == nil {
			cfg.Sources = map[string]Source{}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadDotenv loads a .env file when present. Missing files are fine.
func LoadDotenv() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env loaded")
	}
}

// applyEnv overlays secrets from the environment. Environment wins over the
// file so tokens never need to be committed.
func (c *Config) applyEnv() {
	if tok := os.Getenv("TUSHARE_TOKEN"); tok != "" {
		s := c.Sources["tushare"]
		s.Token = tok
		c.Sources["tushare"] = s
	}
}
