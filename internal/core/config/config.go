package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	coreseries "github.com/vantic-lab/project-vantic/internal/core/timeseries"
)

// Config represents the top-level application config plus resolved backfill policies.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Backfill BackfillConfig `koanf:"backfill"`
	Rollup   RollupConfig   `koanf:"rollup"`
	Insights InsightsConfig `koanf:"insights"`

	// PolicyLoading is populated by Load after parsing policy files.
	PolicyLoading PolicyLoadingConfig `koanf:"-"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type BackfillConfig struct {
	PolicyDir     string `koanf:"policy_dir"`
	RequirePolicy bool   `koanf:"require_policy"`
	Enabled       bool   `koanf:"enabled"`
	CronInterval  string `koanf:"cron_interval"` // parsed and validated on startup
	WorkerCount   int    `koanf:"worker_count"`
	Seed          int64  `koanf:"seed"` // 0 = derive from wall clock per run
}

type RollupConfig struct {
	Enabled      bool   `koanf:"enabled"`
	CronInterval string `koanf:"cron_interval"`
}

type InsightsConfig struct {
	Enabled    bool   `koanf:"enabled"`
	BaseURL    string `koanf:"base_url"`
	APIKey     string `koanf:"api_key"`
	Model      string `koanf:"model"`
	BatchLimit int    `koanf:"batch_limit"`
}

type PolicyLoadingConfig struct {
	PolicyDir string
	Policies  []coreseries.BackfillPolicy
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}

	if strings.TrimSpace(c.Backfill.PolicyDir) == "" {
		return fmt.Errorf("backfill.policy_dir is required")
	}
	interval, err := time.ParseDuration(c.Backfill.CronInterval)
	if err != nil {
		return fmt.Errorf("invalid backfill.cron_interval %q: %w", c.Backfill.CronInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("backfill.cron_interval must be > 0")
	}
	if c.Backfill.WorkerCount <= 0 {
		return fmt.Errorf("backfill.worker_count must be > 0")
	}

	if c.Rollup.Enabled {
		interval, err := time.ParseDuration(c.Rollup.CronInterval)
		if err != nil {
			return fmt.Errorf("invalid rollup.cron_interval %q: %w", c.Rollup.CronInterval, err)
		}
		if interval <= 0 {
			return fmt.Errorf("rollup.cron_interval must be > 0")
		}
	}

	if c.Insights.Enabled {
		if strings.TrimSpace(c.Insights.APIKey) == "" {
			return fmt.Errorf("insights.api_key is required when insights are enabled")
		}
		if strings.TrimSpace(c.Insights.Model) == "" {
			return fmt.Errorf("insights.model is required when insights are enabled")
		}
		if c.Insights.BatchLimit <= 0 {
			return fmt.Errorf("insights.batch_limit must be > 0")
		}
	}

	return nil
}

// Load parses config from file + env, validates it, then loads and validates
// backfill policies.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.mode":             "release",
		"database.dsn":            "",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"backfill.policy_dir":     "./config/backfill",
		"backfill.require_policy": true,
		"backfill.enabled":        true,
		"backfill.cron_interval":  "24h",
		"backfill.worker_count":   4,
		"backfill.seed":           0,
		"rollup.enabled":          true,
		"rollup.cron_interval":    "1h",
		"insights.enabled":        false,
		"insights.base_url":       "",
		"insights.api_key":        "",
		"insights.model":          "gpt-4o-mini",
		"insights.batch_limit":    100,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("VANTIC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "VANTIC_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := coreseries.NewFileSystemPolicyRepository(cfg.Backfill.PolicyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load backfill policies: %w", err)
	}
	policies := repo.Policies()
	if cfg.Backfill.Enabled && cfg.Backfill.RequirePolicy && len(policies) == 0 {
		return nil, fmt.Errorf("no backfill policies found in %q", cfg.Backfill.PolicyDir)
	}

	cfg.PolicyLoading = PolicyLoadingConfig{
		PolicyDir: cfg.Backfill.PolicyDir,
		Policies:  policies,
	}

	return &cfg, nil
}
