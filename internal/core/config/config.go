package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Transform TransformConfig `koanf:"transform"`
	Sources   SourcesConfig   `koanf:"sources"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type PipelineConfig struct {
	Name          string `koanf:"name"`
	Enabled       bool   `koanf:"enabled"`
	Interval      string `koanf:"interval"` // parsed and validated on startup
	RunOnStart    bool   `koanf:"run_on_start"`
	MetricWorkers int    `koanf:"metric_workers"`
}

type TransformConfig struct {
	// MappingDir holds optional per-source field mapping override files.
	MappingDir string `koanf:"mapping_dir"`
}

type SourcesConfig struct {
	Shopify       ShopifySourceConfig       `koanf:"shopify"`
	WooCommerce   WooCommerceSourceConfig   `koanf:"woocommerce"`
	Commercetools CommercetoolsSourceConfig `koanf:"commercetools"`
}

type ShopifySourceConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BaseURL     string `koanf:"base_url"`
	AccessToken string `koanf:"access_token"`
	APIVersion  string `koanf:"api_version"`
	PageSize    int    `koanf:"page_size"`
}

type WooCommerceSourceConfig struct {
	Enabled        bool   `koanf:"enabled"`
	BaseURL        string `koanf:"base_url"`
	ConsumerKey    string `koanf:"consumer_key"`
	ConsumerSecret string `koanf:"consumer_secret"`
	PageSize       int    `koanf:"page_size"`
}

type CommercetoolsSourceConfig struct {
	Enabled     bool   `koanf:"enabled"`
	BaseURL     string `koanf:"base_url"`
	ProjectKey  string `koanf:"project_key"`
	AccessToken string `koanf:"access_token"`
	PageSize    int    `koanf:"page_size"`
}

// EnabledSourceCount reports how many sources are switched on.
func (s SourcesConfig) EnabledSourceCount() int {
	count := 0
	if s.Shopify.Enabled {
		count++
	}
	if s.WooCommerce.Enabled {
		count++
	}
	if s.Commercetools.Enabled {
		count++
	}
	return count
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
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
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	if strings.TrimSpace(c.Pipeline.Name) == "" {
		return fmt.Errorf("pipeline.name is required")
	}
	interval, err := time.ParseDuration(c.Pipeline.Interval)
	if err != nil {
		return fmt.Errorf("invalid pipeline.interval %q: %w", c.Pipeline.Interval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("pipeline.interval must be > 0")
	}
	if c.Pipeline.MetricWorkers <= 0 {
		return fmt.Errorf("pipeline.metric_workers must be > 0")
	}
	if c.Pipeline.Enabled && c.Sources.EnabledSourceCount() == 0 {
		return fmt.Errorf("pipeline.enabled requires at least one enabled source")
	}

	if c.Sources.Shopify.Enabled {
		if c.Sources.Shopify.BaseURL == "" || c.Sources.Shopify.AccessToken == "" {
			return fmt.Errorf("sources.shopify requires base_url and access_token")
		}
	}
	if c.Sources.WooCommerce.Enabled {
		if c.Sources.WooCommerce.BaseURL == "" || c.Sources.WooCommerce.ConsumerKey == "" || c.Sources.WooCommerce.ConsumerSecret == "" {
			return fmt.Errorf("sources.woocommerce requires base_url, consumer_key and consumer_secret")
		}
	}
	if c.Sources.Commercetools.Enabled {
		if c.Sources.Commercetools.BaseURL == "" || c.Sources.Commercetools.ProjectKey == "" || c.Sources.Commercetools.AccessToken == "" {
			return fmt.Errorf("sources.commercetools requires base_url, project_key and access_token")
		}
	}

	return nil
}

// IntervalDuration returns the parsed scheduler interval. Validate must
// have succeeded first.
func (c PipelineConfig) IntervalDuration() time.Duration {
	interval, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0
	}
	return interval
}

// Load parses config from file + env and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                   8080,
		"server.host":                   "0.0.0.0",
		"server.max_body_size_mb":       1,
		"server.mode":                   "release",
		"database.type":                 "postgres",
		"database.dsn":                  "",
		"database.max_open_conns":       25,
		"database.max_idle_conns":       25,
		"database.auto_migrate":         true,
		"pipeline.name":                 "commerce-etl",
		"pipeline.enabled":              true,
		"pipeline.interval":             "1h",
		"pipeline.run_on_start":         true,
		"pipeline.metric_workers":       4,
		"transform.mapping_dir":         "./config/mappings",
		"sources.shopify.enabled":       false,
		"sources.woocommerce.enabled":   false,
		"sources.commercetools.enabled": false,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("STORELENS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "STORELENS_")), "__", ".", -1)
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

	return &cfg, nil
}
