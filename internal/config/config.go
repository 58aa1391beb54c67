// Package config loads the sentinel daemon configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Duration is a time.Duration that decodes from YAML strings like "5m" or
// "100ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration for the sentinel daemon.
type Config struct {
	Storage Storage      `yaml:"storage"`
	Server  Server       `yaml:"server"`
	Alpaca  Alpaca       `yaml:"alpaca"`
	Logging Logging      `yaml:"logging"`
	Engine  EngineConfig `yaml:"engine"`
}

// Storage holds paths for the journal database and parquet archive.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration for the observability API.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	BaseURL         string `yaml:"base_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EngineConfig defines the protective-order engine's pricing and timing
// contracts. Every value here is a deployment knob, not a derived invariant;
// the defaults come from empirical tuning.
type EngineConfig struct {
	// StopOffset is subtracted from the buy fill price to produce the
	// protective order's stop price.
	StopOffset float64 `yaml:"stop_offset"`

	// LimitOffset is subtracted from the stop price to produce the
	// protective order's limit price.
	LimitOffset float64 `yaml:"limit_offset"`

	// PendingBuyTTL is how long a tracked buy stays valid before a late
	// fill event for it is presumed superseded and discarded.
	PendingBuyTTL Duration `yaml:"pending_buy_ttl"`

	// LocateWait bounds how long a fill handler waits for a concurrent
	// protective-order creation on the same symbol to resolve.
	LocateWait Duration `yaml:"locate_wait"`

	// LocatePoll is the polling interval used during LocateWait.
	LocatePoll Duration `yaml:"locate_poll"`

	// ReapInterval is the period of the stale-entry sweep.
	ReapInterval Duration `yaml:"reap_interval"`

	// PositionPoll is the period of the position reconciliation poll.
	PositionPoll Duration `yaml:"position_poll"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, applies
// environment variable overrides, and fills defaults for unset engine knobs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-valued fields with the tuned defaults.
func applyDefaults(cfg *Config) {
	if cfg.Engine.StopOffset == 0 {
		cfg.Engine.StopOffset = 0.15
	}
	if cfg.Engine.LimitOffset == 0 {
		cfg.Engine.LimitOffset = 0.05
	}
	if cfg.Engine.PendingBuyTTL == 0 {
		cfg.Engine.PendingBuyTTL = Duration(5 * time.Minute)
	}
	if cfg.Engine.LocateWait == 0 {
		cfg.Engine.LocateWait = Duration(5 * time.Second)
	}
	if cfg.Engine.LocatePoll == 0 {
		cfg.Engine.LocatePoll = Duration(100 * time.Millisecond)
	}
	if cfg.Engine.ReapInterval == 0 {
		cfg.Engine.ReapInterval = Duration(2 * time.Minute)
	}
	if cfg.Engine.PositionPoll == 0 {
		cfg.Engine.PositionPoll = Duration(30 * time.Second)
	}
	if cfg.Alpaca.RateLimitPerMin == 0 {
		cfg.Alpaca.RateLimitPerMin = 200
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca env vars take priority over the generic ones.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
