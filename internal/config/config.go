// Package config loads and validates the hiveagent YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
)

// CurrentVersion is the configuration format version this build understands.
const CurrentVersion = "1"

// Config is the agent configuration.
type Config struct {
	Version     string            `yaml:"version"`
	Node        NodeConfig        `yaml:"node"`
	Sync        SyncConfig        `yaml:"sync"`
	State       StateConfig       `yaml:"state"`
	Lifecycle   LifecycleConfig   `yaml:"lifecycle"`
	Collector   CollectorConfig   `yaml:"collector"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Admin       AdminConfig       `yaml:"admin"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// NodeConfig identifies this node to the Hivemind. Empty values are resolved at startup.
type NodeConfig struct {
	ID       string `yaml:"id"`
	Hostname string `yaml:"hostname"`
}

// SyncConfig controls the synchronization scheduler.
type SyncConfig struct {
	PeriodSeconds int    `yaml:"period_seconds"` // Seconds between cycle starts
	Window        string `yaml:"window"`         // How far back each essence looks
}

// StateConfig selects the local state store.
type StateConfig struct {
	Backend          StateBackend `yaml:"backend"`           // memory|sqlite
	Path             string       `yaml:"path"`              // SQLite database file
	StalenessHorizon string       `yaml:"staleness_horizon"` // Age beyond which state is inert
}

// LifecycleConfig schedules state cleanup.
type LifecycleConfig struct {
	InertInterval string `yaml:"inert_interval"`  // How often inert state is evicted
	FullResetCron string `yaml:"full_reset_cron"` // Optional cron expression for a full reset
}

// CollectorConfig controls local runtime sampling.
type CollectorConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Interval string `yaml:"interval"`
}

// CoordinatorConfig selects how essences reach the Hivemind.
type CoordinatorConfig struct {
	Transport Transport  `yaml:"transport"` // nats|http
	NATS      NATSConfig `yaml:"nats"`
	HTTP      HTTPConfig `yaml:"http"`
}

// NATSConfig configures JetStream delivery.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"` // Created or updated on connect when set
	Timeout string `yaml:"timeout"`
}

// HTTPConfig configures HTTP/2 delivery.
type HTTPConfig struct {
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
	Token    string `yaml:"token"` // Sent as a bearer token when set
}

// AdminConfig configures the admin HTTP server.
type AdminConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// IsEnabled reports whether the collector runs. Unset means enabled.
func (c CollectorConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// IsEnabled reports whether the admin server runs. Unset means enabled.
func (c AdminConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// WindowDuration returns the parsed essence window.
func (c SyncConfig) WindowDuration() time.Duration { return durationOrZero(c.Window) }

// HorizonDuration returns the parsed staleness horizon.
func (c StateConfig) HorizonDuration() time.Duration { return durationOrZero(c.StalenessHorizon) }

// InertIntervalDuration returns the parsed inert cleanup interval.
func (c LifecycleConfig) InertIntervalDuration() time.Duration {
	return durationOrZero(c.InertInterval)
}

// IntervalDuration returns the parsed sampling interval.
func (c CollectorConfig) IntervalDuration() time.Duration { return durationOrZero(c.Interval) }

// TimeoutDuration returns the parsed publish timeout.
func (c NATSConfig) TimeoutDuration() time.Duration { return durationOrZero(c.Timeout) }

// TimeoutDuration returns the parsed request timeout.
func (c HTTPConfig) TimeoutDuration() time.Duration { return durationOrZero(c.Timeout) }

func durationOrZero(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Load reads, expands, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.ConfigError("configuration file not found").
			WithContext("path", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	return Parse(data)
}

// Parse decodes YAML configuration with ${VAR} expansion, then applies
// defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().UserAction().Build()
	}

	if cfg.Version != "" && cfg.Version != CurrentVersion {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)).Build()
	}

	normalizeConfig(&cfg)
	applyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	applyDefaults(cfg)
	return cfg
}
