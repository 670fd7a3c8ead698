package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for a tmqd process.
type Config struct {
	Environment string        `yaml:"environment"` // "development" or "production"
	Broker      BrokerConfig  `yaml:"broker"`
	Peer        PeerConfig    `yaml:"peer"`
	Reactor     ReactorConfig `yaml:"reactor"`
	Bridge      BridgeConfig  `yaml:"bridge"`
	Admin       AdminConfig   `yaml:"admin"`
	Logging     LoggingConfig `yaml:"logging"`
}

// BrokerConfig holds configuration for the `tmqd broker` subcommand.
type BrokerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// PeerConfig holds configuration for the `tmqd peer` subcommand.
type PeerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	BrokerAddr string `yaml:"broker_addr"`
}

// ReactorConfig holds tuning for the accept-drain loop.
type ReactorConfig struct {
	Tick              Duration `yaml:"tick"`
	MaxAcceptsPerTick int      `yaml:"max_accepts_per_tick"`
}

// BridgeConfig holds configuration for the optional Redis-backed bridge
// role (pkg/bridge).
type BridgeConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisAddr string `yaml:"redis_addr"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AdminConfig holds configuration for the read-only admin HTTP surface.
type AdminConfig struct {
	Addr      string `yaml:"addr"`
	RateLimit int    `yaml:"rate_limit"` // requests/sec per client IP
	RateBurst int    `yaml:"rate_burst"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(duration)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			// File doesn't exist, use defaults
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
