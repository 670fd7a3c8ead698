package config

import (
	"strings"

	"github.com/aussiebroadwan/tmq/pkg/lint"
)

// Lint checks the configuration and returns all issues (errors, warnings, info).
func Lint(cfg *Config) lint.Issues {
	c := lint.NewCollector()

	lintEnvironment(c, cfg)
	lintBroker(c, cfg)
	lintPeer(c, cfg)
	lintReactor(c, cfg)
	lintBridge(c, cfg)
	lintAdmin(c, cfg)
	lintLogging(c, cfg)

	return c.Issues()
}

// Validate checks the configuration and returns an error if any errors are found.
func Validate(cfg *Config) error {
	return Lint(cfg).Errors().Err()
}

func lintEnvironment(c *lint.Collector, cfg *Config) {
	env := strings.ToLower(cfg.Environment)
	switch env {
	case "development":
		c.Warn("dev-mode-admin", "environment", "running in development mode (admin surface has no auth)")
	case "production":
		// Valid, no issues
	default:
		c.Errorf("env-invalid", "environment", "must be 'development' or 'production', got %q", cfg.Environment)
	}
}

func lintBroker(c *lint.Collector, cfg *Config) {
	if cfg.Broker.ListenAddr == "" {
		c.Error("broker-invalid", "broker.listen_addr", "is required")
	}
}

func lintPeer(c *lint.Collector, cfg *Config) {
	if cfg.Peer.BrokerAddr == "" {
		c.Error("peer-invalid", "peer.broker_addr", "is required")
	}
}

func lintReactor(c *lint.Collector, cfg *Config) {
	if cfg.Reactor.Tick.Duration() <= 0 {
		c.Error("reactor-invalid", "reactor.tick", "must be positive")
	}
	if cfg.Reactor.MaxAcceptsPerTick < 1 {
		c.Errorf("reactor-invalid", "reactor.max_accepts_per_tick", "must be at least 1, got %d", cfg.Reactor.MaxAcceptsPerTick)
	}
}

func lintBridge(c *lint.Collector, cfg *Config) {
	if !cfg.Bridge.Enabled {
		return
	}
	if cfg.Bridge.RedisAddr == "" {
		c.Error("bridge-invalid", "bridge.redis_addr", "is required when bridge.enabled is true")
	}
	if cfg.Bridge.KeyPrefix == "" {
		c.Warn("bridge-prefix-empty", "bridge.key_prefix", "empty prefix risks key collisions with other Redis consumers")
	}
}

func lintAdmin(c *lint.Collector, cfg *Config) {
	if cfg.Admin.RateLimit < 1 {
		c.Errorf("rate-limit-invalid", "admin.rate_limit", "must be at least 1, got %d", cfg.Admin.RateLimit)
	}
	if cfg.Admin.RateBurst < 1 {
		c.Errorf("rate-limit-invalid", "admin.rate_burst", "must be at least 1, got %d", cfg.Admin.RateBurst)
	}
}

func lintLogging(c *lint.Collector, cfg *Config) {
	level := strings.ToLower(cfg.Logging.Level)
	switch level {
	case "debug":
		c.Warn("debug-logging", "logging.level", "debug logging enabled (may impact performance)")
	case "info", "warn", "error":
		// Valid
	default:
		c.Errorf("logging-invalid", "logging.level", "must be one of: debug, info, warn, error; got %q", cfg.Logging.Level)
	}

	format := strings.ToLower(cfg.Logging.Format)
	if format != "text" && format != "json" {
		c.Errorf("logging-invalid", "logging.format", "must be one of: text, json; got %q", cfg.Logging.Format)
	}
}
