package config

import (
	"os"
	"strconv"
	"time"
)

// applyEnv applies environment variable overrides to the config.
// Environment variables take precedence over config file values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TMQ_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	// Broker
	if v := os.Getenv("TMQ_BROKER_LISTEN_ADDR"); v != "" {
		cfg.Broker.ListenAddr = v
	}

	// Peer
	if v := os.Getenv("TMQ_PEER_LISTEN_ADDR"); v != "" {
		cfg.Peer.ListenAddr = v
	}
	if v := os.Getenv("TMQ_PEER_BROKER_ADDR"); v != "" {
		cfg.Peer.BrokerAddr = v
	}

	// Reactor
	if v := os.Getenv("TMQ_REACTOR_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Reactor.Tick = Duration(d)
		}
	}
	if v := os.Getenv("TMQ_REACTOR_MAX_ACCEPTS_PER_TICK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reactor.MaxAcceptsPerTick = n
		}
	}

	// Bridge
	if v := os.Getenv("TMQ_BRIDGE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Bridge.Enabled = b
		}
	}
	if v := os.Getenv("TMQ_BRIDGE_REDIS_ADDR"); v != "" {
		cfg.Bridge.RedisAddr = v
	}
	if v := os.Getenv("TMQ_BRIDGE_KEY_PREFIX"); v != "" {
		cfg.Bridge.KeyPrefix = v
	}

	// Admin
	if v := os.Getenv("TMQ_ADMIN_ADDR"); v != "" {
		cfg.Admin.Addr = v
	}
	if v := os.Getenv("TMQ_ADMIN_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Admin.RateLimit = n
		}
	}
	if v := os.Getenv("TMQ_ADMIN_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Admin.RateBurst = n
		}
	}

	// Logging
	if v := os.Getenv("TMQ_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TMQ_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
