package config

import "time"

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Environment: "development",
		Broker: BrokerConfig{
			ListenAddr: "0.0.0.0:7500",
		},
		Peer: PeerConfig{
			ListenAddr: "0.0.0.0:0",
			BrokerAddr: "127.0.0.1:7500",
		},
		Reactor: ReactorConfig{
			Tick:              Duration(5 * time.Millisecond),
			MaxAcceptsPerTick: 256,
		},
		Bridge: BridgeConfig{
			Enabled:   false,
			RedisAddr: "127.0.0.1:6379",
			KeyPrefix: "tmq:",
		},
		Admin: AdminConfig{
			Addr:      "127.0.0.1:7600",
			RateLimit: 50,
			RateBurst: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
