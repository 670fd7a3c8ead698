package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/tmq"
	"github.com/aussiebroadwan/tmq/pkg/bridge"
	"github.com/aussiebroadwan/tmq/pkg/reactor"
	"github.com/aussiebroadwan/tmq/pkg/slogx"
	"github.com/aussiebroadwan/tmq/pkg/socket"
	"github.com/aussiebroadwan/tmq/pkg/wire"
)

// BridgeOptions configures the bridge subcommand: which patterns to
// subscribe to and forward on to Redis.
type BridgeOptions struct {
	Subscribe []string // token names, one pattern per entry
}

// RunBridge runs a headless bridge process: it binds a client socket,
// subscribes to every requested pattern, and forwards every payload that
// arrives for those patterns to Redis under config.Bridge.KeyPrefix,
// with no local consumer of its own.
func RunBridge(configPath, logLevel string, verbose bool, opts BridgeOptions) error {
	application, err := New(configPath, logLevel, verbose)
	if err != nil {
		return err
	}

	if !application.Config.Bridge.Enabled {
		return fmt.Errorf("bridge: bridge.enabled is false in config")
	}
	if len(opts.Subscribe) == 0 {
		return fmt.Errorf("bridge: no patterns to subscribe (pass -subscribe)")
	}

	ctx := tmq.New(
		tmq.WithLogger(application.Logger),
		tmq.WithReactorOptions(
			reactor.WithTick(application.Config.Reactor.Tick.Duration()),
			reactor.WithMaxAcceptsPerTick(application.Config.Reactor.MaxAcceptsPerTick),
		),
	)
	defer func() {
		if err := ctx.Close(); err != nil {
			application.Logger.Error("error closing context", slogx.Error(err))
		}
	}()

	bridgeSocket := ctx.NewSocket(socket.RoleClient)
	if err := bridgeSocket.Bind(application.Config.Peer.ListenAddr, 8); err != nil {
		return fmt.Errorf("binding bridge listener: %w", err)
	}
	if err := bridgeSocket.SetBroker(application.Config.Peer.BrokerAddr); err != nil {
		return fmt.Errorf("setting broker address: %w", err)
	}

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	patterns := make([]wire.Pattern, 0, len(opts.Subscribe))
	for _, name := range opts.Subscribe {
		pattern := wire.HashPattern(name)
		if err := bridgeSocket.Subscribe(sigCtx, pattern); err != nil {
			return fmt.Errorf("subscribing %q: %w", name, err)
		}
		patterns = append(patterns, pattern)
		application.Logger.Info("bridging", slog.String("pattern", name))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: application.Config.Bridge.RedisAddr})
	defer redisClient.Close()

	b := bridge.New(bridgeSocket, redisClient, application.Config.Bridge.KeyPrefix,
		bridge.WithLogger(application.Logger),
		bridge.WithFailureRecorder(ctx),
	)

	application.Logger.Info("bridge started", slog.String("redis_addr", application.Config.Bridge.RedisAddr))
	if err := b.Run(sigCtx, patterns); err != nil && sigCtx.Err() == nil {
		return fmt.Errorf("bridge run: %w", err)
	}
	return nil
}
