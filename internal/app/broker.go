package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/tmq"
	"github.com/aussiebroadwan/tmq/internal/adminhttp"
	"github.com/aussiebroadwan/tmq/pkg/reactor"
	"github.com/aussiebroadwan/tmq/pkg/slogx"
	"github.com/aussiebroadwan/tmq/pkg/socket"
)

// RunBroker runs the broker subcommand: a Context hosting a single
// RoleBroker socket, plus the admin HTTP surface for /healthz and
// /stats.
func RunBroker(configPath, logLevel string, verbose bool) error {
	application, err := New(configPath, logLevel, verbose)
	if err != nil {
		return err
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

	brokerSocket := ctx.NewSocket(socket.RoleBroker)
	if err := brokerSocket.Bind(application.Config.Broker.ListenAddr, 64); err != nil {
		return fmt.Errorf("binding broker listener: %w", err)
	}
	application.Logger.Info("broker listening", slog.String("addr", application.Config.Broker.ListenAddr))

	admin := adminhttp.NewServer(application.Config.Admin.Addr, application.Logger, brokerSocket.Registry(),
		application.Config.Admin.RateLimit, application.Config.Admin.RateBurst)

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- admin.Run(sigCtx)
	}()

	<-sigCtx.Done()
	application.Logger.Info("shutting down broker")

	if err := <-errCh; err != nil {
		return fmt.Errorf("admin server error: %w", err)
	}
	return nil
}
