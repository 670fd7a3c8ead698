package app

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aussiebroadwan/tmq"
	"github.com/aussiebroadwan/tmq/pkg/reactor"
	"github.com/aussiebroadwan/tmq/pkg/slogx"
	"github.com/aussiebroadwan/tmq/pkg/socket"
	"github.com/aussiebroadwan/tmq/pkg/wire"
)

// PeerOptions configures the peer subcommand beyond what lives in the
// config file, mirroring flags a caller would set for a one-off manual
// session.
type PeerOptions struct {
	Subscribe []string // token names, one pattern per entry
	Publish   []string
}

// RunPeer runs the peer subcommand: binds a client socket, registers
// the requested subscriptions/publications with the broker, then
// forwards stdin lines to every published pattern and prints inbound
// messages for every subscribed pattern until interrupted.
func RunPeer(configPath, logLevel string, verbose bool, opts PeerOptions) error {
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

	peerSocket := ctx.NewSocket(socket.RoleClient)
	if err := peerSocket.Bind(application.Config.Peer.ListenAddr, 8); err != nil {
		return fmt.Errorf("binding peer listener: %w", err)
	}
	if err := peerSocket.SetBroker(application.Config.Peer.BrokerAddr); err != nil {
		return fmt.Errorf("setting broker address: %w", err)
	}

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	publishPatterns := make([]wire.Pattern, 0, len(opts.Publish))
	for _, name := range opts.Publish {
		pattern := wire.HashPattern(name)
		if err := peerSocket.Publish(sigCtx, pattern); err != nil {
			return fmt.Errorf("publishing %q: %w", name, err)
		}
		publishPatterns = append(publishPatterns, pattern)
		application.Logger.Info("publishing", slog.String("pattern", name))
	}

	subscribePatterns := make([]wire.Pattern, 0, len(opts.Subscribe))
	for _, name := range opts.Subscribe {
		pattern := wire.HashPattern(name)
		if err := peerSocket.Subscribe(sigCtx, pattern); err != nil {
			return fmt.Errorf("subscribing %q: %w", name, err)
		}
		subscribePatterns = append(subscribePatterns, pattern)
		application.Logger.Info("subscribing", slog.String("pattern", name))
	}

	go pollSubscriptions(sigCtx, application.Logger, peerSocket, opts.Subscribe, subscribePatterns)

	forwardStdin(sigCtx, application.Logger, peerSocket, publishPatterns)
	return nil
}

// forwardStdin reads newline-delimited input and sends each line to
// every published pattern, until ctx is cancelled or stdin closes.
func forwardStdin(ctx context.Context, logger *slog.Logger, s *socket.Socket, patterns []wire.Pattern) {
	if len(patterns) == 0 {
		<-ctx.Done()
		return
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			for _, pattern := range patterns {
				if _, err := s.Send(ctx, pattern, []byte(strings.TrimSpace(line))); err != nil {
					logger.Error("send failed", slogx.Error(err))
				}
			}
		}
	}
}

// pollSubscriptions periodically drains each subscribed pattern's
// inbound queue and prints arrivals.
func pollSubscriptions(ctx context.Context, logger *slog.Logger, s *socket.Socket, names []string, patterns []wire.Pattern) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i, pattern := range patterns {
				for {
					payload, ok, err := s.Recv(pattern)
					if err != nil {
						logger.Error("recv failed", slogx.Error(err))
						break
					}
					if !ok {
						break
					}
					fmt.Printf("[%s] %s\n", names[i], string(payload))
				}
			}
		}
	}
}
