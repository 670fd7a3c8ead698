// Package bridge implements the BRIDGE peer role (wire.BRIDGE): a role
// the wire format reserves a bit for but otherwise leaves open. It
// adapts a peer socket.Socket so that every SUB data
// frame arriving on a subscribed pattern is republished on a Redis
// Pub/Sub channel named after the pattern, letting a pattern fan out to a
// wider fleet without recompiling the original peers.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/tmq/pkg/socket"
	"github.com/aussiebroadwan/tmq/pkg/wire"
)

// DefaultPollInterval is how often Run drains each bridged pattern's
// local queue when it finds nothing waiting.
const DefaultPollInterval = 10 * time.Millisecond

// RedisPublisher is the subset of *redis.Client the bridge needs, so
// tests can substitute a miniredis-backed client without any other
// change to Bridge.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// FailureRecorder accumulates errors from the bridge's background drain
// loop. A tmq.Context satisfies this interface.
type FailureRecorder interface {
	RecordFailure(err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordFailure(error) {}

// Bridge adapts one peer socket.Socket to Redis Pub/Sub.
type Bridge struct {
	sock      *socket.Socket
	redis     RedisPublisher
	keyPrefix string
	logger    *slog.Logger
	recorder  FailureRecorder
	poll      time.Duration
}

// Option configures a Bridge at construction time.
type Option func(*Bridge)

// WithLogger attaches a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithFailureRecorder attaches a sink for background publish failures.
func WithFailureRecorder(r FailureRecorder) Option {
	return func(b *Bridge) { b.recorder = r }
}

// WithPollInterval overrides how often Run checks a pattern's local
// queue when it finds nothing to forward.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bridge) { b.poll = d }
}

// New creates a Bridge over sock, publishing to redisClient under
// channels prefixed with keyPrefix. sock must already be bound and have
// SetBroker called; the bridge itself never touches the control plane,
// only the data frames the socket's own Subscribe calls cause to arrive.
func New(sock *socket.Socket, redisClient RedisPublisher, keyPrefix string, opts ...Option) *Bridge {
	b := &Bridge{
		sock:      sock,
		redis:     redisClient,
		keyPrefix: keyPrefix,
		logger:    slog.Default(),
		recorder:  nopRecorder{},
		poll:      DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Channel returns the Redis Pub/Sub channel name a pattern bridges to:
// the configured prefix followed by each of the pattern's tokens in hex,
// dot-separated, so the channel name is legible in `redis-cli PSUBSCRIBE`
// output instead of the raw binary map key package wire uses internally.
func (b *Bridge) Channel(pattern wire.Pattern) string {
	ch := b.keyPrefix
	for i, tok := range pattern {
		if i > 0 {
			ch += "."
		}
		ch += strconv.FormatUint(uint64(tok), 16)
	}
	return ch
}

// Recv pops one payload from pattern's local queue exactly like
// socket.Socket.Recv, and — when a payload was waiting — additionally
// republishes it on the pattern's Redis channel before returning it to
// the caller. This is the "tee" shape: the message still reaches a local
// consumer that calls Recv through the bridge, and a remote Redis
// subscriber, from the one call.
func (b *Bridge) Recv(ctx context.Context, pattern wire.Pattern) ([]byte, bool, error) {
	payload, ok, err := b.sock.Recv(pattern)
	if err != nil || !ok {
		return payload, ok, err
	}
	if pubErr := b.publish(ctx, pattern, payload); pubErr != nil {
		b.recorder.RecordFailure(pubErr)
	}
	return payload, ok, nil
}

func (b *Bridge) publish(ctx context.Context, pattern wire.Pattern, payload []byte) error {
	if err := b.redis.Publish(ctx, b.Channel(pattern), payload).Err(); err != nil {
		return fmt.Errorf("bridge: publishing to %s: %w", b.Channel(pattern), err)
	}
	return nil
}

// Run drains every pattern in patterns on a fixed poll interval,
// forwarding each payload it finds to Redis and nothing else: this is
// the "instead" shape, for a headless bridge process with no local
// consumer of its own. Run blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, patterns []wire.Pattern) error {
	if len(patterns) == 0 {
		return errors.New("bridge: Run called with no patterns to forward")
	}

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.drainOnce(ctx, patterns)
		}
	}
}

func (b *Bridge) drainOnce(ctx context.Context, patterns []wire.Pattern) {
	for _, pattern := range patterns {
		for {
			payload, ok, err := b.sock.Recv(pattern)
			if err != nil {
				b.recorder.RecordFailure(fmt.Errorf("bridge: draining %v: %w", pattern, err))
				break
			}
			if !ok {
				break
			}
			if pubErr := b.publish(ctx, pattern, payload); pubErr != nil {
				b.recorder.RecordFailure(pubErr)
				continue
			}
			b.logger.Debug("bridged message", slog.String("channel", b.Channel(pattern)))
		}
	}
}
