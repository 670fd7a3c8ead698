// Package tmq is the root of the token-addressed pub/sub system: it owns
// the reactor, the set of live sockets, and the failure sink background
// work reports into. A Context is the Go-native stand-in for the
// original's per-process asyncio event loop — one goroutine running
// Reactor.Run in place of one coroutine running the accept-drain loop,
// with RecordFailure replacing exceptions swallowed by a bare except in
// a fire-and-forget task.
package tmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/tmq/pkg/broker"
	"github.com/aussiebroadwan/tmq/pkg/reactor"
	"github.com/aussiebroadwan/tmq/pkg/socket"
	"github.com/aussiebroadwan/tmq/pkg/wire"
)

// Context is the lifecycle root of a TMQ process: it drives a Reactor
// over every Socket registered with it, and accumulates errors from
// background sends and rejected frames that have no synchronous caller
// to return to.
type Context struct {
	logger *slog.Logger

	reactor *reactor.Reactor
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	sockets  map[*socket.Socket]reactor.Handle
	failures []error
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithLogger attaches a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithReactorOptions forwards options to the underlying reactor.Reactor,
// e.g. reactor.WithTick or reactor.WithMaxAcceptsPerTick.
func WithReactorOptions(opts ...reactor.Option) Option {
	return func(c *Context) {
		opts = append(opts, reactor.WithFailureRecorder(c))
		c.reactor = reactor.New(opts...)
	}
}

// New creates a Context and starts its reactor loop on a background
// goroutine. Call Close to stop it.
func New(opts ...Option) *Context {
	c := &Context{
		logger:  slog.Default(),
		sockets: make(map[*socket.Socket]reactor.Handle),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reactor == nil {
		c.reactor = reactor.New(reactor.WithFailureRecorder(c))
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		defer close(c.done)
		if err := c.reactor.Run(ctx); err != nil && err != context.Canceled {
			c.RecordFailure(fmt.Errorf("tmq: reactor stopped: %w", err))
		}
	}()

	return c
}

// NewSocket creates a socket of the given role, wired to report its
// background failures into this Context, and registers it with the
// reactor so the reactor starts draining its listener once Bind is
// called.
func (c *Context) NewSocket(role socket.Role, opts ...socket.Option) *socket.Socket {
	opts = append(opts, socket.WithFailureRecorder(c))
	s := socket.New(role, opts...)

	c.mu.Lock()
	c.sockets[s] = c.reactor.Register(s)
	c.mu.Unlock()

	return s
}

// RemoveSocket unregisters a socket from the reactor without closing it.
// Mirrors the original's Context.remove, which can evict a socket from
// the accept-drain set independently of the caller closing it.
func (c *Context) RemoveSocket(s *socket.Socket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.sockets[s]; ok {
		c.reactor.Remove(h)
		delete(c.sockets, s)
	}
}

// RecordFailure appends err to the failure sink and logs it. It
// satisfies broker.FailureRecorder, socket.FailureRecorder and
// reactor.FailureRecorder identically, by structural typing, so a
// *Context can be threaded through every layer without adapters.
func (c *Context) RecordFailure(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.failures = append(c.failures, err)
	c.mu.Unlock()
	level := slog.LevelWarn
	if errors.Is(err, wire.ErrMalformed) {
		level = slog.LevelError
	}
	c.logger.Log(context.Background(), level, "background failure", slog.String("error", err.Error()))
}

// Failures returns a snapshot of every error recorded so far.
func (c *Context) Failures() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.failures))
	copy(out, c.failures)
	return out
}

// Close stops the reactor, waits for it to drain in-flight handlers, and
// closes every socket registered with this Context.
func (c *Context) Close() error {
	c.cancel()
	<-c.done

	c.mu.Lock()
	sockets := make([]*socket.Socket, 0, len(c.sockets))
	for s := range c.sockets {
		sockets = append(sockets, s)
	}
	c.sockets = make(map[*socket.Socket]reactor.Handle)
	c.mu.Unlock()

	var firstErr error
	for _, s := range sockets {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ broker.FailureRecorder = (*Context)(nil)
