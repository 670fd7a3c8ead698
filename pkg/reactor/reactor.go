// Package reactor implements the cooperative loop (C4) that drives every
// registered socket: a non-blocking accept drain per tick, with one
// detached handler goroutine per accepted connection.
package reactor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTick is the nominal loop period from §4.5.
const DefaultTick = 5 * time.Millisecond

// DefaultMaxAcceptsPerTick bounds how many connections one socket's
// accept drain will spawn handlers for in a single tick: a per-socket
// accept-drain limiter that protects the reactor goroutine from a
// connect flood on one listener.
const DefaultMaxAcceptsPerTick = 256

// Registrant is anything the reactor can drive: a listener to
// non-blockingly drain, and a handler for each accepted connection.
type Registrant interface {
	Listener() *net.TCPListener
	HandleConn(ctx context.Context, conn net.Conn) error
}

// FailureRecorder receives errors from handler goroutines that would
// otherwise have nowhere to go, so the reactor loop itself never needs to
// propagate a handler's error.
type FailureRecorder interface {
	RecordFailure(err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordFailure(error) {}

type entry struct {
	id  int
	reg Registrant
}

// Reactor drives an ordered set of Registrants. Registration and removal
// are queued and applied only between ticks, so a running drain never
// sees the registry mutate mid-iteration.
type Reactor struct {
	tick       time.Duration
	maxAccepts int
	recorder   FailureRecorder

	mu       sync.Mutex
	entries  []entry
	nextID   int
	pendAdd  []entry
	pendDrop map[int]struct{}

	limiters map[int]*rate.Limiter

	wg sync.WaitGroup
}

// Option configures a Reactor.
type Option func(*Reactor)

// WithTick overrides the nominal loop period.
func WithTick(d time.Duration) Option {
	return func(r *Reactor) { r.tick = d }
}

// WithMaxAcceptsPerTick overrides the per-socket accept-drain cap.
func WithMaxAcceptsPerTick(n int) Option {
	return func(r *Reactor) { r.maxAccepts = n }
}

// WithFailureRecorder attaches a sink for handler errors.
func WithFailureRecorder(rec FailureRecorder) Option {
	return func(r *Reactor) { r.recorder = rec }
}

// New creates a Reactor. It does not start running until Run is called.
func New(opts ...Option) *Reactor {
	r := &Reactor{
		tick:       DefaultTick,
		maxAccepts: DefaultMaxAcceptsPerTick,
		recorder:   nopRecorder{},
		pendDrop:   make(map[int]struct{}),
		limiters:   make(map[int]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle is an opaque token identifying a registration, used by Remove.
type Handle int

// Register adds reg to the drive set. It takes effect at the start of
// the next tick, not immediately, so a Register called from inside a
// handler never races the iteration that spawned it.
func (r *Reactor) Register(reg Registrant) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.pendAdd = append(r.pendAdd, entry{id: id, reg: reg})
	return Handle(id)
}

// Remove queues the registration identified by h for removal, applied between ticks per §4.5 and §9.
func (r *Reactor) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendDrop[int(h)] = struct{}{}
}

// Run repeats the drain-then-sleep loop until ctx is cancelled. It
// returns ctx.Err() on exit. Every handler goroutine it spawns is tracked
// so a caller can wait for in-flight handlers to finish after cancelling.
func (r *Reactor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		default:
		}

		start := time.Now()
		r.applyPending()
		r.drainAll(ctx)

		elapsed := time.Since(start)
		sleep := r.tick - elapsed
		if sleep <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// applyPending folds queued Register/Remove calls into the live entry
// list. Called only between ticks, never mid-drain.
func (r *Reactor) applyPending() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pendAdd) > 0 {
		r.entries = append(r.entries, r.pendAdd...)
		r.pendAdd = nil
	}
	if len(r.pendDrop) == 0 {
		return
	}
	kept := r.entries[:0]
	for _, e := range r.entries {
		if _, drop := r.pendDrop[e.id]; drop {
			delete(r.limiters, e.id)
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	r.pendDrop = make(map[int]struct{})
}

// drainAll performs one non-blocking accept drain over every currently
// registered socket, spawning a detached handler per accepted connection.
func (r *Reactor) drainAll(ctx context.Context) {
	r.mu.Lock()
	snapshot := make([]entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	for _, e := range snapshot {
		r.drainOne(ctx, e)
	}
}

func (r *Reactor) drainOne(ctx context.Context, e entry) {
	ln := e.reg.Listener()
	if ln == nil {
		return
	}

	limiter := r.limiterFor(e.id)

	for {
		if !limiter.Allow() {
			return
		}

		ln.SetDeadline(time.Now().Add(time.Microsecond))
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return // would-block equivalent: nothing more to drain this tick
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.recorder.RecordFailure(fmt.Errorf("reactor: accept: %w", err))
			return
		}

		r.spawnHandler(ctx, e.reg, conn)
	}
}

func (r *Reactor) limiterFor(id int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[id]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.maxAccepts), r.maxAccepts)
		r.limiters[id] = l
	}
	return l
}

func (r *Reactor) spawnHandler(ctx context.Context, reg Registrant, conn net.Conn) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := reg.HandleConn(ctx, conn); err != nil {
			r.recorder.RecordFailure(err)
		}
	}()
}
