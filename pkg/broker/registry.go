// Package broker implements the broker-side state machine (C3): per-pattern
// registries of publishers and subscribers, and the fan-out of membership
// changes to interested peers.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/tmq/pkg/netio"
	"github.com/aussiebroadwan/tmq/pkg/wire"
)

// FailureRecorder accumulates errors from background fan-out sends so
// they are diagnosable without blocking registration. A Context
// satisfies this interface; tests may supply their own.
type FailureRecorder interface {
	RecordFailure(err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordFailure(error) {}

// Registry holds a broker's subscriber and publisher address sets, keyed
// by pattern. All mutation happens from reactor-handler goroutines; the
// mutex only protects against concurrent handlers for different patterns
// interleaving on the same map.
type Registry struct {
	mu sync.Mutex

	subscribers map[string]map[wire.Address]struct{}
	publishers  map[string]map[wire.Address]struct{}
	patterns    map[string]wire.Pattern // key -> original Pattern, for re-sending

	recorder  FailureRecorder
	logger    *slog.Logger
	eventSink func(Event)
}

// Option configures a Registry.
type Option func(*Registry)

// WithFailureRecorder attaches a sink for background fan-out errors.
func WithFailureRecorder(r FailureRecorder) Option {
	return func(reg *Registry) { reg.recorder = r }
}

// WithLogger attaches a logger used for per-registration diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(reg *Registry) { reg.logger = l }
}

// Event describes one registration as it happens, for diagnostic
// subscribers (e.g. the admin SSE stream). It carries no control-plane
// authority — an Event observer cannot influence dispatch.
type Event struct {
	Kind    string // "subscriber" or "publisher"
	Pattern string
	Address string
}

// SetEventSink installs fn to be called synchronously after every
// successful registration. Safe to call once at startup; not safe for
// concurrent use with HandleFrame.
func (r *Registry) SetEventSink(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventSink = fn
}

func (r *Registry) emit(kind string, pattern wire.Pattern, addr wire.Address) {
	r.mu.Lock()
	sink := r.eventSink
	r.mu.Unlock()
	if sink != nil {
		sink(Event{Kind: kind, Pattern: pattern.Key(), Address: addr.TCPAddr().String()})
	}
}

// NewRegistry creates an empty broker registry.
func NewRegistry(opts ...Option) *Registry {
	reg := &Registry{
		subscribers: make(map[string]map[wire.Address]struct{}),
		publishers:  make(map[string]map[wire.Address]struct{}),
		patterns:    make(map[string]wire.Pattern),
		recorder:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Subscribers returns the current subscriber set for pattern.
func (r *Registry) Subscribers(pattern wire.Pattern) []wire.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return addressSlice(r.subscribers[pattern.Key()])
}

// Publishers returns the current publisher set for pattern.
func (r *Registry) Publishers(pattern wire.Pattern) []wire.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return addressSlice(r.publishers[pattern.Key()])
}

// Patterns returns every pattern this registry has seen a publisher or
// subscriber for, in no particular order. Intended for admin/diagnostic
// surfaces, not the wire protocol itself.
func (r *Registry) Patterns() []wire.Pattern {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wire.Pattern, 0, len(r.patterns))
	for _, p := range r.patterns {
		out = append(out, p)
	}
	return out
}

// Stat summarizes one pattern's registration counts.
type Stat struct {
	Pattern         wire.Pattern
	SubscriberCount int
	PublisherCount  int
}

// Stats returns a per-pattern snapshot of subscriber/publisher counts.
func (r *Registry) Stats() []Stat {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stat, 0, len(r.patterns))
	for key, pattern := range r.patterns {
		out = append(out, Stat{
			Pattern:         pattern,
			SubscriberCount: len(r.subscribers[key]),
			PublisherCount:  len(r.publishers[key]),
		})
	}
	return out
}

func addressSlice(set map[wire.Address]struct{}) []wire.Address {
	out := make([]wire.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	return out
}

// HandleFrame dispatches one broker-control frame as received by the
// reactor. It is the broker-side half of C3; the other half, handled by
// ordinary (non-broker) sockets, lives in package socket.
func (r *Registry) HandleFrame(ctx context.Context, frame wire.Frame) error {
	switch frame.Type {
	case wire.SUB | wire.CACHE | wire.BROKER:
		return r.newSubscriber(ctx, frame.Pattern, frame.Payload)
	case wire.PUB | wire.CACHE | wire.BROKER:
		return r.newPublisher(ctx, frame.Pattern, frame.Payload)
	default:
		return fmt.Errorf("%w: broker received unexpected type %v", wire.ErrMalformed, frame.Type)
	}
}

// newSubscriber records addr as a subscriber of pattern, then — if the
// pattern already has known publishers — fans out a PUB|CACHE frame
// carrying just the new subscriber's address to each of them. If no
// publisher is known yet, fan-out is skipped entirely (the original's
// _new_subscriber early-return), not sent with an empty destination list.
func (r *Registry) newSubscriber(ctx context.Context, pattern wire.Pattern, payload []byte) error {
	addr, _, err := wire.UnpackAddress(payload)
	if err != nil {
		return fmt.Errorf("broker: unpacking subscriber address: %w", err)
	}

	key := pattern.Key()
	r.mu.Lock()
	if r.subscribers[key] == nil {
		r.subscribers[key] = make(map[wire.Address]struct{})
		r.patterns[key] = pattern
	}
	r.subscribers[key][addr] = struct{}{}
	publishers := addressSlice(r.publishers[key])
	r.mu.Unlock()

	r.emit("subscriber", pattern, addr)

	if len(publishers) == 0 {
		return nil
	}

	payloadOut := wire.PackAddress(addr)
	r.fanOut(ctx, publishers, pattern, payloadOut)
	return nil
}

// newPublisher records addr as a publisher of pattern, then replies with a
// single PUB|CACHE frame carrying the full current subscriber set for
// that pattern — possibly empty. Sending the frame even when empty (the
// convention documented in DESIGN.md) lets the publisher distinguish "no
// subscribers yet" from "broker never answered."
func (r *Registry) newPublisher(ctx context.Context, pattern wire.Pattern, payload []byte) error {
	addr, _, err := wire.UnpackAddress(payload)
	if err != nil {
		return fmt.Errorf("broker: unpacking publisher address: %w", err)
	}

	key := pattern.Key()
	r.mu.Lock()
	if r.publishers[key] == nil {
		r.publishers[key] = make(map[wire.Address]struct{})
		r.patterns[key] = pattern
	}
	r.publishers[key][addr] = struct{}{}
	subscribers := addressSlice(r.subscribers[key])
	r.mu.Unlock()

	r.emit("publisher", pattern, addr)

	packedSubs := wire.PackAddresses(subscribers)
	if sendErr := netio.SendFrame(ctx, addr.TCPAddr(), wire.PUB|wire.CACHE, pattern, packedSubs); sendErr != nil {
		r.recorder.RecordFailure(fmt.Errorf("broker: notifying new publisher %v: %w", addr, sendErr))
	}
	return nil
}

// fanOut sends packet (already built) to every destination in order,
// recording per-destination failures without aborting the rest.
func (r *Registry) fanOut(ctx context.Context, destinations []wire.Address, pattern wire.Pattern, payload []byte) {
	for _, addr := range destinations {
		if err := netio.SendFrame(ctx, addr.TCPAddr(), wire.PUB|wire.CACHE, pattern, payload); err != nil {
			r.recorder.RecordFailure(fmt.Errorf("broker: fan-out to %v: %w", addr, err))
		}
	}
}
