// Package socket implements the peer socket state machine (C2): one
// endpoint that is simultaneously a listener, an outbound client for
// subscribe/publish/send, and a local cache of peer addresses learned
// from the broker.
package socket

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/aussiebroadwan/tmq/pkg/broker"
	"github.com/aussiebroadwan/tmq/pkg/wire"
)

// Role selects how a socket behaves when the reactor hands it an
// accepted connection.
type Role int

const (
	// RoleClient is an ordinary publisher/subscriber peer.
	RoleClient Role = iota
	// RoleBroker runs the broker state machine (package broker) on every
	// accepted connection instead of the client dispatch table.
	RoleBroker
	// RoleBridge is reserved by the wire format (wire.BRIDGE) and is
	// treated identically to RoleClient by the reactor/dispatch layer;
	// package bridge builds bridging behavior on top of a RoleClient
	// socket rather than a distinct reactor code path.
	RoleBridge
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleBroker:
		return "broker"
	case RoleBridge:
		return "bridge"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per §7 error kind that a Socket operation itself
// can surface synchronously to its caller.
var (
	ErrDuplicate         = errors.New("socket: pattern already subscribed")
	ErrNotPublisher      = errors.New("socket: pattern not registered as publisher")
	ErrKeyMissing        = errors.New("socket: pattern not subscribed or published")
	ErrBrokerUnreachable = errors.New("socket: broker unreachable")
	ErrAddrInUse         = errors.New("socket: address already bound")
	ErrClosed            = errors.New("socket: use of closed socket")
)

// FailureRecorder accumulates errors from background work — fan-out
// sends and rejected inbound frames — that must not abort the reactor. A
// Context satisfies this interface.
type FailureRecorder interface {
	RecordFailure(err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordFailure(error) {}

// inboundQueue is a LIFO queue of payloads awaiting Recv: last pushed,
// first popped.
type inboundQueue struct {
	items [][]byte
}

func (q *inboundQueue) pushFront(b []byte) {
	q.items = append([][]byte{b}, q.items...)
}

func (q *inboundQueue) popFront() ([]byte, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	b := q.items[0]
	q.items = q.items[1:]
	return b, true
}

// Socket is one TMQ peer endpoint: a listener, a broker-plane client, and
// (for non-broker roles) the published/subscribed caches from §3.
type Socket struct {
	role Role

	mu         sync.Mutex
	listener   *net.TCPListener
	listenAddr wire.Address
	brokerAddr *net.TCPAddr
	closed     bool

	published  map[string]*inboundQueue      // pattern key -> inbound queue
	pubPattern map[string]wire.Pattern       // pattern key -> Pattern, for published
	subscribed map[string]map[wire.Address]struct{}
	subPattern map[string]wire.Pattern // pattern key -> Pattern, for subscribed

	registry *broker.Registry // non-nil only for RoleBroker
	recorder FailureRecorder
}

// Option configures a Socket at construction time.
type Option func(*Socket)

// WithFailureRecorder attaches a sink for background send/dispatch
// failures (§7: PEER_UNREACHABLE, MALFORMED, KEY_MISSING from inbound
// handlers).
func WithFailureRecorder(r FailureRecorder) Option {
	return func(s *Socket) { s.recorder = r }
}

// New creates a peer socket with the given role. Broker registries are
// allocated eagerly for RoleBroker; client caches are allocated lazily by
// Subscribe/Publish, matching the invariant that a pattern only appears
// in published/subscribed once the corresponding registration succeeds.
func New(role Role, opts ...Option) *Socket {
	s := &Socket{
		role:       role,
		published:  make(map[string]*inboundQueue),
		pubPattern: make(map[string]wire.Pattern),
		subscribed: make(map[string]map[wire.Address]struct{}),
		subPattern: make(map[string]wire.Pattern),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if role == RoleBroker {
		// socket.FailureRecorder and broker.FailureRecorder are the same
		// single-method shape, so s.recorder satisfies both without any
		// adapter — Go's structural interface typing handles the
		// cross-package assignment directly.
		s.registry = broker.NewRegistry(broker.WithFailureRecorder(s.recorder))
	}
	return s
}

// Role reports the socket's role.
func (s *Socket) Role() Role { return s.role }

// Registry returns the broker registry backing this socket, or nil if
// Role() != RoleBroker.
func (s *Socket) Registry() *broker.Registry { return s.registry }

// ListenAddr returns the packed address this socket is bound to. Valid
// only after a successful Bind.
func (s *Socket) ListenAddr() wire.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}

// Listener returns the underlying TCP listener for the reactor's accept
// drain. It is nil until Bind succeeds.
func (s *Socket) Listener() *net.TCPListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

// Bind installs a listener at addr. backlog is accepted for parity with
// the original's bind(endpoint, backlog=5) signature; Go's net package
// does not expose accept-queue backlog tuning, so the value is otherwise
// unused.
func (s *Socket) Bind(addr string, backlog int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("%w: socket already bound to %s", ErrAddrInUse, s.listener.Addr())
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("socket: resolving %q: %w", addr, err)
	}

	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAddrInUse, err)
	}

	packed, err := wire.AddressFromTCP(ln.Addr().(*net.TCPAddr))
	if err != nil {
		ln.Close()
		return fmt.Errorf("socket: packing listen address: %w", err)
	}

	s.listener = ln
	s.listenAddr = packed
	return nil
}

// SetBroker remembers the control-plane address used by Subscribe and
// Publish.
func (s *Socket) SetBroker(addr string) error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("socket: resolving broker address %q: %w", addr, err)
	}
	s.mu.Lock()
	s.brokerAddr = tcpAddr
	s.mu.Unlock()
	return nil
}

// Close tears down the listener and clears the socket's caches. Closing
// twice is a no-op.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.listener != nil {
		err = s.listener.Close()
		s.listener = nil
	}
	s.published = nil
	s.pubPattern = nil
	s.subscribed = nil
	s.subPattern = nil
	return err
}

func (s *Socket) isClosed() bool {
	return s.closed
}
