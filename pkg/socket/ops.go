package socket

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/tmq/pkg/netio"
	"github.com/aussiebroadwan/tmq/pkg/wire"
)

// Subscribe registers this socket as a subscriber of pattern with the
// broker and allocates the pattern's inbound queue. The queue is only
// created once registration succeeds, so a failed Subscribe leaves no
// trace in Published.
func (s *Socket) Subscribe(ctx context.Context, pattern wire.Pattern) error {
	key := pattern.Key()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.published[key]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDuplicate, pattern)
	}
	broker := s.brokerAddr
	listenAddr := s.listenAddr
	s.mu.Unlock()

	payload := wire.PackAddress(listenAddr)
	if err := netio.SendFrame(ctx, broker, wire.SUB|wire.CACHE|wire.BROKER, pattern, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnreachable, err)
	}

	s.mu.Lock()
	s.published[key] = &inboundQueue{}
	s.pubPattern[key] = pattern
	s.mu.Unlock()
	return nil
}

// Publish registers this socket as a publisher of pattern with the
// broker and allocates an empty subscriber-address set. Publishing a
// pattern twice is a no-op, matching the original's idempotent publish.
func (s *Socket) Publish(ctx context.Context, pattern wire.Pattern) error {
	key := pattern.Key()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.subscribed[key]; ok {
		s.mu.Unlock()
		return nil
	}
	broker := s.brokerAddr
	listenAddr := s.listenAddr
	s.mu.Unlock()

	payload := wire.PackAddress(listenAddr)
	if err := netio.SendFrame(ctx, broker, wire.PUB|wire.CACHE|wire.BROKER, pattern, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnreachable, err)
	}

	s.mu.Lock()
	s.subscribed[key] = make(map[wire.Address]struct{})
	s.subPattern[key] = pattern
	s.mu.Unlock()
	return nil
}

// Send delivers payload to every address currently cached as a
// subscriber of pattern, opening one fresh connection per destination.
// It returns 1 on success even when there are no subscribers yet.
// Per-destination failures are recorded via the failure sink and do not
// abort delivery to the remaining destinations.
func (s *Socket) Send(ctx context.Context, pattern wire.Pattern, payload []byte) (int, error) {
	key := pattern.Key()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	destinations, ok := s.subscribed[key]
	if !ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %v", ErrNotPublisher, pattern)
	}
	addrs := make([]wire.Address, 0, len(destinations))
	for a := range destinations {
		addrs = append(addrs, a)
	}
	s.mu.Unlock()

	if len(addrs) == 0 {
		return 1, nil
	}

	for _, addr := range addrs {
		if err := netio.SendFrame(ctx, addr.TCPAddr(), wire.SUB, pattern, payload); err != nil {
			s.recorder.RecordFailure(fmt.Errorf("socket: sending to subscriber %v: %w", addr, err))
		}
	}
	return 1, nil
}

// Recv pops one payload from pattern's inbound queue, newest first. It
// returns ok=false (not an error) when the queue is empty, and
// ErrKeyMissing when pattern was never subscribed.
func (s *Socket) Recv(pattern wire.Pattern) (payload []byte, ok bool, err error) {
	key := pattern.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	queue, exists := s.published[key]
	if !exists {
		return nil, false, fmt.Errorf("%w: %v", ErrKeyMissing, pattern)
	}
	b, popped := queue.popFront()
	return b, popped, nil
}
