package socket

import (
	"context"
	"fmt"
	"net"

	"github.com/aussiebroadwan/tmq/pkg/netio"
	"github.com/aussiebroadwan/tmq/pkg/wire"
)

// HandleConn reads one frame from an accepted connection and dispatches
// it, then closes conn. It is called by the reactor once per accepted
// connection and is the single entry point C3/C4.4 describe as "the
// reactor accepts an inbound connection ... reads one frame and
// dispatches."
func (s *Socket) HandleConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	frame, err := netio.ReadFrame(conn, wire.MaxFrameLen)
	if err != nil {
		s.recorder.RecordFailure(fmt.Errorf("socket: reading frame from %v: %w", conn.RemoteAddr(), err))
		return err
	}

	if s.role == RoleBroker {
		if s.registry == nil {
			return fmt.Errorf("socket: broker role without a registry")
		}
		if err := s.registry.HandleFrame(ctx, frame); err != nil {
			s.recorder.RecordFailure(err)
			return err
		}
		return nil
	}

	if err := s.dispatchClientFrame(frame); err != nil {
		s.recorder.RecordFailure(err)
		return err
	}
	return nil
}

// dispatchClientFrame implements C4.4's dispatch table for non-broker
// sockets: SUB delivers data, PUB|CACHE unions in new subscribers,
// PUB|CACHE|REMOVE differences them out.
func (s *Socket) dispatchClientFrame(frame wire.Frame) error {
	switch {
	case frame.Type == wire.SUB:
		return s.handleSubData(frame)
	case frame.Type == wire.PUB|wire.CACHE:
		return s.handleCacheAdd(frame)
	case frame.Type == wire.PUB|wire.CACHE|wire.REMOVE:
		return s.handleCacheRemove(frame)
	default:
		return fmt.Errorf("%w: client received unexpected type %v", wire.ErrMalformed, frame.Type)
	}
}

func (s *Socket) handleSubData(frame wire.Frame) error {
	key := frame.Pattern.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	queue, ok := s.published[key]
	if !ok {
		return fmt.Errorf("%w: %v not a current subscription", ErrKeyMissing, frame.Pattern)
	}
	queue.pushFront(frame.Payload)
	return nil
}

func (s *Socket) handleCacheAdd(frame wire.Frame) error {
	key := frame.Pattern.Key()

	addrs, err := wire.UnpackAddresses(frame.Payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subscribed[key]
	if !ok {
		return fmt.Errorf("%w: %v not a current publication", ErrKeyMissing, frame.Pattern)
	}
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return nil
}

func (s *Socket) handleCacheRemove(frame wire.Frame) error {
	key := frame.Pattern.Key()

	addrs, err := wire.UnpackAddresses(frame.Payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subscribed[key]
	if !ok {
		return fmt.Errorf("%w: %v not a current publication", ErrKeyMissing, frame.Pattern)
	}
	for _, a := range addrs {
		delete(set, a) // missing individual addresses are silent
	}
	return nil
}
