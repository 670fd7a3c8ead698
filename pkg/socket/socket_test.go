package socket

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/aussiebroadwan/tmq/pkg/wire"
)

func mustListen(t *testing.T) *net.TCPListener {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	return ln
}

// TestS4DirectPublish matches the original's test_pub: a publisher with
// subscribed[pattern]={addr} sends data; a plain listener at addr
// receives a SUB frame unpacking to (pattern, data).
func TestS4DirectPublish(t *testing.T) {
	subLn := mustListen(t)
	defer subLn.Close()

	subAddr, err := wire.AddressFromTCP(subLn.Addr().(*net.TCPAddr))
	if err != nil {
		t.Fatalf("AddressFromTCP: %v", err)
	}

	pattern := wire.Pattern{0, 1}
	expected := []byte("houston we have lift off")

	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer s.Close()

	// Inject a publisher registration directly, bypassing the broker
	// round trip this unit test doesn't exercise.
	key := pattern.Key()
	s.mu.Lock()
	s.subscribed[key] = map[wire.Address]struct{}{subAddr: {}}
	s.mu.Unlock()

	done := make(chan wire.Frame, 1)
	go func() {
		conn, err := subLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, wire.MaxFrameLen)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		frame, err := wire.Unpack(buf[:n])
		if err != nil {
			return
		}
		done <- frame
	}()

	n, err := s.Send(context.Background(), pattern, expected)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n != 1 {
		t.Errorf("Send() = %d, want 1", n)
	}

	select {
	case frame := <-done:
		if frame.Type != wire.SUB {
			t.Errorf("frame.Type = %v, want SUB", frame.Type)
		}
		if !frame.Pattern.Equal(pattern) {
			t.Errorf("frame.Pattern = %v, want %v", frame.Pattern, pattern)
		}
		if string(frame.Payload) != string(expected) {
			t.Errorf("frame.Payload = %q, want %q", frame.Payload, expected)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscriber to receive frame")
	}
}

func TestSendWithNoSubscribersStillSucceeds(t *testing.T) {
	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer s.Close()

	pattern := wire.HashPattern("empty")
	key := pattern.Key()
	s.mu.Lock()
	s.subscribed[key] = map[wire.Address]struct{}{}
	s.mu.Unlock()

	n, err := s.Send(context.Background(), pattern, []byte("data"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n != 1 {
		t.Errorf("Send() = %d, want 1", n)
	}
}

func TestSendNotPublisher(t *testing.T) {
	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer s.Close()

	pattern := wire.HashPattern("nobody-published-this")
	if _, err := s.Send(context.Background(), pattern, []byte("x")); err == nil {
		t.Fatal("expected ErrNotPublisher")
	}
}

func TestRecvKeyMissing(t *testing.T) {
	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer s.Close()

	pattern := wire.HashPattern("never-subscribed")
	if _, _, err := s.Recv(pattern); err == nil {
		t.Fatal("expected ErrKeyMissing")
	}
}

func TestRecvEmptyQueueIsNotAnError(t *testing.T) {
	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer s.Close()

	pattern := wire.HashPattern("subscribed-but-empty")
	key := pattern.Key()
	s.mu.Lock()
	s.published[key] = &inboundQueue{}
	s.mu.Unlock()

	_, ok, err := s.Recv(pattern)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if ok {
		t.Fatal("Recv() ok = true, want false for empty queue")
	}
}

func TestRecvIsLIFO(t *testing.T) {
	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer s.Close()

	pattern := wire.HashPattern("lifo")
	key := pattern.Key()
	q := &inboundQueue{}
	q.pushFront([]byte("first"))
	q.pushFront([]byte("second"))
	s.mu.Lock()
	s.published[key] = q
	s.mu.Unlock()

	payload, ok, err := s.Recv(pattern)
	if err != nil || !ok {
		t.Fatalf("Recv: err=%v ok=%v", err, ok)
	}
	if string(payload) != "second" {
		t.Errorf("Recv() = %q, want %q (LIFO: last pushed first)", payload, "second")
	}
}

func TestHandleConnDispatchesSubDataToQueue(t *testing.T) {
	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer s.Close()

	pattern := wire.HashPattern("inbound")
	key := pattern.Key()
	s.mu.Lock()
	s.published[key] = &inboundQueue{}
	s.mu.Unlock()

	client, server := net.Pipe()
	go func() {
		client.Write(wire.Pack(wire.SUB, pattern, []byte("payload")))
		client.Close()
	}()

	if err := s.HandleConn(context.Background(), server); err != nil {
		t.Fatalf("HandleConn: %v", err)
	}

	payload, ok, err := s.Recv(pattern)
	if err != nil || !ok {
		t.Fatalf("Recv: err=%v ok=%v", err, ok)
	}
	if string(payload) != "payload" {
		t.Errorf("Recv() = %q, want %q", payload, "payload")
	}
}

func TestHandleConnCacheAddAndRemove(t *testing.T) {
	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer s.Close()

	pattern := wire.HashPattern("cache")
	key := pattern.Key()
	s.mu.Lock()
	s.subscribed[key] = map[wire.Address]struct{}{}
	s.mu.Unlock()

	addr := wire.Address{Family: wire.IPv4, Host: [8]uint16{127, 0, 0, 1}, Port: 9999}

	addPayload := wire.PackAddress(addr)
	client1, server1 := net.Pipe()
	go func() {
		client1.Write(wire.Pack(wire.PUB|wire.CACHE, pattern, addPayload))
		client1.Close()
	}()
	if err := s.HandleConn(context.Background(), server1); err != nil {
		t.Fatalf("HandleConn add: %v", err)
	}

	s.mu.Lock()
	if _, ok := s.subscribed[key][addr]; !ok {
		s.mu.Unlock()
		t.Fatal("address was not added to subscribed set")
	}
	s.mu.Unlock()

	client2, server2 := net.Pipe()
	go func() {
		client2.Write(wire.Pack(wire.PUB|wire.CACHE|wire.REMOVE, pattern, addPayload))
		client2.Close()
	}()
	if err := s.HandleConn(context.Background(), server2); err != nil {
		t.Fatalf("HandleConn remove: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribed[key][addr]; ok {
		t.Fatal("address was not removed from subscribed set")
	}
}

func TestSubscribeOnlyAllocatesQueueAfterSuccess(t *testing.T) {
	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer s.Close()
	// The broker address points at a port nothing listens on, so Subscribe
	// must fail to dial and leave no trace.
	s.brokerAddr = &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}

	pattern := wire.HashPattern("unreachable")
	if err := s.Subscribe(context.Background(), pattern); err == nil {
		t.Fatal("expected Subscribe to fail against an unreachable broker")
	}

	if _, _, err := s.Recv(pattern); err == nil {
		t.Fatal("expected ErrKeyMissing: failed Subscribe must not allocate a queue")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New(RoleClient)
	if err := s.Bind("127.0.0.1:0", 5); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
