// Package netio provides the small amount of raw-socket glue shared by
// the socket and broker packages: dialing a control or data connection,
// sending one frame, and reading one frame back.
package netio

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/aussiebroadwan/tmq/pkg/wire"
)

// dialer is used for every outbound control/data connection TMQ opens.
// Its timeout is deliberately short: peers are expected to be reachable
// on the local network, and a slow destination should not stall fan-out
// to the others.
var dialer = &net.Dialer{Timeout: 2 * time.Second}

// SendFrame opens a fresh TCP connection to addr, writes one packed
// frame, and closes the connection. This mirrors the original's
// connect/sendall/close sequence used for every control and data message.
func SendFrame(ctx context.Context, addr *net.TCPAddr, typ wire.Type, pattern wire.Pattern, payload []byte) error {
	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return fmt.Errorf("netio: dial %s: %w", addr, err)
	}
	defer conn.Close()

	packed := wire.Pack(typ, pattern, payload)
	if _, err := conn.Write(packed); err != nil {
		return fmt.Errorf("netio: send to %s: %w", addr, err)
	}
	return nil
}

// ReadFrame reads up to max bytes from conn and unpacks exactly one
// frame. It does not loop to fill a declared length across multiple
// reads: TMQ frames are small (2056 bytes max) and sent with a single
// Write on the other end, so one Read is expected to return the whole
// frame, matching the original's single sock_recv call.
func ReadFrame(conn net.Conn, max int) (wire.Frame, error) {
	buf := make([]byte, max)
	n, err := conn.Read(buf)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("netio: read: %w", err)
	}
	return wire.Unpack(buf[:n])
}
