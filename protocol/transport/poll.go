// Package transport wraps the poll-with-timeout primitive both engines
// suspend on (spec.md §5), a lossy-network decorator used for the CLIs'
// error_rate argument, and an in-memory net.PacketConn used by the
// engine, handshake and scenario tests. Address resolution and socket
// creation themselves stay in the client and server packages — per
// spec.md §1 those are external collaborators, not part of the
// reliability protocol.
package transport

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is returned by Poll when no datagram arrives within the
// requested timeout.
var ErrTimeout = errors.New("transport: poll timed out")

// Poll waits up to timeout for a single datagram on conn, writing it
// into buf. timeout == 0 performs a non-blocking check: if nothing is
// already queued it returns ErrTimeout immediately rather than
// blocking. This is the one suspension point every engine loop
// funnels through, per spec.md §5's pollCall(timeout_ms) abstraction.
func Poll(conn net.PacketConn, buf []byte, timeout time.Duration) (int, net.Addr, error) {
	if timeout <= 0 {
		conn.SetReadDeadline(time.Now())
	} else {
		conn.SetReadDeadline(time.Now().Add(timeout))
	}
	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return 0, nil, ErrTimeout
		}
		return 0, nil, err
	}
	return n, addr, nil
}
