package transport

import (
	"io"
	"net"
	"sync"
	"time"
)

// pipeAddr is a bare string net.Addr for the in-memory pipe, used so
// scenario tests don't need real sockets to exercise the engines
// end-to-end.
type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

type pipePacket struct {
	b    []byte
	from net.Addr
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "transport: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// PipeConn is an in-memory net.PacketConn backed by a channel to a
// fixed peer. NewPipePair returns two connected ends.
type PipeConn struct {
	addr   net.Addr
	peer   *PipeConn
	recv   chan pipePacket
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	deadline time.Time
}

// NewPipePair creates two PipeConns, each other's sole peer, addressed
// by the given labels.
func NewPipePair(addrA, addrB string) (*PipeConn, *PipeConn) {
	a := &PipeConn{addr: pipeAddr(addrA), recv: make(chan pipePacket, 256), closed: make(chan struct{})}
	b := &PipeConn{addr: pipeAddr(addrB), recv: make(chan pipePacket, 256), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// WriteTo ignores addr (a PipeConn only ever has the one peer it was
// paired with) and delivers b to the peer's receive queue.
func (c *PipeConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case c.peer.recv <- pipePacket{b: cp, from: c.addr}:
		return len(b), nil
	case <-c.peer.closed:
		return 0, io.ErrClosedPipe
	}
}

// ReadFrom blocks until a datagram arrives, the connection is closed,
// or the current read deadline elapses.
func (c *PipeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	c.mu.Lock()
	dl := c.deadline
	c.mu.Unlock()

	var timeoutCh <-chan time.Time
	if !dl.IsZero() {
		d := time.Until(dl)
		if d <= 0 {
			select {
			case p := <-c.recv:
				return copy(b, p.b), p.from, nil
			default:
				return 0, nil, timeoutError{}
			}
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case p := <-c.recv:
		return copy(b, p.b), p.from, nil
	case <-timeoutCh:
		return 0, nil, timeoutError{}
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

// Close tears down this end. It's idempotent.
func (c *PipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// LocalAddr returns this end's address label.
func (c *PipeConn) LocalAddr() net.Addr { return c.addr }

// SetDeadline sets both the read and (no-op) write deadline.
func (c *PipeConn) SetDeadline(t time.Time) error { return c.SetReadDeadline(t) }

// SetReadDeadline sets the deadline ReadFrom respects.
func (c *PipeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

// SetWriteDeadline is a no-op: writes to an in-memory pipe never
// block on the network.
func (c *PipeConn) SetWriteDeadline(time.Time) error { return nil }
