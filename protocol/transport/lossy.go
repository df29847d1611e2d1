package transport

import (
	"math/rand"
	"net"
)

// LossyConn decorates a net.PacketConn with random datagram drop and
// bit-flip corruption on the outbound path, the Go equivalent of the
// reference implementation's sendtoErr_init/error_rate error
// injector: both CLIs (spec.md §6) accept an error_rate argument and
// wire it here rather than into the reliability engines themselves,
// matching the teacher's own pseudo-drop pattern
// (filereceiver.toDrop/droppingChance) applied at the send side
// instead of the receive side, which is where the original rcopy.c /
// server.c actually inject loss.
type LossyConn struct {
	net.PacketConn
	rng       *rand.Rand
	dropRate  float64
	flipRate  float64
	// Drop, if non-nil, overrides the random drop decision for
	// deterministic scenario tests (e.g. "drop exactly seq 2").
	Drop func(b []byte) bool
}

// NewLossy wraps conn so that a fraction dropRate of outbound
// datagrams are silently dropped and a fraction flipRate have a random
// bit flipped before being sent.
func NewLossy(conn net.PacketConn, dropRate, flipRate float64, seed int64) *LossyConn {
	return &LossyConn{
		PacketConn: conn,
		rng:        rand.New(rand.NewSource(seed)),
		dropRate:   dropRate,
		flipRate:   flipRate,
	}
}

// WriteTo applies the drop/corrupt decision before delegating to the
// wrapped connection.
func (c *LossyConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	if c.Drop != nil {
		if c.Drop(b) {
			return len(b), nil
		}
	} else if c.dropRate > 0 && c.rng.Float64() < c.dropRate {
		return len(b), nil
	}

	if c.flipRate > 0 && c.rng.Float64() < c.flipRate && len(b) > 0 {
		corrupted := make([]byte, len(b))
		copy(corrupted, b)
		idx := c.rng.Intn(len(corrupted))
		corrupted[idx] ^= 1 << uint(c.rng.Intn(8))
		return c.PacketConn.WriteTo(corrupted, addr)
	}
	return c.PacketConn.WriteTo(b, addr)
}
