// Package receiver implements the client-side in-order reassembly
// engine described in spec.md §4.4: it takes frames from the session
// endpoint, delivers payload bytes to a sink strictly in sequence,
// buffers out-of-order arrivals, and drives the RR/SREJ feedback the
// sender engine depends on.
package receiver

import (
	"io"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/iocat/rudpcopy/log"
	"github.com/iocat/rudpcopy/protocol"
	"github.com/iocat/rudpcopy/protocol/frame"
	"github.com/iocat/rudpcopy/protocol/transport"
	"github.com/iocat/rudpcopy/protocol/window"
)

// Receiver is a single file-transfer session's receiver engine, owned
// solely by the goroutine that calls Run.
type Receiver struct {
	conn net.PacketConn
	peer net.Addr
	sink io.Writer

	expectedSeq         uint32
	highestReceivedSeq  uint32
	consecutiveTimeouts int
	eofReceived         bool
	finished            bool

	reorder *window.ReorderBuffer

	buf []byte
	log *logrus.Entry
}

// New creates a Receiver bound to conn/peer, writing reassembled bytes
// to sink, with a reorder buffer sized to the negotiated window.
func New(conn net.PacketConn, peer net.Addr, sink io.Writer, windowSize uint32) *Receiver {
	return &Receiver{
		conn:    conn,
		peer:    peer,
		sink:    sink,
		reorder: window.NewReorderBuffer(windowSize),
		buf:     make([]byte, protocol.MaxFrameSize),
		log:     log.For(logrus.Fields{"role": "receiver", "peer": peer}),
	}
}

func (r *Receiver) send(fr frame.Frame) error {
	_, err := r.conn.WriteTo(frame.Encode(fr), r.peer)
	return err
}

func (r *Receiver) sendRR(seq uint32) {
	if err := r.send(frame.NewControl(frame.RR, seq)); err != nil {
		r.log.Warnf("receiver: sending RR(%d): %v", seq, err)
	}
}

func (r *Receiver) sendSREJ(seq uint32) {
	if err := r.send(frame.NewControl(frame.SREJ, seq)); err != nil {
		r.log.Warnf("receiver: sending SREJ(%d): %v", seq, err)
	}
}

// Run drives the receiver's main loop until the transfer finishes,
// either via the EOF/terminal-RR exchange or by exhausting its
// give-up timeout budget.
func (r *Receiver) Run() error {
	for !r.finished {
		n, addr, err := transport.Poll(r.conn, r.buf, protocol.DataTimeout)
		if err != nil {
			if err != transport.ErrTimeout {
				return err
			}
			r.onTimeout()
			continue
		}
		if addr != nil {
			r.peer = addr
		}
		r.onDatagram(r.buf[:n])
	}
	return nil
}

func (r *Receiver) onDatagram(b []byte) {
	fr, err := frame.Decode(b)
	if err != nil {
		r.log.Debugf("receiver: checksum failure, SREJ(%d): %v", r.expectedSeq, err)
		r.sendSREJ(r.expectedSeq)
		return
	}
	r.consecutiveTimeouts = 0

	switch {
	case fr.Flag.IsData():
		r.onData(fr)
	case fr.Flag == frame.EOF:
		r.onEOF(fr)
	default:
		r.log.Debugf("receiver: dropping unexpected flag %v", fr.Flag)
	}
}

func (r *Receiver) deliver(payload []byte) {
	if len(payload) == 0 {
		return
	}
	if _, err := r.sink.Write(payload); err != nil {
		r.log.Warnf("receiver: writing to sink: %v", err)
	}
}

// onData implements step 2's DATA/RESENT_SREJ/RESENT_TIMEOUT handling:
// in-order delivery with reorder-buffer drain, out-of-order buffering,
// or duplicate re-acknowledgement.
func (r *Receiver) onData(fr frame.Frame) {
	if fr.Seq > r.highestReceivedSeq {
		r.highestReceivedSeq = fr.Seq
	}

	switch {
	case fr.Seq == r.expectedSeq:
		r.deliver(fr.Payload)
		r.sendRR(fr.Seq)
		r.expectedSeq++
		for {
			slot, ok := r.reorder.Get(r.expectedSeq)
			if !ok {
				break
			}
			r.deliver(slot.Payload)
			r.sendRR(slot.Seq)
			r.reorder.Clear(slot.Seq)
			r.expectedSeq++
		}
	case fr.Seq > r.expectedSeq:
		r.reorder.Put(fr.Seq, fr.Payload, uint8(fr.Flag))
		r.sendSREJ(r.expectedSeq)
	default:
		if r.expectedSeq > 0 {
			r.sendRR(r.expectedSeq - 1)
		}
	}
}

// onEOF implements step 2's EOF handling: deliver any trailing
// payload, send the terminal RR three times back-to-back, and mark the
// transfer finished.
func (r *Receiver) onEOF(fr frame.Frame) {
	r.deliver(fr.Payload)
	var terminal uint32
	if r.expectedSeq > 0 {
		terminal = r.expectedSeq - 1
	}
	for i := 0; i < 3; i++ {
		r.sendRR(terminal)
	}
	r.eofReceived = true
	r.finished = true
	r.log.Infof("receiver: EOF received, terminal RR(%d) sent", terminal)
}

// onTimeout implements step 3: if EOF has already been seen, finish;
// otherwise re-nudge the sender with RR(highestReceivedSeq) and give up
// with one last SREJ after ReceiverGiveUpLimit consecutive timeouts.
func (r *Receiver) onTimeout() {
	if r.eofReceived {
		r.finished = true
		return
	}
	r.sendRR(r.highestReceivedSeq)
	r.consecutiveTimeouts++
	if r.consecutiveTimeouts >= protocol.ReceiverGiveUpLimit {
		r.log.Warnf("receiver: %d consecutive timeouts, giving up after one last SREJ(%d)", r.consecutiveTimeouts, r.highestReceivedSeq+1)
		r.sendSREJ(r.highestReceivedSeq + 1)
		r.finished = true
	}
}
