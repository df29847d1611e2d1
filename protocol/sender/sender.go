// Package sender implements the server-side sliding-window engine
// described in spec.md §4.3: it pulls bytes from a file source, frames
// them as DATA, feeds the sliding window, and retransmits on timeout or
// selective-reject until the source is exhausted and the client has
// acknowledged EOF.
package sender

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

// Sender is a single file-transfer session's sender engine. It is
// created fresh per session and must not be shared across goroutines
// (see spec.md §5): all of its state is private to the single
// goroutine that calls Run.
type Sender struct {
	conn net.PacketConn
	peer net.Addr
	src  io.Reader

	windowSize uint32
	bufferSize uint32

	base       uint32
	nextSeq    uint32
	eofReached bool

	win    *window.Store
	replay *window.ReplayBuffer

	lastBase     uint32
	stallCounter int

	dupRRValue uint32
	dupRRCount int

	consecutiveTimeouts int

	buf []byte
	log *logrus.Entry
}

// New creates a Sender bound to conn/peer, reading file content from
// src, with the window and buffer sizes negotiated at handshake time.
func New(conn net.PacketConn, peer net.Addr, src io.Reader, windowSize, bufferSize uint32) *Sender {
	return &Sender{
		conn:       conn,
		peer:       peer,
		src:        src,
		windowSize: windowSize,
		bufferSize: bufferSize,
		win:        window.New(windowSize),
		replay:     window.NewReplayBuffer(windowSize, bufferSize),
		buf:        make([]byte, protocol.MaxFrameSize),
		log:        log.For(logrus.Fields{"role": "sender", "peer": peer}),
	}
}

// Run drives the sender's main loop to completion: Fill, Wait, Process
// control frames, Timeout, repeated until the window has drained and
// the source is exhausted, then Terminate. It returns once the session
// has ended, either cleanly or by unilateral close.
func (s *Sender) Run() error {
	for !(s.base == s.nextSeq && s.eofReached) {
		if err := s.fill(); err != nil {
			return err
		}
		timedOut, err := s.wait()
		if err != nil {
			return err
		}
		if timedOut {
			s.onTimeout()
		}
	}
	return s.terminate()
}

func (s *Sender) send(b []byte) error {
	_, err := s.conn.WriteTo(b, s.peer)
	return err
}

// fill reads from the source and feeds the window until it is full or
// the source is exhausted, draining any pending control frames after
// every send.
func (s *Sender) fill() error {
	for s.nextSeq-s.base < s.windowSize && !s.eofReached {
		chunk := make([]byte, s.bufferSize)
		n, err := s.src.Read(chunk)
		if n > 0 {
			payload := chunk[:n]
			if werr := s.replay.Write(s.nextSeq, payload); werr != nil {
				s.log.Warnf("sender: replay buffer write for seq %d: %v", s.nextSeq, werr)
			}
			encoded := frame.Encode(frame.Frame{Seq: s.nextSeq, Flag: frame.DATA, Payload: payload})
			s.win.Add(s.nextSeq, encoded, uint8(frame.DATA))
			if werr := s.send(encoded); werr != nil {
				return werr
			}
			s.nextSeq++
			s.drainControl()
		}
		if err != nil {
			if err != io.EOF {
				s.log.Warnf("sender: reading source: %v", err)
			}
			s.eofReached = true
			return nil
		}
		if n == 0 {
			s.eofReached = true
			return nil
		}
	}
	return nil
}

// wait implements spec.md §4.3 step 2: a non-blocking poll when the
// window isn't full, a bounded blocking poll when it is, and the
// stall-counter deadlock breaker that forces a timeout after three
// wait iterations stuck at the same base.
func (s *Sender) wait() (timedOut bool, err error) {
	full := s.nextSeq-s.base >= s.windowSize
	if !full {
		n, addr, perr := transport.Poll(s.conn, s.buf, 0)
		if perr != nil {
			if perr == transport.ErrTimeout {
				return false, nil
			}
			return false, perr
		}
		s.processDatagram(s.buf[:n], addr)
		s.drainControl()
		return false, nil
	}

	if s.base == s.lastBase {
		s.stallCounter++
	} else {
		s.stallCounter = 0
		s.lastBase = s.base
	}
	if s.stallCounter >= protocol.DeadlockStallLimit {
		s.log.Debugf("sender: deadlock breaker firing at base %d", s.base)
		s.stallCounter = 0
		return true, nil
	}

	n, addr, perr := transport.Poll(s.conn, s.buf, protocol.SegmentTimeout)
	if perr != nil {
		if perr == transport.ErrTimeout {
			return true, nil
		}
		return false, perr
	}
	s.processDatagram(s.buf[:n], addr)
	s.drainControl()
	return false, nil
}

// drainControl processes any further control frames already queued on
// the socket without blocking, so a burst of RRs/SREJs doesn't wait
// for the next main-loop iteration to be handled.
func (s *Sender) drainControl() {
	for {
		n, addr, err := transport.Poll(s.conn, s.buf, 0)
		if err != nil {
			if err != transport.ErrTimeout {
				s.log.Warnf("sender: error draining control frames: %v", err)
			}
			return
		}
		s.processDatagram(s.buf[:n], addr)
	}
}

func (s *Sender) processDatagram(b []byte, _ net.Addr) {
	fr, err := frame.Decode(b)
	if err != nil {
		s.log.Debugf("sender: dropping corrupt control frame: %v", err)
		return
	}
	switch fr.Flag {
	case frame.RR:
		if a, ok := fr.AckedSeq(); ok && fr.ValidDuplicate() {
			s.processRR(a)
		}
	case frame.SREJ:
		if sq, ok := fr.AckedSeq(); ok && fr.ValidDuplicate() {
			s.processSREJ(sq)
		}
	default:
		s.log.Debugf("sender: dropping unexpected control flag %v", fr.Flag)
	}
}

// processRR implements step 3's RR handling: acknowledge every
// in-window frame up to a, slide base past the contiguous acknowledged
// run, and detect the "a == base-1 three times in a row" fast
// retransmit hint.
func (s *Sender) processRR(a uint32) {
	for seq := s.base; seq <= a && seq < s.nextSeq; seq++ {
		s.win.Ack(seq)
	}
	before := s.base
	s.advanceBase()
	if s.base != before {
		s.dupRRValue, s.dupRRCount = 0, 0
		s.consecutiveTimeouts = 0
		return
	}
	if s.base == 0 || a+1 != s.base {
		return
	}
	if s.dupRRCount > 0 && s.dupRRValue == a {
		s.dupRRCount++
	} else {
		s.dupRRValue, s.dupRRCount = a, 1
	}
	if s.dupRRCount >= protocol.DupAckFastRetransmitLimit {
		s.log.Debugf("sender: fast retransmit hint on %d duplicate RR(%d)", s.dupRRCount, a)
		s.retransmit(s.base, frame.ResentTimeout)
		s.dupRRCount = 0
	}
}

// processSREJ implements step 3's SREJ handling: serve from the window
// store first (flag RESENT_SREJ), fall back to the replay buffer (flag
// RESENT_TIMEOUT), or drop if neither has the sequence number.
func (s *Sender) processSREJ(seq uint32) {
	if rec, ok := s.win.Get(seq); ok {
		if decoded, err := frame.Decode(rec.Bytes); err == nil {
			rec.RetransmitCount++
			s.send(frame.Encode(frame.Frame{Seq: seq, Flag: frame.ResentSREJ, Payload: decoded.Payload}))
			return
		}
	}
	if payload, err := s.replay.Read(seq); err == nil {
		s.send(frame.Encode(frame.Frame{Seq: seq, Flag: frame.ResentTimeout, Payload: payload}))
		return
	}
	s.log.Debugf("sender: SREJ(%d) but frame not in window or replay buffer, dropping", seq)
}

// onTimeout implements step 4: retransmit the frame at base, force-ack
// it after MaxRetransmit retries, and force-ack regardless after too
// many consecutive timeouts without any base movement.
func (s *Sender) onTimeout() {
	s.consecutiveTimeouts++
	s.retransmit(s.base, frame.ResentTimeout)

	if rec, ok := s.win.Get(s.base); ok && rec.RetransmitCount >= protocol.MaxRetransmit {
		s.log.Warnf("sender: seq %d hit MaxRetransmit, forcing forward progress", s.base)
		s.forceAck(s.base)
		return
	}
	if s.consecutiveTimeouts > protocol.StuckTimeoutLimit {
		s.log.Warnf("sender: %d consecutive timeouts with no base movement, forcing slide past %d", s.consecutiveTimeouts, s.base)
		s.forceAck(s.base)
	}
}

// retransmit resends seq under the given flag, reconstructing its
// payload from the window store and falling back to the replay buffer
// if the window slot has since been reused.
func (s *Sender) retransmit(seq uint32, flag frame.Flag) {
	payload, ok := s.reconstructPayload(seq)
	if !ok {
		s.log.Debugf("sender: cannot reconstruct seq %d for retransmission", seq)
		return
	}
	if rec, ok := s.win.Get(seq); ok {
		rec.RetransmitCount++
	}
	s.send(frame.Encode(frame.Frame{Seq: seq, Flag: flag, Payload: payload}))
}

func (s *Sender) reconstructPayload(seq uint32) ([]byte, bool) {
	if rec, ok := s.win.Get(seq); ok {
		if decoded, err := frame.Decode(rec.Bytes); err == nil {
			return decoded.Payload, true
		}
	}
	if payload, err := s.replay.Read(seq); err == nil {
		return payload, true
	}
	return nil, false
}

// advanceBase slides base up to the smallest still-unacknowledged
// sequence number in the window (or nextSeq, if none remain),
// releasing every slot it passes along the way.
func (s *Sender) advanceBase() {
	target := s.nextSeq
	if min, ok := s.win.MinLive(); ok {
		target = min
	}
	for s.base < target {
		s.win.Remove(s.base)
		s.base++
	}
}

// forceAck marks seq acknowledged (even without a confirming RR) and
// slides base past it, the forced-forward-progress mechanism spec.md
// §4.3/§9 trades for completeness in the face of adversarial loss.
func (s *Sender) forceAck(seq uint32) {
	if _, ok := s.win.Get(seq); ok {
		s.win.Ack(seq)
	}
	if seq == s.base {
		s.base++
		s.advanceBase()
	}
	s.consecutiveTimeouts = 0
}

// terminate implements step 5: send EOF and wait for a terminal RR,
// retrying and relaxing the acceptance criterion as attempts mount,
// closing unilaterally if the client never responds.
func (s *Sender) terminate() error {
	eofSeq := s.nextSeq
	encoded := frame.Encode(frame.Frame{Seq: eofSeq, Flag: frame.EOF})

	for attempt := 1; attempt <= protocol.UnilateralCloseAfterAttempt; attempt++ {
		if err := s.send(encoded); err != nil {
			return err
		}
		n, _, err := transport.Poll(s.conn, s.buf, protocol.SegmentTimeout)
		if err != nil {
			if err == transport.ErrTimeout {
				s.log.Debugf("sender: EOF attempt %d timed out", attempt)
				continue
			}
			return err
		}
		reply, err := frame.Decode(s.buf[:n])
		if err != nil || reply.Flag != frame.RR {
			continue
		}
		a, ok := reply.AckedSeq()
		if !ok {
			continue
		}
		if eofSeq == 0 || a >= eofSeq-1 {
			s.log.Infof("sender: transfer complete, terminal RR(%d)", a)
			return nil
		}
		if attempt >= protocol.AcceptAnyRRFromAttempt {
			s.log.Infof("sender: accepting RR(%d) as terminal on attempt %d", a, attempt)
			return nil
		}
	}
	s.log.Warnf("sender: no terminal RR after %d EOF attempts, closing session unilaterally", protocol.UnilateralCloseAfterAttempt)
	return nil
}
