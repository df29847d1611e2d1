// Package frame implements the wire codec for rudpcopy's 7-byte frame
// header: encode/decode, the Internet checksum, and the RR/SREJ
// redundant-seq convention. Checksum computation is delegated to
// google/netstack's tcpip/header package (the same one
// PatrickLi2021-IP-TCP's ComputeChecksum uses for IPv4 headers)
// rather than hand-rolled, since the algorithm is identical: a
// ones'-complement sum, folded and complemented.
package frame

import (
	"encoding/binary"

	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"

	"github.com/iocat/rudpcopy/protocol"
)

// Frame is a single rudpcopy PDU: a 7-byte header plus 0..1400 bytes
// of payload.
type Frame struct {
	Seq     uint32
	Flag    Flag
	Payload []byte
}

var (
	// ErrTooShort is returned by Decode for any byte slice shorter
	// than the header.
	ErrTooShort = errors.New("frame: datagram shorter than header")
	// ErrTooLarge is returned by Decode for any byte slice larger than
	// protocol.MaxFrameSize.
	ErrTooLarge = errors.New("frame: datagram exceeds max frame size")
	// ErrCorrupt is returned by Decode when the checksum does not
	// verify. Per spec, a corrupt frame is dropped and not otherwise
	// inspected.
	ErrCorrupt = errors.New("frame: checksum mismatch")
)

// checksum computes the Internet checksum of buf, which must already
// have its checksum field (bytes [4:6]) zeroed.
func checksum(buf []byte) uint16 {
	sum := header.Checksum(buf, 0)
	return sum ^ 0xffff
}

// Encode lays out fr's fields in network byte order with the checksum
// field zeroed, computes the Internet checksum over the whole frame,
// and writes it back into the checksum field.
func Encode(fr Frame) []byte {
	buf := make([]byte, protocol.HeaderSize+len(fr.Payload))
	binary.BigEndian.PutUint32(buf[0:4], fr.Seq)
	buf[6] = byte(fr.Flag)
	copy(buf[protocol.HeaderSize:], fr.Payload)
	binary.BigEndian.PutUint16(buf[4:6], checksum(buf))
	return buf
}

// Decode parses a received datagram into a Frame. It rejects datagrams
// shorter than the header or longer than the max frame size, and
// verifies the checksum by recomputing it with the checksum field
// treated as zero. A failing checksum yields ErrCorrupt and the frame
// is not otherwise inspected, per spec.
func Decode(b []byte) (Frame, error) {
	if len(b) < protocol.HeaderSize {
		return Frame{}, ErrTooShort
	}
	if len(b) > protocol.MaxFrameSize {
		return Frame{}, ErrTooLarge
	}
	received := binary.BigEndian.Uint16(b[4:6])

	verify := make([]byte, len(b))
	copy(verify, b)
	verify[4], verify[5] = 0, 0
	if checksum(verify) != received {
		return Frame{}, ErrCorrupt
	}

	payload := make([]byte, len(b)-protocol.HeaderSize)
	copy(payload, b[protocol.HeaderSize:])
	return Frame{
		Seq:     binary.BigEndian.Uint32(b[0:4]),
		Flag:    Flag(b[6]),
		Payload: payload,
	}, nil
}

// NewControl builds an RR or SREJ frame acknowledging ackedSeq. Per
// spec.md §4.1, control frames carry their acknowledged sequence
// number both in the header seq field and, redundantly, as a 4-byte
// big-endian value at the start of the payload — cheap protection
// against the checksum coincidentally passing over a frame whose seq
// field was itself corrupted to zero.
func NewControl(flag Flag, ackedSeq uint32) Frame {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, ackedSeq)
	return Frame{Seq: ackedSeq, Flag: flag, Payload: payload}
}

// AckedSeq extracts the redundant acknowledged-sequence payload of an
// RR/SREJ frame. ok is false if fr isn't a control frame or its
// payload is too short to carry the redundant value.
func (fr Frame) AckedSeq() (seq uint32, ok bool) {
	if !fr.Flag.IsControl() || len(fr.Payload) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(fr.Payload[:4]), true
}

// ValidDuplicate reports whether a control frame's redundant payload
// seq agrees with its header seq. Call sites treat a mismatch the same
// as if the frame were simply absent: the checksum passed but the
// frame is self-inconsistent, so it's safer to ignore it than act on
// it.
func (fr Frame) ValidDuplicate() bool {
	seq, ok := fr.AckedSeq()
	return ok && seq == fr.Seq
}
