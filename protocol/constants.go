// Package protocol holds the wire-level constants shared by every
// layer of rudpcopy: frame sizes, flag values, and the retry/timeout
// budgets that drive the sender and receiver state machines. Values
// match the reference implementation's protocol.h bit for bit.
package protocol

import "time"

const (
	// HeaderSize is the fixed size, in bytes, of a frame header:
	// 4-byte seq + 2-byte checksum + 1-byte flag.
	HeaderSize = 7
	// MaxDataSize is the largest payload a single frame may carry.
	MaxDataSize = 1400
	// MaxFrameSize is the largest frame rudpcopy will ever produce or
	// accept.
	MaxFrameSize = HeaderSize + MaxDataSize

	// MaxFilenameLen is the longest filename the handshake will carry,
	// not counting the trailing NUL.
	MaxFilenameLen = 100
	// InitPayloadSize is the exact wire size of a FILENAME frame's
	// payload: a 101-byte null-terminated name field, a 4-byte
	// window_size, and a 4-byte buffer_size.
	InitPayloadSize = 101 + 4 + 4

	// MaxWindowSize is the exclusive upper bound on window_size
	// accepted at handshake time (2^30, per spec).
	MaxWindowSize = 1 << 30

	// MaxRetransmit bounds how many times the sender will retry a
	// single stuck data frame before forcing forward progress, and how
	// many times a session resends FILENAME_RESP("OK"). EOF resends are
	// bounded by UnilateralCloseAfterAttempt instead.
	MaxRetransmit = 10
	// InitRetryLimit bounds how many times the client will resend an
	// unanswered FILENAME frame before giving up.
	InitRetryLimit = 10

	// HandshakeTimeout is how long the client waits for a
	// FILENAME_RESP before retrying the FILENAME frame.
	HandshakeTimeout = 5000 * time.Millisecond
	// MigrationTimeout is how long a freshly spawned session waits,
	// after each FILENAME_RESP("OK"), for any datagram on its new
	// ephemeral endpoint before resending.
	MigrationTimeout = 1000 * time.Millisecond
	// SegmentTimeout is the sender's retransmission timeout for data
	// and EOF frames.
	SegmentTimeout = 1000 * time.Millisecond
	// DataTimeout is how long the receiver waits for the next
	// datagram before re-acking / giving up.
	DataTimeout = 10000 * time.Millisecond

	// DeadlockStallLimit is the number of consecutive full-window wait
	// iterations with no base movement before the sender forces a
	// timeout regardless of what poll reports.
	DeadlockStallLimit = 3
	// DupAckFastRetransmitLimit is how many times in a row the sender
	// must see RR(base-1) before treating it as a fast-retransmit
	// hint.
	DupAckFastRetransmitLimit = 3
	// StuckTimeoutLimit is how many consecutive timeouts without any
	// base movement force an unconditional slide.
	StuckTimeoutLimit = 10
	// ReceiverGiveUpLimit is how many consecutive receive timeouts the
	// receiver tolerates before emitting a last-ditch SREJ and giving
	// up.
	ReceiverGiveUpLimit = 15

	// MissingFileRetries is how many times a session retries the
	// FILENAME_RESP("File not found") before tearing itself down.
	MissingFileRetries = 3
	// EOFTermination attempt thresholds (see Sender.terminate):
	// attempts >= AcceptAnyRRFromAttempt accept any valid RR as the
	// terminal ack; attempts > UnilateralCloseAfterAttempt give up and
	// close regardless of a reply.
	AcceptAnyRRFromAttempt  = 4
	UnilateralCloseAfterAttempt = 6
)
