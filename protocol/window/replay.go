package window

import "github.com/pkg/errors"

// ReplayBuffer is a byte-addressed ring that stores raw file payloads
// long enough to reconstruct any data frame still within twice the
// current window, even after its window-store slot has been reused.
// It is a direct Go port of original_source/circular_buffer.c: slices
// and copy() stand in for the C version's malloc'd buffer and memcpy.
type ReplayBuffer struct {
	data        []byte
	bufferSize  uint32
	head, tail  int
	bytesStored int
	startSeq    uint32
	endSeq      uint32
}

// NewReplayBuffer creates a replay buffer sized to hold
// 2*windowSize*bufferSize bytes, per spec.md §3/§9.
func NewReplayBuffer(windowSize, bufferSize uint32) *ReplayBuffer {
	return &ReplayBuffer{
		data:       make([]byte, 2*int(windowSize)*int(bufferSize)),
		bufferSize: bufferSize,
	}
}

// ErrReplayFull is returned by Write if, even after evicting every
// stored packet, payload does not fit (only possible if payload is
// larger than the buffer's total capacity).
var ErrReplayFull = errors.New("window: replay buffer too small for payload")

// Write appends payload (the raw data associated with seq) to the
// ring, evicting the oldest packet-sized regions if necessary to make
// room.
func (rb *ReplayBuffer) Write(seq uint32, payload []byte) error {
	size := len(rb.data)
	if rb.bytesStored == 0 {
		// An empty ring starts covering sequence numbers at seq.
		rb.startSeq = seq
		rb.endSeq = seq
	}
	for rb.bytesStored+len(payload) > size && rb.bytesStored > 0 {
		evict := int(rb.bufferSize)
		if evict > rb.bytesStored {
			evict = rb.bytesStored
		}
		rb.head = (rb.head + evict) % size
		rb.bytesStored -= evict
		rb.startSeq++
	}
	if rb.bytesStored+len(payload) > size {
		return ErrReplayFull
	}

	if rb.tail+len(payload) <= size {
		copy(rb.data[rb.tail:], payload)
	} else {
		firstChunk := size - rb.tail
		copy(rb.data[rb.tail:], payload[:firstChunk])
		copy(rb.data, payload[firstChunk:])
	}
	rb.tail = (rb.tail + len(payload)) % size
	rb.bytesStored += len(payload)
	if seq >= rb.endSeq {
		rb.endSeq = seq + 1
	}
	return nil
}

// ErrSeqNotStored is returned by Read when seq falls outside
// [startSeq, endSeq).
var ErrSeqNotStored = errors.New("window: sequence number not in replay buffer")

// Read reconstructs the payload stored for seq. The returned slice is
// clamped to the number of bytes actually stored for the tail frame
// (the most recently written packet may be shorter than bufferSize).
func (rb *ReplayBuffer) Read(seq uint32) ([]byte, error) {
	if seq < rb.startSeq || seq >= rb.endSeq {
		return nil, ErrSeqNotStored
	}
	size := len(rb.data)
	offset := int(seq-rb.startSeq) * int(rb.bufferSize)
	position := (rb.head + offset) % size

	length := int(rb.bufferSize)
	if seq == rb.endSeq-1 {
		inLastPacket := rb.bytesStored - offset
		if inLastPacket < length {
			length = inLastPacket
		}
	}
	if length <= 0 {
		return nil, nil
	}

	out := make([]byte, length)
	if position+length <= size {
		copy(out, rb.data[position:position+length])
	} else {
		firstChunk := size - position
		copy(out, rb.data[position:])
		copy(out[firstChunk:], rb.data[:length-firstChunk])
	}
	return out, nil
}
