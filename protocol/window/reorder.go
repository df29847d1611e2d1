package window

// ReorderSlot holds one out-of-order frame pending in-order delivery
// to the sink.
type ReorderSlot struct {
	Seq      uint32
	Payload  []byte
	Flag     uint8
	Occupied bool
}

// ReorderBuffer is the receiver-side counterpart of Store: a slot
// array indexed by seq mod window_size, owned solely by the receiver
// session. Unlike the sender's window store it carries no ordered
// index — the receiver only ever needs to test the single next
// expected sequence number, not scan for a minimum, so the extra
// bookkeeping a btree would add has no operation to serve here.
type ReorderBuffer struct {
	windowSize uint32
	slots      []ReorderSlot
}

// NewReorderBuffer creates a reorder buffer sized to the negotiated
// window.
func NewReorderBuffer(windowSize uint32) *ReorderBuffer {
	return &ReorderBuffer{
		windowSize: windowSize,
		slots:      make([]ReorderSlot, windowSize),
	}
}

// Put stores an out-of-order frame at slot seq mod window_size,
// overwriting any prior occupant with a smaller sequence number (per
// spec.md §4.4: a later frame reusing an earlier frame's slot always
// wins, since the earlier one would have already been delivered by
// the time the slot is revisited).
func (rb *ReorderBuffer) Put(seq uint32, payload []byte, flag uint8) {
	index := seq % rb.windowSize
	slot := &rb.slots[index]
	if slot.Occupied && slot.Seq > seq {
		return
	}
	*slot = ReorderSlot{Seq: seq, Payload: payload, Flag: flag, Occupied: true}
}

// Get returns the buffered frame for seq, if its slot currently holds
// it.
func (rb *ReorderBuffer) Get(seq uint32) (ReorderSlot, bool) {
	slot := rb.slots[seq%rb.windowSize]
	if slot.Occupied && slot.Seq == seq {
		return slot, true
	}
	return ReorderSlot{}, false
}

// Clear empties the slot for seq once it has been delivered to the
// sink.
func (rb *ReorderBuffer) Clear(seq uint32) {
	index := seq % rb.windowSize
	if rb.slots[index].Seq == seq {
		rb.slots[index] = ReorderSlot{}
	}
}
