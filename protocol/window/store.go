// Package window implements the sender-side window store and replay
// buffer, and the receiver-side reorder buffer, described in spec.md
// §4.5: the dual store that lets a sender satisfy a retransmission
// request for any sequence number still within twice the window, even
// after its window-store slot has been reused by a newer frame.
package window

import (
	"github.com/google/btree"
)

// Record is a single live frame in the sender's sliding window: its
// sequence number, the fully encoded frame bytes ready to resend, its
// flag (for logging), whether it has been acknowledged, and how many
// times it has been retransmitted.
type Record struct {
	Seq             uint32
	Bytes           []byte
	Flag            uint8
	Acknowledged    bool
	RetransmitCount int
}

// seqItem adapts a bare sequence number to btree.Item so the store can
// keep an ordered index of live (in-window, not-yet-acknowledged)
// sequence numbers. Mirroring PatrickLi2021-IP-TCP's use of
// github.com/google/btree for ordered lookups, this turns "find the
// smallest unacknowledged sequence number" — the operation the sender
// needs each time an RR or a forced acknowledgement slides base — into
// an O(log w) Min() call instead of an O(w) scan of the slot array.
type seqItem uint32

func (a seqItem) Less(than btree.Item) bool {
	return a < than.(seqItem)
}

// Store is the sender's primary-indexed window of live frames. It is
// owned by a single Sender and is never touched from more than one
// goroutine at a time, so it needs no internal locking (see spec.md
// §5).
type Store struct {
	windowSize uint32
	slots      []Record
	occupied   []bool
	live       *btree.BTree
}

// New creates a window store sized to hold windowSize live frames.
func New(windowSize uint32) *Store {
	return &Store{
		windowSize: windowSize,
		slots:      make([]Record, windowSize),
		occupied:   make([]bool, windowSize),
		live:       btree.New(8),
	}
}

// Add inserts a frame into the window, keyed primarily by seq mod
// window_size. If the primary slot is occupied by a different,
// unacknowledged sequence number, an alternate empty-or-acknowledged
// slot is searched for first; if none exists, the occupant is
// overwritten, matching the reference window_add_packet behavior.
func (s *Store) Add(seq uint32, bytes []byte, flag uint8) {
	index := int(seq % s.windowSize)
	if s.occupied[index] && s.slots[index].Seq != seq {
		index = s.findAltSlot(index)
	}
	if s.occupied[index] && s.slots[index].Seq != seq {
		// Evicting a different, still-unacknowledged occupant (no
		// alternate slot was free): it can no longer be retransmitted
		// from the window, only from the replay buffer.
		s.live.Delete(seqItem(s.slots[index].Seq))
	}
	s.slots[index] = Record{Seq: seq, Bytes: bytes, Flag: flag}
	s.occupied[index] = true
	s.live.ReplaceOrInsert(seqItem(seq))
}

func (s *Store) findAltSlot(primary int) int {
	for i := 0; i < int(s.windowSize); i++ {
		alt := (primary + i) % int(s.windowSize)
		if !s.occupied[alt] || s.slots[alt].Acknowledged {
			return alt
		}
	}
	return primary
}

// Get looks up the window record for seq: first by its primary index,
// then by a linear scan of the window on miss, per spec.md §4.5.
func (s *Store) Get(seq uint32) (*Record, bool) {
	index := int(seq % s.windowSize)
	if s.occupied[index] && s.slots[index].Seq == seq {
		return &s.slots[index], true
	}
	for i := 0; i < int(s.windowSize); i++ {
		if s.occupied[i] && s.slots[i].Seq == seq {
			return &s.slots[i], true
		}
	}
	return nil, false
}

// Ack marks seq as acknowledged, if it is present in the window, and
// retires it from the live index.
func (s *Store) Ack(seq uint32) {
	rec, ok := s.Get(seq)
	if !ok || rec.Acknowledged {
		return
	}
	rec.Acknowledged = true
	s.live.Delete(seqItem(seq))
}

// MinLive returns the smallest sequence number still unacknowledged in
// the window, if any.
func (s *Store) MinLive() (uint32, bool) {
	item := s.live.Min()
	if item == nil {
		return 0, false
	}
	return uint32(item.(seqItem)), true
}

// Remove clears the slot holding seq, if present, and retires it from
// the live index. Used when the window slides past a now-acknowledged
// base.
func (s *Store) Remove(seq uint32) {
	index := int(seq % s.windowSize)
	if s.occupied[index] && s.slots[index].Seq == seq {
		s.occupied[index] = false
		s.slots[index] = Record{}
	} else {
		for i := 0; i < int(s.windowSize); i++ {
			if s.occupied[i] && s.slots[i].Seq == seq {
				s.occupied[i] = false
				s.slots[i] = Record{}
				break
			}
		}
	}
	s.live.Delete(seqItem(seq))
}
