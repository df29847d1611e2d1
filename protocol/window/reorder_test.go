package window

import "testing"

func TestReorderBufferPutGetClear(t *testing.T) {
	rb := NewReorderBuffer(4)
	rb.Put(2, []byte("c"), 16)

	slot, ok := rb.Get(2)
	if !ok || string(slot.Payload) != "c" {
		t.Fatalf("Get(2) = %+v, %v", slot, ok)
	}
	if _, ok := rb.Get(6); ok {
		t.Fatal("Get(6) found a slot that was never written")
	}

	rb.Clear(2)
	if _, ok := rb.Get(2); ok {
		t.Fatal("Get(2) found a slot after Clear")
	}
}

func TestReorderBufferNewerSeqWinsSameSlot(t *testing.T) {
	rb := NewReorderBuffer(4)
	rb.Put(2, []byte("old"), 16)
	rb.Put(6, []byte("new"), 16) // same slot (2 mod 4 == 6 mod 4), newer seq

	slot, ok := rb.Get(6)
	if !ok || string(slot.Payload) != "new" {
		t.Fatalf("Get(6) = %+v, %v, want new", slot, ok)
	}
}

func TestReorderBufferOlderSeqDoesNotEvictNewer(t *testing.T) {
	rb := NewReorderBuffer(4)
	rb.Put(6, []byte("new"), 16)
	rb.Put(2, []byte("old"), 16) // stale, should not overwrite

	slot, ok := rb.Get(6)
	if !ok || string(slot.Payload) != "new" {
		t.Fatalf("Get(6) = %+v, %v, want new to survive", slot, ok)
	}
}
