package window

import "testing"

func TestStoreAddGetAck(t *testing.T) {
	s := New(4)
	s.Add(0, []byte("a"), 16)
	s.Add(1, []byte("b"), 16)

	rec, ok := s.Get(0)
	if !ok || string(rec.Bytes) != "a" {
		t.Fatalf("Get(0) = %+v, %v", rec, ok)
	}
	if min, ok := s.MinLive(); !ok || min != 0 {
		t.Fatalf("MinLive() = %d, %v, want 0, true", min, ok)
	}

	s.Ack(0)
	if rec, ok := s.Get(0); !ok || !rec.Acknowledged {
		t.Fatalf("Get(0) after Ack = %+v, %v, want acknowledged", rec, ok)
	}
	if min, ok := s.MinLive(); !ok || min != 1 {
		t.Fatalf("MinLive() after ack 0 = %d, %v, want 1, true", min, ok)
	}
}

func TestStoreFindsAlternateSlotWhenPrimaryOccupiedByUnacked(t *testing.T) {
	s := New(2)
	s.Add(0, []byte("zero"), 16) // index 0
	s.Add(2, []byte("two"), 16)  // index 0 too, but 0 is unacked -> alt slot 1

	rec0, ok0 := s.Get(0)
	rec2, ok2 := s.Get(2)
	if !ok0 || string(rec0.Bytes) != "zero" {
		t.Fatalf("Get(0) = %+v, %v, want original record intact", rec0, ok0)
	}
	if !ok2 || string(rec2.Bytes) != "two" {
		t.Fatalf("Get(2) = %+v, %v, want record found via alternate slot", rec2, ok2)
	}
}

func TestStoreOverwritesWhenNoAlternateSlotAvailable(t *testing.T) {
	s := New(1)
	s.Add(0, []byte("zero"), 16)
	s.Add(1, []byte("one"), 16) // only slot, zero still unacked -> forced overwrite

	if _, ok := s.Get(0); ok {
		t.Fatal("Get(0) found a record that should have been overwritten")
	}
	rec1, ok1 := s.Get(1)
	if !ok1 || string(rec1.Bytes) != "one" {
		t.Fatalf("Get(1) = %+v, %v", rec1, ok1)
	}
}

func TestStoreRemove(t *testing.T) {
	s := New(4)
	s.Add(0, []byte("a"), 16)
	s.Remove(0)
	if _, ok := s.Get(0); ok {
		t.Fatal("Get(0) found a record after Remove")
	}
	if _, ok := s.MinLive(); ok {
		t.Fatal("MinLive() found an entry after Remove")
	}
}
