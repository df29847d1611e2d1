package window

import (
	"bytes"
	"testing"
)

func TestReplayBufferWriteReadRoundTrip(t *testing.T) {
	rb := NewReplayBuffer(2, 4) // capacity = 16 bytes
	for seq := uint32(0); seq < 3; seq++ {
		payload := bytes.Repeat([]byte{byte('A' + seq)}, 4)
		if err := rb.Write(seq, payload); err != nil {
			t.Fatalf("Write(%d): %v", seq, err)
		}
	}
	for seq := uint32(0); seq < 3; seq++ {
		got, err := rb.Read(seq)
		if err != nil {
			t.Fatalf("Read(%d): %v", seq, err)
		}
		want := bytes.Repeat([]byte{byte('A' + seq)}, 4)
		if !bytes.Equal(got, want) {
			t.Fatalf("Read(%d) = %q, want %q", seq, got, want)
		}
	}
}

func TestReplayBufferEvictsOldestOnOverflow(t *testing.T) {
	rb := NewReplayBuffer(1, 4) // capacity = 8 bytes = 2 packets
	rb.Write(0, []byte("AAAA"))
	rb.Write(1, []byte("BBBB"))
	rb.Write(2, []byte("CCCC")) // evicts seq 0

	if _, err := rb.Read(0); err != ErrSeqNotStored {
		t.Fatalf("Read(0) after eviction = %v, want ErrSeqNotStored", err)
	}
	got, err := rb.Read(2)
	if err != nil || !bytes.Equal(got, []byte("CCCC")) {
		t.Fatalf("Read(2) = %q, %v, want CCCC, nil", got, err)
	}
}

func TestReplayBufferClampsShortTailFrame(t *testing.T) {
	rb := NewReplayBuffer(2, 4)
	rb.Write(0, []byte("AAAA"))
	rb.Write(1, []byte("BB")) // final, undersized frame (EOF-adjacent tail)

	got, err := rb.Read(1)
	if err != nil {
		t.Fatalf("Read(1): %v", err)
	}
	if !bytes.Equal(got, []byte("BB")) {
		t.Fatalf("Read(1) = %q, want %q", got, "BB")
	}
}

func TestReplayBufferRejectsOutOfRangeSeq(t *testing.T) {
	rb := NewReplayBuffer(1, 4)
	rb.Write(0, []byte("AAAA"))
	if _, err := rb.Read(1); err != ErrSeqNotStored {
		t.Fatalf("Read(1) = %v, want ErrSeqNotStored", err)
	}
}
