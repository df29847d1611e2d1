package transport

import (
	"testing"
	"time"
)

func TestPipeConnRoundTrip(t *testing.T) {
	a, b := NewPipePair("a", "b")
	defer a.Close()
	defer b.Close()

	go func() {
		a.WriteTo([]byte("hello"), nil)
	}()

	buf := make([]byte, 16)
	n, addr, err := Poll(b, buf, time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q, want hello", buf[:n])
	}
	if addr.String() != "a" {
		t.Fatalf("addr = %q, want a", addr.String())
	}
}

func TestPollTimesOutWithNoData(t *testing.T) {
	a, b := NewPipePair("a", "b")
	defer a.Close()
	defer b.Close()

	buf := make([]byte, 16)
	_, _, err := Poll(b, buf, 20*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("Poll = %v, want ErrTimeout", err)
	}
}

func TestPollNonBlockingCheck(t *testing.T) {
	a, b := NewPipePair("a", "b")
	defer a.Close()
	defer b.Close()

	buf := make([]byte, 16)
	if _, _, err := Poll(b, buf, 0); err != ErrTimeout {
		t.Fatalf("Poll(0) with nothing queued = %v, want ErrTimeout", err)
	}

	a.WriteTo([]byte("x"), nil)
	time.Sleep(10 * time.Millisecond)
	n, _, err := Poll(b, buf, 0)
	if err != nil || string(buf[:n]) != "x" {
		t.Fatalf("Poll(0) with queued data = %q, %v", buf[:n], err)
	}
}

func TestLossyConnDropsDeterministically(t *testing.T) {
	a, b := NewPipePair("a", "b")
	defer a.Close()
	defer b.Close()

	lossy := NewLossy(a, 0, 0, 1)
	lossy.Drop = func(frame []byte) bool { return frame[0] == 0xAA }

	lossy.WriteTo([]byte{0xAA, 0x01}, nil) // dropped
	lossy.WriteTo([]byte{0xBB, 0x02}, nil) // delivered

	buf := make([]byte, 16)
	n, _, err := Poll(b, buf, time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if buf[0] != 0xBB {
		t.Fatalf("first delivered frame = %x, want the undropped one", buf[:n])
	}
}
