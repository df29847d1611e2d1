package sender

import (
	"strings"
	"testing"
	"time"

	"github.com/iocat/rudpcopy/protocol/frame"
	"github.com/iocat/rudpcopy/protocol/transport"
)

func TestFillSendsDataFramesAndDetectsEOF(t *testing.T) {
	client, server := transport.NewPipePair("client", "server")
	defer client.Close()
	defer server.Close()

	src := strings.NewReader("hello world") // 11 bytes
	s := New(server, client.LocalAddr(), src, 4, 5)

	if err := s.fill(); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if !s.eofReached {
		t.Fatal("expected eofReached after exhausting an 11-byte source with bufferSize=5")
	}
	if s.nextSeq != 3 {
		t.Fatalf("nextSeq = %d, want 3", s.nextSeq)
	}

	want := []string{"hello", " worl", "d"}
	buf := make([]byte, 2048)
	for i, w := range want {
		n, _, err := transport.Poll(client, buf, time.Second)
		if err != nil {
			t.Fatalf("frame %d: poll: %v", i, err)
		}
		fr, err := frame.Decode(buf[:n])
		if err != nil {
			t.Fatalf("frame %d: decode: %v", i, err)
		}
		if fr.Seq != uint32(i) || fr.Flag != frame.DATA {
			t.Fatalf("frame %d = seq %d flag %v, want seq %d flag DATA", i, fr.Seq, fr.Flag, i)
		}
		if string(fr.Payload) != w {
			t.Fatalf("frame %d payload = %q, want %q", i, fr.Payload, w)
		}
	}
}

func TestProcessRRAdvancesBaseAndAcksWindow(t *testing.T) {
	client, server := transport.NewPipePair("client", "server")
	defer client.Close()
	defer server.Close()

	s := New(server, client.LocalAddr(), strings.NewReader(""), 4, 5)
	for seq := uint32(0); seq < 3; seq++ {
		encoded := frame.Encode(frame.Frame{Seq: seq, Flag: frame.DATA, Payload: []byte("x")})
		s.win.Add(seq, encoded, uint8(frame.DATA))
	}
	s.nextSeq = 3

	s.processRR(1)
	if s.base != 2 {
		t.Fatalf("base = %d, want 2 after RR(1) acks seq 0 and 1", s.base)
	}
	if _, ok := s.win.Get(1); ok {
		t.Fatalf("seq 1's window slot should have been released once base slid past it")
	}
}

func TestProcessRRFastRetransmitsAfterThreeDuplicates(t *testing.T) {
	client, server := transport.NewPipePair("client", "server")
	defer client.Close()
	defer server.Close()

	s := New(server, client.LocalAddr(), strings.NewReader(""), 4, 5)
	encoded := frame.Encode(frame.Frame{Seq: 1, Flag: frame.DATA, Payload: []byte("y")})
	s.win.Add(1, encoded, uint8(frame.DATA))
	s.base = 1
	s.nextSeq = 2

	s.processRR(0) // a == base-1
	s.processRR(0)
	s.processRR(0) // third duplicate triggers fast retransmit

	buf := make([]byte, 2048)
	n, _, err := transport.Poll(client, buf, time.Second)
	if err != nil {
		t.Fatalf("expected a fast-retransmitted frame: %v", err)
	}
	fr, err := frame.Decode(buf[:n])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fr.Seq != 1 || fr.Flag != frame.ResentTimeout {
		t.Fatalf("got seq %d flag %v, want seq 1 flag RESENT_TIMEOUT", fr.Seq, fr.Flag)
	}
}

func TestProcessSREJServesFromWindowThenReplay(t *testing.T) {
	client, server := transport.NewPipePair("client", "server")
	defer client.Close()
	defer server.Close()

	s := New(server, client.LocalAddr(), strings.NewReader(""), 4, 5)
	encoded := frame.Encode(frame.Frame{Seq: 2, Flag: frame.DATA, Payload: []byte("abcde")})
	s.win.Add(2, encoded, uint8(frame.DATA))
	s.replay.Write(2, []byte("abcde"))

	s.processSREJ(2)
	buf := make([]byte, 2048)
	n, _, err := transport.Poll(client, buf, time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	fr, _ := frame.Decode(buf[:n])
	if fr.Flag != frame.ResentSREJ {
		t.Fatalf("flag = %v, want RESENT_SREJ when served from the window", fr.Flag)
	}

	s.win.Remove(2) // simulate the window slot being reused by a newer frame
	s.processSREJ(2)
	n, _, err = transport.Poll(client, buf, time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	fr, _ = frame.Decode(buf[:n])
	if fr.Flag != frame.ResentTimeout || string(fr.Payload) != "abcde" {
		t.Fatalf("flag = %v payload = %q, want RESENT_TIMEOUT/abcde when served from replay", fr.Flag, fr.Payload)
	}
}

func TestOnTimeoutForcesProgressAfterMaxRetransmit(t *testing.T) {
	client, server := transport.NewPipePair("client", "server")
	defer client.Close()
	defer server.Close()

	s := New(server, client.LocalAddr(), strings.NewReader(""), 4, 5)
	encoded := frame.Encode(frame.Frame{Seq: 0, Flag: frame.DATA, Payload: []byte("z")})
	s.win.Add(0, encoded, uint8(frame.DATA))
	s.base = 0
	s.nextSeq = 1

	go func() {
		buf := make([]byte, 2048)
		for {
			if _, _, err := transport.Poll(client, buf, time.Second); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		s.onTimeout()
	}
	if s.base != 1 {
		t.Fatalf("base = %d, want 1 after MaxRetransmit forces the slot acknowledged", s.base)
	}
}

func TestTerminateAcceptsTerminalRR(t *testing.T) {
	client, server := transport.NewPipePair("client", "server")
	defer client.Close()
	defer server.Close()

	s := New(server, client.LocalAddr(), strings.NewReader(""), 4, 5)
	s.base, s.nextSeq = 1, 1

	done := make(chan error, 1)
	go func() { done <- s.terminate() }()

	buf := make([]byte, 2048)
	n, addr, err := transport.Poll(client, buf, time.Second)
	if err != nil {
		t.Fatalf("poll for EOF: %v", err)
	}
	fr, err := frame.Decode(buf[:n])
	if err != nil || fr.Flag != frame.EOF {
		t.Fatalf("expected an EOF frame, got %+v, err %v", fr, err)
	}
	client.WriteTo(frame.Encode(frame.NewControl(frame.RR, 0)), addr)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("terminate: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("terminate did not return after a valid terminal RR")
	}
}
