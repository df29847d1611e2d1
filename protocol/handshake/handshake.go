// Package handshake implements the client-initiated filename exchange
// and server-side acceptance described in spec.md §4.2: the client
// sends a FILENAME frame to the server's well-known endpoint and waits
// for a FILENAME_RESP; on "OK" it captures the reply's source address
// as the session endpoint for the rest of the transfer — the
// endpoint-migration trick spec.md §9 calls load-bearing, ported from
// original_source/rcopy.c's send_filename_request and
// original_source/server.c's accept loop.
package handshake

import (
	"bytes"
	"net"

	"github.com/pkg/errors"

	"github.com/iocat/rudpcopy/log"
	"github.com/iocat/rudpcopy/protocol"
	"github.com/iocat/rudpcopy/protocol/frame"
	"github.com/iocat/rudpcopy/protocol/transport"
)

// ErrHandshakeFailed is returned by Client after InitRetryLimit
// unanswered FILENAME sends.
var ErrHandshakeFailed = errors.New("handshake: no response after retry limit")

// RespNotFound is the payload string the server sends when the
// requested file does not exist.
const RespNotFound = "File not found"

// RespOK is the payload string the server sends once it has opened
// the requested file and migrated to a session endpoint.
const RespOK = "OK"

func nullTerminated(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Client runs the client side of the handshake: it sends a FILENAME
// frame carrying init to serverAddr over conn, retrying up to
// protocol.InitRetryLimit times on timeout or a corrupt/unexpected
// reply. On a verified FILENAME_RESP("OK") it returns the reply's
// source address, which the caller must use for the rest of the
// session.
func Client(conn net.PacketConn, serverAddr net.Addr, init frame.InitPayload) (net.Addr, error) {
	payload, err := frame.EncodeInit(init)
	if err != nil {
		return nil, errors.Wrap(err, "handshake: encode init payload")
	}
	request := frame.Encode(frame.Frame{Seq: 0, Flag: frame.FILENAME, Payload: payload})
	buf := make([]byte, protocol.MaxFrameSize)

	for attempt := 1; attempt <= protocol.InitRetryLimit; attempt++ {
		if _, err := conn.WriteTo(request, serverAddr); err != nil {
			return nil, errors.Wrap(err, "handshake: send FILENAME")
		}
		n, addr, err := transport.Poll(conn, buf, protocol.HandshakeTimeout)
		if err != nil {
			if err == transport.ErrTimeout {
				log.L.Debugf("handshake: attempt %d timed out waiting for FILENAME_RESP", attempt)
				continue
			}
			return nil, errors.Wrap(err, "handshake: poll for FILENAME_RESP")
		}
		reply, err := frame.Decode(buf[:n])
		if err != nil {
			log.L.Debugf("handshake: dropping corrupt reply: %v", err)
			continue
		}
		if reply.Flag != frame.FILENAMEResp {
			log.L.Debugf("handshake: dropping reply with unexpected flag %v", reply.Flag)
			continue
		}
		msg := nullTerminated(reply.Payload)
		if msg == RespOK {
			log.L.Infof("handshake: server accepted, migrating to session endpoint %s", addr)
			return addr, nil
		}
		return nil, errors.Errorf("handshake: server declined: %s", msg)
	}
	return nil, ErrHandshakeFailed
}

// Request is a decoded FILENAME request along with the address it
// arrived from, handed off from the well-known listener to a fresh
// session.
type Request struct {
	Init       frame.InitPayload
	ClientAddr net.Addr
}

// Listener accepts FILENAME requests on the server's well-known
// endpoint, dropping anything else, the way spec.md §4.2's parent
// server does.
type Listener struct {
	conn net.PacketConn
}

// NewListener wraps conn (bound to the well-known endpoint) as a
// FILENAME listener.
func NewListener(conn net.PacketConn) *Listener {
	return &Listener{conn: conn}
}

// Accept blocks until a valid FILENAME request arrives. It never
// returns on corrupt or non-FILENAME datagrams; only a read error
// (e.g. the listener socket being closed) ends the loop.
func (l *Listener) Accept() (*Request, error) {
	buf := make([]byte, protocol.MaxFrameSize)
	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			return nil, err
		}
		fr, err := frame.Decode(buf[:n])
		if err != nil {
			log.L.Debugf("handshake: dropping corrupt datagram from %s: %v", addr, err)
			continue
		}
		if fr.Flag != frame.FILENAME {
			log.L.Debugf("handshake: dropping non-FILENAME datagram from %s (flag %v)", addr, fr.Flag)
			continue
		}
		init, err := frame.DecodeInit(fr.Payload)
		if err != nil {
			log.L.Debugf("handshake: dropping malformed init payload from %s: %v", addr, err)
			continue
		}
		return &Request{Init: init, ClientAddr: addr}, nil
	}
}

// SendNotFound tells the client the requested file doesn't exist,
// sending the response up to protocol.MissingFileRetries times before
// the caller tears the session down. Per spec.md §4.2 no
// acknowledgement is awaited — the session ends unilaterally either
// way.
func SendNotFound(conn net.PacketConn, clientAddr net.Addr) error {
	reply := frame.Encode(frame.Frame{Seq: 0, Flag: frame.FILENAMEResp, Payload: []byte(RespNotFound)})
	for i := 0; i < protocol.MissingFileRetries; i++ {
		if _, err := conn.WriteTo(reply, clientAddr); err != nil {
			return errors.Wrap(err, "handshake: send File not found")
		}
	}
	return nil
}

// Migrate announces the session's freshly bound ephemeral endpoint to
// the client by repeating FILENAME_RESP("OK") up to
// protocol.MaxRetransmit times, waiting protocol.MigrationTimeout
// after each for any datagram from the client on this new endpoint —
// the first such datagram is the client's acknowledgement that it has
// observed the migration, per spec.md §4.2. Migrate returns as soon as
// that first datagram arrives. If no ack is ever observed, the session
// proceeds to data transfer anyway rather than aborting — matching
// original_source/server.c's handle_client, which sends its OK
// response with a bounded ack wait but starts send_data_packets
// unconditionally afterward; the distilled spec is silent on this
// exhaustion case, so original_source resolves it (see DESIGN.md). A
// non-nil error here means an actual I/O failure on conn, not a missing
// ack.
func Migrate(conn net.PacketConn, clientAddr net.Addr) error {
	reply := frame.Encode(frame.Frame{Seq: 0, Flag: frame.FILENAMEResp, Payload: []byte(RespOK)})
	buf := make([]byte, protocol.MaxFrameSize)
	for attempt := 1; attempt <= protocol.MaxRetransmit; attempt++ {
		if _, err := conn.WriteTo(reply, clientAddr); err != nil {
			return errors.Wrap(err, "handshake: send FILENAME_RESP(OK)")
		}
		_, _, err := transport.Poll(conn, buf, protocol.MigrationTimeout)
		if err == nil {
			return nil
		}
		if err != transport.ErrTimeout {
			return errors.Wrap(err, "handshake: poll for migration ack")
		}
		log.L.Debugf("handshake: migration attempt %d: no ack yet", attempt)
	}
	log.L.Debugf("handshake: no migration ack observed after %d attempts, proceeding to transfer anyway", protocol.MaxRetransmit)
	return nil
}
