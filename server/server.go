// Package server drives the rserver side of a transfer: it listens on
// the well-known endpoint for FILENAME requests and spawns one session
// goroutine per accepted client, each migrating to a fresh ephemeral
// endpoint and running the sender engine. This is the Go-idiomatic
// replacement for spec.md §4.2/§9's process-per-session isolation —
// one goroutine, one *net.UDPConn, and no state shared across sessions
// (see spec.md §5).
package server

import (
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iocat/rudpcopy/log"
	"github.com/iocat/rudpcopy/protocol"
	"github.com/iocat/rudpcopy/protocol/handshake"
	"github.com/iocat/rudpcopy/protocol/sender"
	"github.com/iocat/rudpcopy/protocol/transport"
)

// Options bundles rserver's positional arguments per spec.md §6.
type Options struct {
	ErrorRate float64
	Port      int
}

// Run binds the well-known endpoint and accepts FILENAME requests
// forever, spawning one session per client. It only returns on a fatal
// listener error (e.g. the socket can't be bound).
func Run(opts Options) error {
	addr := &net.UDPAddr{Port: opts.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return errors.Wrap(err, "server: bind well-known endpoint")
	}
	defer conn.Close()
	log.L.Infof("server: listening on %s", conn.LocalAddr())

	listener := handshake.NewListener(conn)
	for {
		req, err := listener.Accept()
		if err != nil {
			return errors.Wrap(err, "server: accept")
		}
		go runSession(req, opts.ErrorRate)
	}
}

func runSession(req *handshake.Request, errorRate float64) {
	if req.Init.WindowSize == 0 || req.Init.WindowSize >= protocol.MaxWindowSize ||
		req.Init.BufferSize == 0 || req.Init.BufferSize > protocol.MaxDataSize {
		log.L.Warnf("server: session for %s: rejecting invalid window_size=%d buffer_size=%d",
			req.ClientAddr, req.Init.WindowSize, req.Init.BufferSize)
		return
	}

	sessionConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		log.L.Warnf("server: session for %s: bind ephemeral endpoint: %v", req.ClientAddr, err)
		return
	}
	defer sessionConn.Close()

	var conn net.PacketConn = sessionConn
	if errorRate > 0 {
		conn = transport.NewLossy(sessionConn, errorRate, errorRate, time.Now().UnixNano())
	}

	sessionLog := log.For(logrus.Fields{"client": req.ClientAddr, "file": req.Init.Filename})

	file, err := os.Open(req.Init.Filename)
	if err != nil {
		sessionLog.Infof("server: file not found: %v", err)
		if serr := handshake.SendNotFound(conn, req.ClientAddr); serr != nil {
			sessionLog.Warnf("server: sending File not found: %v", serr)
		}
		return
	}
	defer file.Close()

	if err := handshake.Migrate(conn, req.ClientAddr); err != nil {
		sessionLog.Warnf("server: migration handshake: %v", err)
		return
	}
	sessionLog.Infof("server: migrated to %s, starting transfer", sessionConn.LocalAddr())

	s := sender.New(conn, req.ClientAddr, file, req.Init.WindowSize, req.Init.BufferSize)
	if err := s.Run(); err != nil {
		sessionLog.Warnf("server: sender engine: %v", err)
		return
	}
	sessionLog.Info("server: session complete")
}
