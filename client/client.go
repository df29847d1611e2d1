// Package client drives the rcopy side of a transfer: it resolves the
// server's well-known endpoint, runs the handshake, and hands the
// migrated session endpoint to the receiver engine. Address
// resolution and socket creation are the external collaborators spec.md
// §1 excludes from the reliability protocol itself, which is why they
// live here rather than in protocol/handshake or protocol/receiver.
package client

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iocat/rudpcopy/log"
	"github.com/iocat/rudpcopy/protocol/frame"
	"github.com/iocat/rudpcopy/protocol/handshake"
	"github.com/iocat/rudpcopy/protocol/receiver"
	"github.com/iocat/rudpcopy/protocol/transport"
)

// Options bundles the seven positional arguments cmd/rcopy parses, per
// spec.md §6.
type Options struct {
	FromFilename string
	ToFilename   string
	WindowSize   uint32
	BufferSize   uint32
	ErrorRate    float64
	RemoteHost   string
	RemotePort   int
}

// Run resolves the server, performs the handshake, and runs the
// receiver engine to completion, writing the reassembled file to
// ToFilename. It returns a non-nil error on any validation, handshake,
// or transfer failure, matching cmd/rcopy's exit-code-1 contract.
func Run(opts Options) error {
	serverAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", opts.RemoteHost, opts.RemotePort))
	if err != nil {
		return errors.Wrap(err, "client: resolve server address")
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return errors.Wrap(err, "client: bind local endpoint")
	}
	defer conn.Close()

	var transportConn net.PacketConn = conn
	if opts.ErrorRate > 0 {
		transportConn = transport.NewLossy(conn, opts.ErrorRate, opts.ErrorRate, time.Now().UnixNano())
	}

	init := frame.InitPayload{
		Filename:   opts.FromFilename,
		WindowSize: opts.WindowSize,
		BufferSize: opts.BufferSize,
	}
	log.L.Infof("client: requesting %q from %s", opts.FromFilename, serverAddr)
	sessionAddr, err := handshake.Client(transportConn, serverAddr, init)
	if err != nil {
		return errors.Wrap(err, "client: handshake")
	}

	out, err := os.Create(opts.ToFilename)
	if err != nil {
		return errors.Wrap(err, "client: create output file")
	}
	defer out.Close()

	r := receiver.New(transportConn, sessionAddr, out, opts.WindowSize)
	if err := r.Run(); err != nil {
		return errors.Wrap(err, "client: receive")
	}
	log.L.WithFields(logrus.Fields{"file": opts.ToFilename}).Info("client: transfer complete")
	return nil
}
