// Command rcopy requests a file from an rserver instance and writes
// the reassembled bytes to a local file, per spec.md §6.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/anacrolix/tagflag"

	"github.com/iocat/rudpcopy/client"
	"github.com/iocat/rudpcopy/log"
	"github.com/iocat/rudpcopy/protocol"
)

var flags = struct {
	D bool `help:"enable debug logging"`
	tagflag.StartPos
	FromFilename string
	ToFilename   string
	WindowSize   int
	BufferSize   int
	ErrorRate    float64
	RemoteHost   string
	RemotePort   int
}{}

func main() {
	tagflag.Parse(&flags)
	log.Init(flags.D)

	if err := validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := client.Options{
		FromFilename: flags.FromFilename,
		ToFilename:   flags.ToFilename,
		WindowSize:   uint32(flags.WindowSize),
		BufferSize:   uint32(flags.BufferSize),
		ErrorRate:    flags.ErrorRate,
		RemoteHost:   flags.RemoteHost,
		RemotePort:   flags.RemotePort,
	}
	if err := client.Run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// validate applies original_source/rcopy.c's client-side pre-flight
// checks (filename length, window/buffer bounds) before ever sending a
// FILENAME frame, per SPEC_FULL.md §9's supplemented-feature note.
func validate() error {
	if len(flags.FromFilename) == 0 || len(flags.FromFilename) > protocol.MaxFilenameLen {
		return fmt.Errorf("from_filename must be 1-%d bytes, got %d", protocol.MaxFilenameLen, len(flags.FromFilename))
	}
	if flags.WindowSize < 1 || flags.WindowSize >= (1<<30) {
		return fmt.Errorf("window_size must be in [1, 2^30), got %d", flags.WindowSize)
	}
	if flags.BufferSize < 1 || flags.BufferSize > protocol.MaxDataSize {
		return fmt.Errorf("buffer_size must be in [1, %d], got %d", protocol.MaxDataSize, flags.BufferSize)
	}
	if flags.ErrorRate < 0 || flags.ErrorRate > 1 {
		return fmt.Errorf("error_rate must be in [0, 1], got %s", strconv.FormatFloat(flags.ErrorRate, 'f', -1, 64))
	}
	if flags.RemotePort < 0 || flags.RemotePort > 65535 {
		return fmt.Errorf("remote_port must be in [0, 65535], got %d", flags.RemotePort)
	}
	return nil
}
