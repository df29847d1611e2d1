// Command rserver listens for FILENAME requests and serves files over
// the reliable UDP protocol, per spec.md §6. It runs until killed.
package main

import (
	"fmt"
	"os"

	"github.com/anacrolix/tagflag"

	"github.com/iocat/rudpcopy/log"
	"github.com/iocat/rudpcopy/server"
)

var flags = struct {
	D bool `help:"enable debug logging"`
	tagflag.StartPos
	ErrorRate float64
	Port      int `arity:"?"`
}{}

func main() {
	tagflag.Parse(&flags)
	log.Init(flags.D)

	if flags.ErrorRate < 0 || flags.ErrorRate > 1 {
		fmt.Fprintf(os.Stderr, "error_rate must be in [0, 1], got %v\n", flags.ErrorRate)
		os.Exit(1)
	}

	opts := server.Options{
		ErrorRate: flags.ErrorRate,
		Port:      flags.Port,
	}
	if err := server.Run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
