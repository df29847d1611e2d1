// Package log provides the leveled logger shared by every rudpcopy
// component. It replaces bare stdlib *log.Logger globals with a single
// logrus.Logger so that per-frame and per-session detail can carry
// structured fields (seq, flag, addr) instead of being baked into a
// format string.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// base is the process-wide logger. rudpcopy runs one session per
// goroutine with no shared mutable protocol state, but the logger
// itself is fine to share: logrus.Logger is safe for concurrent use.
var base = logrus.New()

func init() {
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	base.SetLevel(logrus.InfoLevel)
}

// Init configures the shared logger's verbosity. debug corresponds to
// the "-d" flag accepted by both cmd/rcopy and cmd/rserver.
func Init(debug bool) {
	if debug {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
}

// For returns a logger entry tagged with the given fields, e.g.
// log.For(logrus.Fields{"role": "sender", "peer": addr}).
func For(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// L exposes the shared logger directly for call sites that don't need
// per-call fields.
var L = base
