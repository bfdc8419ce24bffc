// Package obs wires the core's logging, tracing, and metrics together:
// a logrus logger, a canonical execution trace adapted from the
// teacher's internal/trace package, and Prometheus counters for the
// shelve/merge/cache hot path. None of it affects execution
// behavior — it is all observational.
package obs

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus logger at level, writing JSON lines to out
// (os.Stderr when out is nil). JSON output is the teacher's convention
// for anything meant to be aggregated rather than eyeballed in a
// terminal (github.com/sirupsen/logrus, as wired across
// rony4d-go-opera-asset's launcher/flags packages).
func NewLogger(level logrus.Level, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return l
}

// ParseLevel is a thin re-export so callers (cmd/esvcbench) don't need
// their own logrus import just to parse a configured level name.
func ParseLevel(s string) (logrus.Level, error) {
	return logrus.ParseLevel(s)
}
