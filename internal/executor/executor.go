// Package executor defines the contract the core uses to apply events to
// payloads. The core treats an Executor purely as an opaque, deterministic
// transform — any WASM sandbox, native dispatcher, or subprocess runner
// conforming to this one-method interface is a valid Executor. This
// package defines the contract only; see internal/replayengine for a
// concrete instance used by the test suite.
package executor

// Executor applies a command, by ID, to an argument and an input payload,
// producing an output payload. Implementations must be pure functions of
// their inputs (no hidden state that affects output) and deterministic
// across calls and processes: the core invokes RunEventBare possibly many
// times with identical arguments and relies on that determinism for
// memoization and for the commutativity probes in shelve.
type Executor interface {
	// RunEventBare executes cmdID against arg and payload, ignoring any
	// notion of dependencies — the caller is responsible for ensuring
	// payload already reflects every causal predecessor.
	RunEventBare(cmdID uint32, arg, payload []byte) ([]byte, error)
}

// Error wraps an error returned by an Executor so the core can surface it
// unchanged through its own error type without retrying or papering over
// it (spec.md §7, the "Delegated" error family).
type Error struct {
	Inner error
}

func (e *Error) Error() string { return "executor: " + e.Inner.Error() }

func (e *Error) Unwrap() error { return e.Inner }

// Wrap returns nil if err is nil, otherwise an *Error wrapping err.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Inner: err}
}
