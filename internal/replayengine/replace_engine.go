// Package replayengine provides a concrete, deterministic Executor that
// performs a single string replace(needle, replacement) per event. It is
// the instance used to seed the round-trip test suite in spec.md §8; it
// is not part of the core's contract, only one conforming implementation
// of it, adapted from the teacher's shell CommandExecutor
// (internal/core/executor.go) to an in-process pure transform.
package replayengine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// CmdReplace is the only command ID this engine recognizes.
const CmdReplace uint32 = 1

// EncodeArg packs (needle, replacement) into the deterministic Arg bytes
// expected by RunEventBare: two length-prefixed fields, needle first.
func EncodeArg(needle, replacement string) []byte {
	var buf []byte
	buf = appendField(buf, []byte(needle))
	buf = appendField(buf, []byte(replacement))
	return buf
}

func appendField(buf, data []byte) []byte {
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(data)))
	buf = append(buf, l[:]...)
	return append(buf, data...)
}

// DecodeArg is the inverse of EncodeArg.
func DecodeArg(arg []byte) (needle, replacement string, err error) {
	needleB, rest, err := readField(arg)
	if err != nil {
		return "", "", err
	}
	replB, rest, err := readField(rest)
	if err != nil {
		return "", "", err
	}
	if len(rest) != 0 {
		return "", "", fmt.Errorf("replayengine: trailing bytes in arg")
	}
	return string(needleB), string(replB), nil
}

func readField(buf []byte) (field, rest []byte, err error) {
	if len(buf) < 8 {
		return nil, nil, fmt.Errorf("replayengine: truncated length prefix")
	}
	n := binary.BigEndian.Uint64(buf[:8])
	buf = buf[8:]
	if uint64(len(buf)) < n {
		return nil, nil, fmt.Errorf("replayengine: truncated field")
	}
	return buf[:n], buf[n:], nil
}

// Engine is a replace(needle, replacement) Executor over string payloads.
type Engine struct{}

// RunEventBare replaces every occurrence of needle with replacement in
// payload, matching the teacher's "bare" single-call Executor shape
// (internal/core/executor.go's Execute): no hidden state, one call in,
// one result out.
func (Engine) RunEventBare(cmdID uint32, arg, payload []byte) ([]byte, error) {
	if cmdID != CmdReplace {
		return nil, fmt.Errorf("replayengine: unknown command id %d", cmdID)
	}
	needle, replacement, err := DecodeArg(arg)
	if err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(payload, []byte(needle), []byte(replacement)), nil
}

// MustEncodeArg is EncodeArg for callers (tests, cmd/esvcbench) that
// build literal scenarios and want a one-line call.
func MustEncodeArg(needle, replacement string) []byte {
	return EncodeArg(needle, replacement)
}

// Describe renders an Arg for debugging/trace purposes, mirroring
// strings.Builder usage the teacher favors for human-readable summaries.
func Describe(arg []byte) string {
	needle, replacement, err := DecodeArg(arg)
	if err != nil {
		return "<malformed replace arg>"
	}
	var b strings.Builder
	b.WriteString("replace(")
	b.WriteString(needle)
	b.WriteString(" -> ")
	b.WriteString(replacement)
	b.WriteString(")")
	return b.String()
}
