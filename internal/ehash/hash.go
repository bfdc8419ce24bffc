// Package ehash computes and formats content hashes for events.
//
// Hashes are tagged sums: today the only variant is Blake2b-512, but the
// textual form always carries an algorithm prefix so a future variant can
// be introduced without ambiguity. Events are forever bound to the
// algorithm used at creation time; there is no migration path, by design.
package ehash

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Size is the digest length of Blake2b-512 in bytes.
const Size = 64

const blake2b512Prefix = "blake2b512:"

var b64 = base64.RawURLEncoding

// Hash is a content hash of a serialized event. Equality and ordering are
// byte-wise over the digest.
type Hash [Size]byte

// Compute hashes dat with Blake2b-512.
func Compute(dat []byte) Hash {
	var h Hash
	sum := blake2b.Sum512(dat)
	copy(h[:], sum[:])
	return h
}

// String returns the canonical textual form: "blake2b512:" followed by
// unpadded base64url.
func (h Hash) String() string {
	return blake2b512Prefix + b64.EncodeToString(h[:])
}

// Less reports whether h sorts before o, used for canonical set ordering.
func (h Hash) Less(o Hash) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}

// ParseError describes why a textual hash failed to parse.
type ParseError struct {
	Kind   ParseErrorKind
	Prefix string // set for KindInvalidPrefix
	Got    int    // set for KindWrongLength
	Inner  error  // set for KindBadBase64
}

// ParseErrorKind enumerates the ways Parse can fail.
type ParseErrorKind int

const (
	// InvalidPrefix means the string did not start with a known algorithm tag.
	InvalidPrefix ParseErrorKind = iota
	// BadBase64 means the body was not valid unpadded base64url.
	BadBase64
	// WrongLength means the decoded body was not exactly Size bytes.
	WrongLength
)

func (e *ParseError) Error() string {
	switch e.Kind {
	case InvalidPrefix:
		return fmt.Sprintf("invalid hash prefix %q", e.Prefix)
	case BadBase64:
		return fmt.Sprintf("base64 decoding error: %v", e.Inner)
	case WrongLength:
		return fmt.Sprintf("concrete hash part has wrong length (got %d, expected %d)", e.Got, Size)
	default:
		return "malformed hash"
	}
}

func (e *ParseError) Unwrap() error { return e.Inner }

// ErrWrongLength is matched via errors.Is against WrongLength parse errors.
var ErrWrongLength = errors.New("wrong hash length")

func (e *ParseError) Is(target error) bool {
	return e.Kind == WrongLength && target == ErrWrongLength
}

// Parse decodes the textual form produced by String.
func Parse(s string) (Hash, error) {
	body, ok := strings.CutPrefix(s, blake2b512Prefix)
	if !ok {
		pfx := s
		if i := strings.IndexByte(s, ':'); i >= 0 {
			pfx = s[:i]
		}
		return Hash{}, &ParseError{Kind: InvalidPrefix, Prefix: pfx}
	}
	dec, err := b64.DecodeString(body)
	if err != nil {
		return Hash{}, &ParseError{Kind: BadBase64, Inner: err}
	}
	if len(dec) != Size {
		return Hash{}, &ParseError{Kind: WrongLength, Got: len(dec)}
	}
	var h Hash
	copy(h[:], dec)
	return h, nil
}
