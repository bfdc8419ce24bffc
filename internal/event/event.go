// Package event defines the immutable, content-addressed Event record.
package event

import (
	"encoding/binary"
	"sort"

	"esvc/internal/ehash"
)

// DepEdge is one dependency edge out of an Event. Hard edges are
// structural (required for correctness of replay); soft edges are
// retained as hints produced when full minimization could not be
// completed without losing correctness (see the shelve safety check in
// internal/workcache). Implementations without merge support may treat
// every edge as hard.
type DepEdge struct {
	Hash ehash.Hash
	Hard bool
}

// Event is the immutable tuple (cmd_id, arg, deps). CmdID selects an
// Executor command; Arg is opaque to the core; Deps is the set of direct
// causal predecessors. Two Events are equal iff their fields are equal;
// identity is by content hash, never by pointer.
type Event struct {
	CmdID uint32
	Arg   []byte
	Deps  []DepEdge
}

// HardDeps returns the hashes of edges marked Hard, sorted ascending.
func (e Event) HardDeps() []ehash.Hash {
	return depsWhere(e.Deps, true)
}

// SoftDeps returns the hashes of edges marked !Hard, sorted ascending.
func (e Event) SoftDeps() []ehash.Hash {
	return depsWhere(e.Deps, false)
}

// AllDeps returns every dependency hash regardless of kind, sorted ascending.
func (e Event) AllDeps() []ehash.Hash {
	out := make([]ehash.Hash, 0, len(e.Deps))
	for _, d := range e.Deps {
		out = append(out, d.Hash)
	}
	sortHashes(out)
	return out
}

func depsWhere(deps []DepEdge, hard bool) []ehash.Hash {
	out := make([]ehash.Hash, 0, len(deps))
	for _, d := range deps {
		if d.Hard == hard {
			out = append(out, d.Hash)
		}
	}
	sortHashes(out)
	return out
}

func sortHashes(hs []ehash.Hash) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Less(hs[j]) })
}

// writeField writes an 8-byte big-endian length prefix followed by data,
// the same length-prefixing discipline the teacher uses for its own
// content hashes (internal/core/hasher.go), applied here to build the
// canonical Event encoding that the event hash is computed over.
func writeField(buf []byte, data []byte) []byte {
	var lenBytes [8]byte
	binary.BigEndian.PutUint64(lenBytes[:], uint64(len(data)))
	buf = append(buf, lenBytes[:]...)
	return append(buf, data...)
}

// Encode produces the deterministic byte encoding of ev: fixed field
// order (CmdID, Arg, Deps), canonical integer encoding, and canonical
// (sorted) dependency-set ordering. This is the only encoding an Event's
// hash may ever be computed over; changing it would change every event
// hash derived from it, so once chosen it is frozen (spec.md §3).
func Encode(ev Event) []byte {
	buf := make([]byte, 0, 16+len(ev.Arg)+24*len(ev.Deps))

	var cmdBytes [4]byte
	binary.BigEndian.PutUint32(cmdBytes[:], ev.CmdID)
	buf = writeField(buf, cmdBytes[:])

	buf = writeField(buf, ev.Arg)

	sorted := make([]DepEdge, len(ev.Deps))
	copy(sorted, ev.Deps)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Hash != sorted[j].Hash {
			return sorted[i].Hash.Less(sorted[j].Hash)
		}
		return !sorted[i].Hard && sorted[j].Hard
	})

	var countBytes [8]byte
	binary.BigEndian.PutUint64(countBytes[:], uint64(len(sorted)))
	buf = writeField(buf, countBytes[:])
	for _, d := range sorted {
		buf = writeField(buf, d.Hash[:])
		hardByte := byte(0)
		if d.Hard {
			hardByte = 1
		}
		buf = writeField(buf, []byte{hardByte})
	}

	return buf
}

// Hash returns the content hash of ev under the canonical encoding.
func Hash(ev Event) ehash.Hash {
	return ehash.Compute(Encode(ev))
}
