package graph

import (
	"errors"
	"fmt"

	"esvc/internal/ehash"
)

// ErrDatasetNotFound is returned when a caller references a frontier
// (closed hash set) that the cache or graph has never recorded.
var ErrDatasetNotFound = errors.New("graph: dataset not found")

// DependencyCircuitError means a node appeared as its own ancestor —
// only possible under corruption or a hash collision, since content
// addressing otherwise makes cycles unreachable (spec.md §3).
type DependencyCircuitError struct {
	Hash ehash.Hash
}

func (e *DependencyCircuitError) Error() string {
	return fmt.Sprintf("dependency circuit @ %s", e.Hash)
}

// DependencyNotFoundError means a referenced dependency hash is absent
// from the graph's event store.
type DependencyNotFoundError struct {
	Hash ehash.Hash
}

func (e *DependencyNotFoundError) Error() string {
	return fmt.Sprintf("unable to retrieve dependency %s", e.Hash)
}

// HashCollisionError signals that two distinct events hashed to the same
// value. The caller must treat this as fatal; the Graph is left
// unmodified by the insertion attempt that discovered it.
type HashCollisionError struct {
	Hash     ehash.Hash
	Existing string // debug rendering of the event already stored at Hash
}

func (e *HashCollisionError) Error() string {
	return fmt.Sprintf("hash collision @ %s detected during insertion of %s", e.Hash, e.Existing)
}

// RerunForbiddenError is raised by ReplayTracker when the same event hash
// is run twice against one linear replay.
type RerunForbiddenError struct {
	Hash ehash.Hash
}

func (e *RerunForbiddenError) Error() string {
	return fmt.Sprintf("re-run of event %s forbidden", e.Hash)
}

// DependencyUnsatisfiedError is raised by ReplayTracker when an event is
// run before one of its declared dependencies.
type DependencyUnsatisfiedError struct {
	Hash ehash.Hash
}

func (e *DependencyUnsatisfiedError) Error() string {
	return fmt.Sprintf("dependency not satisfied: %s", e.Hash)
}
