package workcache

import (
	"fmt"

	"esvc/internal/ehash"
)

// CommandNotFoundError means the engine could not resolve a command ID —
// surfaced by an Executor that maintains its own command index; the core
// propagates it unchanged (spec.md §6's error taxonomy).
type CommandNotFoundError struct {
	CmdID uint32
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("engine couldn't find command with ID %d", e.CmdID)
}

// NoopAtMergeError is returned by TryMerge when re-shelving a foreign
// event against the local frontier produces no event at all (it would be
// a no-op locally), which the merge cannot reconcile.
type NoopAtMergeError struct {
	Hash ehash.Hash
}

func (e *NoopAtMergeError) Error() string {
	return fmt.Sprintf("event %s is a no-op at merge", e.Hash)
}

// HashChangeAtMergeError is returned by TryMerge when re-shelving a
// foreign event changes its hard (structural) dependency set: the local
// view disagrees about causality and the merge would produce a
// structurally different event than the one being imported.
type HashChangeAtMergeError struct {
	Original  ehash.Hash
	Reshelved ehash.Hash
}

func (e *HashChangeAtMergeError) Error() string {
	return fmt.Sprintf("hash changed at merge: %s -> %s", e.Original, e.Reshelved)
}
