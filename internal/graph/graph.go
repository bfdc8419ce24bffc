// Package graph holds the content-addressed event store: the mapping from
// hash to event, named saved frontiers, dependency folding, and
// topological replay ordering (spec.md §3, §4.2).
package graph

import (
	"bytes"
	"sort"

	"esvc/internal/ehash"
	"esvc/internal/event"
)

// IncludeSpec controls whether calculate_dependencies emits a target
// itself or only its transitive dependencies.
type IncludeSpec int

const (
	// IncludeAll emits the target and its transitive deps.
	IncludeAll IncludeSpec = iota
	// IncludeOnlyDeps emits only the target's transitive deps, omitting
	// the target itself.
	IncludeOnlyDeps
)

// Graph is the content-addressed event store plus named saved frontiers.
// Invariants (spec.md §3): for every (h, e) in Events, h == event.Hash(e);
// for every dep d of e, d is present in Events and d != h; Events contains
// no cycle (acyclicity follows from content addressing alone).
type Graph struct {
	Events  map[ehash.Hash]event.Event
	NStates map[string][]ehash.Hash
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		Events:  make(map[ehash.Hash]event.Event),
		NStates: make(map[string][]ehash.Hash),
	}
}

// EnsureEvent gets-or-inserts ev. If an event already occupies ev's hash
// and is byte-identical under the canonical encoding, the insert is a
// no-op (content addressing makes this idempotent). If an event already
// occupies the hash and is *not* identical, that is a hash collision: the
// previously-stored event is returned as collision evidence and the
// caller must treat the operation as fatal without proceeding to use h.
func (g *Graph) EnsureEvent(ev event.Event) (collision *event.Event, h ehash.Hash) {
	h = event.Hash(ev)
	existing, ok := g.Events[h]
	if !ok {
		g.Events[h] = ev
		return nil, h
	}
	if bytes.Equal(event.Encode(existing), event.Encode(ev)) {
		return nil, h
	}
	return &existing, h
}

// FoldState computes the dependency closure of the hashes in st, marking
// every entry that is a dependency of another entry true (is_dep), seed
// entries included; seed entries that are no other entry's dependency
// keep the caller's original flag. When expand is false, every is_dep
// entry is dropped, leaving only the leaves of the closure. Fails if any
// referenced dependency hash is absent from the graph. The loop runs to a
// fixpoint: iterate until the set size stops growing (the "==" rule —
// spec.md §9.3 calls out an inverted, buggy "!=" variant that must not be
// reproduced).
func (g *Graph) FoldState(st map[ehash.Hash]bool, expand bool) (map[ehash.Hash]bool, error) {
	out := make(map[ehash.Hash]bool, len(st))
	for h, v := range st {
		out[h] = v
	}

	for {
		origLen := len(out)
		additions := make(map[ehash.Hash]bool)
		var missing *ehash.Hash
		for h := range out {
			ev, ok := g.Events[h]
			if !ok {
				hh := h
				missing = &hh
				continue
			}
			for _, d := range ev.AllDeps() {
				additions[d] = true
			}
		}
		if missing != nil {
			return nil, &DependencyNotFoundError{Hash: *missing}
		}
		for h := range additions {
			out[h] = true
		}
		if len(out) == origLen {
			break
		}
	}

	if !expand {
		for h, isDep := range out {
			if isDep {
				delete(out, h)
			}
		}
	}
	return out, nil
}

// Closure returns cl(seed): the least set containing seed and closed
// under Deps, as a plain set (discarding the is_dep distinction).
func (g *Graph) Closure(seed map[ehash.Hash]bool) (map[ehash.Hash]bool, error) {
	return g.FoldState(seed, true)
}

// Leaves returns leaves(cl(seed)): elements of the closure that are not a
// dependency of any other element in it.
func (g *Graph) Leaves(seed map[ehash.Hash]bool) (map[ehash.Hash]bool, error) {
	return g.FoldState(seed, false)
}

// CalculateDependencies produces a topologically valid replay order of
// cl(targets) \ already. Per target, IncludeOnlyDeps omits the target
// itself from the output, emitting only its transitive dependencies. Any
// topological order is acceptable: this implementation uses a
// depth-first push-down over the dependency stack; deps are pushed in the
// ascending hash order event.Event.AllDeps provides, so the highest-hash
// unresolved dep is visited first. The order is deterministic for a given input but not itself part of the observable
// contract (spec.md §4.2).
func (g *Graph) CalculateDependencies(already map[ehash.Hash]bool, targets map[ehash.Hash]IncludeSpec) ([]ehash.Hash, error) {
	tt := make(map[ehash.Hash]bool, len(already))
	for h, v := range already {
		tt[h] = v
	}

	var ret []ehash.Hash
	for _, mainEvid := range sortedTargetKeys(targets) {
		incl := targets[mainEvid]
		stack := []ehash.Hash{mainEvid}

		for len(stack) > 0 {
			evid := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if tt[evid] {
				continue
			}
			if evid == mainEvid && len(stack) != 0 {
				return nil, &DependencyCircuitError{Hash: mainEvid}
			}

			ev, ok := g.Events[evid]
			if !ok {
				return nil, &DependencyNotFoundError{Hash: evid}
			}

			necessary := diffAgainst(ev.AllDeps(), tt)
			if len(necessary) > 0 {
				stack = append(stack, evid)
				stack = append(stack, necessary[0])
				stack = append(stack, necessary[1:]...)
				continue
			}

			if evid == mainEvid && incl != IncludeAll {
				stack = nil
				break
			}
			ret = append(ret, evid)
			tt[evid] = true
		}
	}
	return ret, nil
}

func diffAgainst(hashes []ehash.Hash, tt map[ehash.Hash]bool) []ehash.Hash {
	out := make([]ehash.Hash, 0, len(hashes))
	for _, h := range hashes {
		if !tt[h] {
			out = append(out, h)
		}
	}
	return out
}

func sortedTargetKeys(m map[ehash.Hash]IncludeSpec) []ehash.Hash {
	out := make([]ehash.Hash, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// CollapseNamedFrontier collapses a named frontier forward when a tag's
// full target set is already a subset of top but the tag hash itself is
// not yet in top: replace the superseded members with the tag hash.
// Ported from original_source/.../state.rs and apply.rs's
// cleanup_top/apply_tags, which spec.md names only by the nstates
// collection it operates on (spec.md §3's "named saved frontiers").
func CollapseNamedFrontier(top []ehash.Hash, tags map[ehash.Hash][]ehash.Hash) []ehash.Hash {
	topSet := make(map[ehash.Hash]bool, len(top))
	for _, h := range top {
		topSet[h] = true
	}

	for k, v := range tags {
		if topSet[k] {
			continue
		}
		if !isSuperset(topSet, v) {
			continue
		}
		for _, h := range v {
			delete(topSet, h)
		}
		topSet[k] = true
	}

	out := make([]ehash.Hash, 0, len(topSet))
	for h := range topSet {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func isSuperset(set map[ehash.Hash]bool, subset []ehash.Hash) bool {
	for _, h := range subset {
		if !set[h] {
			return false
		}
	}
	return true
}

// ReplayTracker drives a manual, linear replay of a CalculateDependencies
// order outside of WorkCache, guarding against re-running an event or
// running one whose dependencies are not yet satisfied. Ported from
// original_source/.../apply.rs's ApplyTracker.
type ReplayTracker struct {
	top map[ehash.Hash]bool
}

// NewReplayTracker returns an empty tracker.
func NewReplayTracker() *ReplayTracker {
	return &ReplayTracker{top: make(map[ehash.Hash]bool)}
}

// CanRun reports whether evid may run given its deps, against everything
// already registered as run.
func (t *ReplayTracker) CanRun(evid ehash.Hash, deps []ehash.Hash) error {
	if t.top[evid] {
		return &RerunForbiddenError{Hash: evid}
	}
	for _, d := range deps {
		if !t.top[d] {
			return &DependencyUnsatisfiedError{Hash: d}
		}
	}
	return nil
}

// RegisterAsRan marks evid as having been applied.
func (t *ReplayTracker) RegisterAsRan(evid ehash.Hash) {
	t.top[evid] = true
}
