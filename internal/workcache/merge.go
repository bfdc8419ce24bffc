package workcache

import (
	"sort"

	"esvc/internal/ehash"
	"esvc/internal/graph"
)

// TryMerge folds a foreign frontier into the local graph by re-shelving
// each of its events against the local view, in place of trusting the
// foreign event's own recorded Deps (spec.md §4.6). ShelveEvent always
// recomputes deps from scratch, so this is how causality disagreements
// between two replicas surface: a foreign event re-shelved locally may
// gain or lose hard deps (rejected with HashChangeAtMergeError; a change
// in soft deps only is accepted), or vanish as a no-op (rejected with
// NoopAtMergeError).
//
// incomingFrontier must already be present as events in the local graph
// (received out of band, e.g. via internal/persist) before merging.
func (wc *WorkCache) TryMerge(incomingFrontier []ehash.Hash) error {
	frontierTargets := make(map[ehash.Hash]graph.IncludeSpec, len(incomingFrontier))
	for _, h := range incomingFrontier {
		frontierTargets[h] = graph.IncludeOnlyDeps
	}
	fullSeedDeps, err := wc.graph.CalculateDependencies(nil, frontierTargets)
	if err != nil {
		return err
	}
	fullSeedSet := toSet(fullSeedDeps)

	leavesBool, err := wc.graph.Leaves(boolSet(fullSeedSet))
	if err != nil {
		return err
	}
	seedDeps := boolKeys(leavesBool)

	toReshelve := diffAgainst(incomingFrontier, fullSeedSet)
	sort.Slice(toReshelve, func(i, j int) bool { return toReshelve[i].Less(toReshelve[j]) })

	for _, h := range toReshelve {
		ev, ok := wc.graph.Events[h]
		if !ok {
			return &graph.DependencyNotFoundError{Hash: h}
		}

		reshelved, err := wc.ShelveEvent(seedDeps, ev.CmdID, ev.Arg)
		var outcome error
		switch {
		case err != nil:
			outcome = err
		case reshelved == nil:
			outcome = &NoopAtMergeError{Hash: h}
		case *reshelved != h:
			orig := wc.graph.Events[h]
			newEv, ok := wc.graph.Events[*reshelved]
			if !ok || !sameHardDeps(orig, newEv) {
				outcome = &HashChangeAtMergeError{Original: h, Reshelved: *reshelved}
			}
		}
		wc.record(func(r Recorder) { r.RecordMergeOutcome(h, outcome) })
		if outcome != nil {
			return outcome
		}

		seedDeps = append(seedDeps, h)
	}
	return nil
}

func sameHardDeps(a, b hasAllDeps) bool {
	ah, bh := a.HardDeps(), b.HardDeps()
	if len(ah) != len(bh) {
		return false
	}
	for i := range ah {
		if ah[i] != bh[i] {
			return false
		}
	}
	return true
}

// hasAllDeps abstracts event.Event's HardDeps method so sameHardDeps does
// not need to import the event package solely for the type name.
type hasAllDeps interface {
	HardDeps() []ehash.Hash
}

func boolSet(s hashSet) map[ehash.Hash]bool {
	out := make(map[ehash.Hash]bool, len(s))
	for h := range s {
		out[h] = false
	}
	return out
}

func boolKeys(m map[ehash.Hash]bool) []ehash.Hash {
	out := make([]ehash.Hash, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
