package workcache

import (
	"bytes"

	"esvc/internal/ehash"
	"esvc/internal/event"
	"esvc/internal/executor"
	"esvc/internal/graph"
)

// DepState records what ShelveEvent has concluded about a candidate
// dependency hash during a single probing run.
type DepState int

const (
	// DepUse means the candidate is a required, structural (hard) dep.
	DepUse DepState = iota
	// DepUseSoft means the candidate is kept only as a non-structural
	// hint: the probe found the two events independent, but the safety
	// check at the end of a round rejected dropping it outright.
	DepUseSoft
	// DepDeny means the candidate was transitively pulled in by some
	// other event already marked DepUse and must never become a
	// dependency of e itself (that would be redundant: e already reaches
	// it through the DepUse edge).
	DepDeny
)

// effectiveTargets merges seedDeps (minus anything already Deny'd) with
// whatever curDeps entries are marked Use, producing the IncludeSpec map
// RunForeachRecursively/CalculateDependencies expect. When useExclude is
// set, exclude is included too but under IncludeOnlyDeps, so its own
// command does not run — used to build the "base without candidate c"
// frontier during the independence probe.
func effectiveTargets(seedDeps hashSet, curDeps map[ehash.Hash]DepState, exclude ehash.Hash, useExclude bool) map[ehash.Hash]graph.IncludeSpec {
	out := make(map[ehash.Hash]graph.IncludeSpec, len(seedDeps)+len(curDeps))
	for h := range seedDeps {
		if curDeps[h] == DepDeny {
			continue
		}
		out[h] = graph.IncludeAll
	}
	for h, st := range curDeps {
		if st == DepUse {
			out[h] = graph.IncludeAll
		}
	}
	if useExclude {
		out[exclude] = graph.IncludeOnlyDeps
	}
	return out
}

// ShelveEvent computes the minimal dependency set for a prospective event
// (cmdID, arg) against the candidate seed deps seedDepsIn, probing each
// candidate for commutativity with the event under construction, and
// inserts the resulting event into the graph (spec.md §4.5). It ignores
// any Deps already recorded on an existing event with the same (cmdID,
// arg) hash — re-shelving always starts from seedDepsIn, never from a
// stored event's own Deps field (relied on by TryMerge). Returns nil,
// nil if the resulting event would be a no-op: zero deps and replaying
// it produces the same payload as its sole required base.
func (wc *WorkCache) ShelveEvent(seedDepsIn []ehash.Hash, cmdID uint32, arg []byte) (*ehash.Hash, error) {
	seedDeps := toSet(seedDepsIn)
	curDeps := make(map[ehash.Hash]DepState)

	for {
		// Step 1: drop anything already decided from the seed set.
		for h, st := range curDeps {
			if st == DepUse || st == DepDeny {
				delete(seedDeps, h)
			}
		}

		baseTargets := effectiveTargets(seedDeps, curDeps, ehash.Hash{}, false)
		baseFull, _, err := wc.RunForeachRecursively(baseTargets)
		if err != nil {
			return nil, err
		}
		curRound, err := wc.exec.RunEventBare(cmdID, arg, baseFull)
		if err != nil {
			return nil, executor.Wrap(err)
		}

		if len(curDeps) == 0 && bytes.Equal(baseFull, curRound) {
			return nil, nil
		}

		newSeedDeps := hashSet{}
		independentThisRound := hashSet{}

		for _, c := range sortedSlice(seedDeps) {
			if _, decided := curDeps[c]; decided {
				continue
			}

			concEv, ok := wc.graph.Events[c]
			if !ok {
				return nil, &graph.DependencyNotFoundError{Hash: c}
			}

			exclTargets := effectiveTargets(seedDeps, curDeps, c, true)
			baseExclC, _, err := wc.RunForeachRecursively(exclTargets)
			if err != nil {
				return nil, err
			}

			independent := false
			switch {
			case bytes.Equal(baseFull, baseExclC):
				// c contributes nothing observable to the base payload
				// itself: dropping it cannot be independent, since there
				// is nothing here for e to commute past (Open Question
				// #1's newer reading — this case is dependent, not a
				// free no-op).
				independent = false
			case cmdID == concEv.CmdID && bytes.Equal(arg, concEv.Arg):
				// e would be a literal repeat of c; RunEventBare is not
				// guaranteed idempotent under self-repetition (Open
				// Question #2), so treat as dependent rather than probe.
				independent = false
			default:
				altExcl, err := wc.exec.RunEventBare(cmdID, arg, baseExclC)
				if err != nil {
					return nil, executor.Wrap(err)
				}
				alt, err := wc.exec.RunEventBare(concEv.CmdID, concEv.Arg, altExcl)
				if err != nil {
					return nil, executor.Wrap(err)
				}
				independent = bytes.Equal(alt, curRound) && !bytes.Equal(altExcl, curRound)
			}

			wc.record(func(r Recorder) { r.RecordProbe(c, independent) })

			if independent {
				for _, d := range concEv.AllDeps() {
					newSeedDeps[d] = struct{}{}
				}
				independentThisRound[c] = struct{}{}
				continue
			}

			if _, set := curDeps[c]; !set {
				curDeps[c] = DepUse
			}
			for _, d := range concEv.AllDeps() {
				if _, set := curDeps[d]; !set {
					curDeps[d] = DepDeny
				}
			}
		}

		// Step 5: safety check. Replaying with only the newly-discovered
		// independent deps must still reach curRound; if it doesn't, the
		// reduction this round was unsound and every independent
		// candidate from it is downgraded to a soft hint instead.
		altTargets := effectiveTargets(newSeedDeps, curDeps, ehash.Hash{}, false)
		altBase, _, err := wc.RunForeachRecursively(altTargets)
		if err != nil {
			return nil, err
		}
		altCur, err := wc.exec.RunEventBare(cmdID, arg, altBase)
		if err != nil {
			return nil, executor.Wrap(err)
		}

		if !bytes.Equal(altCur, curRound) {
			for c := range independentThisRound {
				if _, set := curDeps[c]; !set {
					curDeps[c] = DepUseSoft
				}
			}
			break
		}

		remaining := 0
		for h := range newSeedDeps {
			if _, decided := curDeps[h]; !decided {
				remaining++
			}
		}
		if remaining == 0 {
			// No undecided candidate survives into the next round: every
			// reachable dependency has already been classified, so
			// further iteration would just re-derive the same state.
			break
		}

		seedDeps = newSeedDeps
	}

	deps := make([]event.DepEdge, 0, len(curDeps))
	for h, st := range curDeps {
		switch st {
		case DepUse:
			deps = append(deps, event.DepEdge{Hash: h, Hard: true})
		case DepUseSoft:
			deps = append(deps, event.DepEdge{Hash: h, Hard: false})
		}
	}

	ev := event.Event{CmdID: cmdID, Arg: arg, Deps: deps}
	collision, h := wc.graph.EnsureEvent(ev)
	if collision != nil {
		return nil, &graph.HashCollisionError{Hash: h, Existing: "<shelved event>"}
	}

	hardN, softN := 0, 0
	for _, d := range deps {
		if d.Hard {
			hardN++
		} else {
			softN++
		}
	}
	wc.record(func(r Recorder) { r.RecordShelved(&h, hardN, softN) })

	return &h, nil
}
