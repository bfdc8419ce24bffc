package obs

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
)

// EventKind is the stable, canonical discriminator for a ProbeEvent.
// Adapted from internal/trace.TraceEventKind: these name logical shelve
// and merge decisions rather than runtime occurrences, and the string
// values are part of the canonical trace bytes (do not rename).
type EventKind string

const (
	KindCacheHit      EventKind = "CacheHit"
	KindCacheMiss     EventKind = "CacheMiss"
	KindProbeIndependent EventKind = "ProbeIndependent"
	KindProbeDependent   EventKind = "ProbeDependent"
	KindEventShelved     EventKind = "EventShelved"
	KindMergeAccepted    EventKind = "MergeAccepted"
	KindMergeRejected    EventKind = "MergeRejected"
)

// ProbeEvent is a single logical shelve/merge/cache decision.
type ProbeEvent struct {
	Kind EventKind

	// Hash identifies the event (for probe/shelve kinds) or the foreign
	// frontier member (for merge kinds). Empty for pure cache events.
	Hash string

	// Reason carries the rejection error text for MergeRejected and is
	// empty for every other kind, mirroring internal/trace.TraceEvent.Reason.
	Reason string

	// HardDeps/SoftDeps are populated only for EventShelved.
	HardDeps int
	SoftDeps int
}

// Trace is the canonical, deterministic record of one shelve/merge run.
// No timestamps, no pointers, no map-iteration-order dependence — it
// must reproduce identical bytes given identical decisions, matching
// internal/trace.ExecutionTrace's determinism invariants.
type Trace struct {
	RunLabel string
	Events   []ProbeEvent
}

// Canonicalize sorts Events into a total order independent of recording
// concurrency, keyed on (kind, hash, reason).
func (t *Trace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Hash != b.Hash {
			return a.Hash < b.Hash
		}
		return a.Reason < b.Reason
	})
}

// Validate checks basic invariants.
func (t *Trace) Validate() error {
	if t == nil {
		return errors.New("obs: trace is nil")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return errors.New("obs: trace event kind required at index " + strconv.Itoa(i))
		}
	}
	return nil
}

// CanonicalJSON returns the canonical JSON encoding of a copy of t.
func (t Trace) CanonicalJSON() ([]byte, error) {
	cp := Trace{RunLabel: t.RunLabel, Events: append([]ProbeEvent(nil), t.Events...)}
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(cp)
}

// Dump writes the trace's canonical JSON to buf.
func (t Trace) Dump(buf *bytes.Buffer) error {
	b, err := t.CanonicalJSON()
	if err != nil {
		return err
	}
	_, err = buf.Write(b)
	return err
}
