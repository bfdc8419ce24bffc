// Package workcache implements the memoized-replay cache keyed by the
// exact closed set of applied events, the dependency-minimization
// ("shelve") algorithm, and merge (spec.md §4.4-§4.6).
package workcache

import (
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"esvc/internal/ehash"
	"esvc/internal/executor"
	"esvc/internal/graph"
)

// Recorder observes shelve/merge decisions for logging, tracing, or
// metrics (internal/obs provides a concrete implementation). A nil
// Recorder is a valid, silent no-op, mirroring the teacher's
// trace.NopSink/SafeRecord discipline (internal/trace/recorder.go).
type Recorder interface {
	RecordCacheLookup(hit bool)
	RecordProbe(candidate ehash.Hash, independent bool)
	RecordShelved(h *ehash.Hash, hardDeps, softDeps int)
	RecordMergeOutcome(h ehash.Hash, err error)
}

type hashSet = map[ehash.Hash]struct{}

// WorkCache is keyed by the canonical encoding of a closed hash set. The
// canonical key is the only correct key (spec.md §4.4's "caching
// discipline"): different orderings of commutative events reach the same
// payload and must collapse to one entry.
type WorkCache struct {
	mu    sync.Mutex
	store map[string][]byte

	graph    *graph.Graph
	exec     executor.Executor
	recorder Recorder

	sf     singleflight.Group
	recent *lru.Cache[string, []byte]
}

// New initializes the cache with entry ∅ -> initial (spec.md §4.4).
func New(g *graph.Graph, ex executor.Executor, initial []byte) *WorkCache {
	return &WorkCache{
		store: map[string][]byte{"": append([]byte(nil), initial...)},
		graph: g,
		exec:  ex,
	}
}

// WithRecorder attaches an observer for shelve/merge/cache events.
func (wc *WorkCache) WithRecorder(r Recorder) *WorkCache {
	wc.recorder = r
	return wc
}

// WithRecentCache attaches a bounded LRU of capacity entries to which
// every newly computed payload is added alongside the authoritative,
// never-evicted store map (which is what spec.md §4.4's write-once growth
// invariant describes). Nothing reads the LRU back: this package exposes
// no lookup on it, and all lookups go to the authoritative store.
func (wc *WorkCache) WithRecentCache(capacity int) *WorkCache {
	if capacity <= 0 {
		return wc
	}
	c, err := lru.New[string, []byte](capacity)
	if err == nil {
		wc.recent = c
	}
	return wc
}

func (wc *WorkCache) record(f func(Recorder)) {
	if wc.recorder != nil {
		f(wc.recorder)
	}
}

// Clone returns an independent copy of wc sharing the same Graph and
// Executor but with its own cache map, for use by parallel probing
// (spec.md §5: "workers clone a cache slice").
func (wc *WorkCache) Clone() *WorkCache {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	store := make(map[string][]byte, len(wc.store))
	for k, v := range wc.store {
		store[k] = v
	}
	return &WorkCache{store: store, graph: wc.graph, exec: wc.exec, recorder: wc.recorder}
}

func keyOf(hashes []ehash.Hash) string {
	if len(hashes) == 0 {
		return ""
	}
	sorted := append([]ehash.Hash(nil), hashes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	var b strings.Builder
	b.Grow(len(sorted) * ehash.Size)
	for _, h := range sorted {
		b.Write(h[:])
	}
	return b.String()
}

func toSet(hashes []ehash.Hash) hashSet {
	s := make(hashSet, len(hashes))
	for _, h := range hashes {
		s[h] = struct{}{}
	}
	return s
}

func sortedSlice(s hashSet) []ehash.Hash {
	out := make([]ehash.Hash, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func diffAgainst(hashes []ehash.Hash, tt hashSet) []ehash.Hash {
	out := make([]ehash.Hash, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := tt[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}

// RunRecursively evaluates target (and transitively its deps) starting
// from the payload cached at tt, a closed set that must already be
// present in the cache, populating the cache with every intermediate
// tt ∪ {subset}. With incl = IncludeOnlyDeps it stops after all deps of
// target are applied, before target itself.
func (wc *WorkCache) RunRecursively(tt []ehash.Hash, target ehash.Hash, incl graph.IncludeSpec) ([]byte, []ehash.Hash, error) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.runRecursivelyLocked(toSet(tt), target, incl)
}

func (wc *WorkCache) runRecursivelyLocked(tt hashSet, mainEvid ehash.Hash, incl graph.IncludeSpec) ([]byte, []ehash.Hash, error) {
	startKey := keyOf(sortedSlice(tt))
	data, ok := wc.store[startKey]
	wc.record(func(r Recorder) { r.RecordCacheLookup(ok) })
	if !ok {
		return nil, nil, graph.ErrDatasetNotFound
	}

	stack := []ehash.Hash{mainEvid}
	for len(stack) > 0 {
		evid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, present := tt[evid]; present {
			continue
		}
		if evid == mainEvid && len(stack) != 0 {
			return nil, nil, &graph.DependencyCircuitError{Hash: mainEvid}
		}

		ev, found := wc.graph.Events[evid]
		if !found {
			return nil, nil, &graph.DependencyNotFoundError{Hash: evid}
		}

		necessary := diffAgainst(ev.AllDeps(), tt)
		if len(necessary) > 0 {
			stack = append(stack, evid)
			stack = append(stack, necessary[0])
			stack = append(stack, necessary[1:]...)
			continue
		}

		if evid == mainEvid && incl != graph.IncludeAll {
			break
		}

		newHashes := append(sortedSlice(tt), evid)
		newKey := keyOf(newHashes)
		if cached, hit := wc.store[newKey]; hit {
			wc.record(func(r Recorder) { r.RecordCacheLookup(true) })
			data = cached
		} else {
			wc.record(func(r Recorder) { r.RecordCacheLookup(false) })
			out, err := wc.exec.RunEventBare(ev.CmdID, ev.Arg, data)
			if err != nil {
				return nil, nil, executor.Wrap(err)
			}
			wc.store[newKey] = out
			if wc.recent != nil {
				wc.recent.Add(newKey, out)
			}
			data = out
		}
		tt[evid] = struct{}{}
	}

	finalHashes := sortedSlice(tt)
	return wc.store[keyOf(finalHashes)], finalHashes, nil
}

// RunForeachRecursively folds RunRecursively over targets starting from
// the empty set, in ascending-hash order (the natural iteration order of
// the targets map, matching the original BTreeMap-keyed implementation).
// Concurrent calls requesting an identical target set are coalesced via
// singleflight, since the computation is a pure function of its key.
func (wc *WorkCache) RunForeachRecursively(targets map[ehash.Hash]graph.IncludeSpec) ([]byte, []ehash.Hash, error) {
	sfKey := foreachKey(targets)
	type result struct {
		payload []byte
		tt      []ehash.Hash
	}
	v, err, _ := wc.sf.Do(sfKey, func() (any, error) {
		tt := []ehash.Hash{}
		for _, h := range sortedTargetKeys(targets) {
			_, newTT, err := wc.RunRecursively(tt, h, targets[h])
			if err != nil {
				return nil, err
			}
			tt = newTT
		}
		wc.mu.Lock()
		data := wc.store[keyOf(tt)]
		wc.mu.Unlock()
		return result{payload: data, tt: tt}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	r := v.(result)
	return r.payload, r.tt, nil
}

func sortedTargetKeys(m map[ehash.Hash]graph.IncludeSpec) []ehash.Hash {
	out := make([]ehash.Hash, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func foreachKey(m map[ehash.Hash]graph.IncludeSpec) string {
	var b strings.Builder
	for _, h := range sortedTargetKeys(m) {
		b.Write(h[:])
		if m[h] == graph.IncludeOnlyDeps {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
	}
	return b.String()
}
