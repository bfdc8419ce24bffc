// Package persist durably stores a Graph's event store and a WorkCache's
// memoized payloads to disk, and renders a Graph to Graphviz DOT for
// inspection. File layout and atomic-write discipline are adapted from
// the teacher's internal/recovery/state.Store (a run-scoped, atomic,
// fsync'd JSON store), repurposed here for the event DAG instead of
// task-run checkpoints.
package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"esvc/internal/ehash"
	"esvc/internal/event"
	"esvc/internal/graph"
)

// Store persists graph and cache snapshots under:
//
//	<baseDir>/.esvc/graph.json
//	<baseDir>/.esvc/cache/<key-hex>.bin
//
// All writes are atomic (temp file + fsync + rename + directory fsync).
type Store struct {
	baseDir string
}

// NewStore returns a Store rooted at baseDir, which must already exist.
func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("persist: baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) root() string        { return filepath.Join(s.baseDir, ".esvc") }
func (s *Store) graphPath() string   { return filepath.Join(s.root(), "graph.json") }
func (s *Store) cacheDir() string    { return filepath.Join(s.root(), "cache") }
func (s *Store) cachePath(key string) string {
	return filepath.Join(s.cacheDir(), keyToFilename(key)+".bin")
}

// graphDoc is the on-disk representation of a Graph: a JSON object whose
// field order and map-iteration order never affect the encoded bytes,
// since every collection is emitted as a sorted slice.
type graphDoc struct {
	Events  []eventDoc        `json:"events"`
	NStates []nstateDoc       `json:"nstates"`
}

type eventDoc struct {
	Hash  string   `json:"hash"`
	CmdID uint32   `json:"cmdId"`
	Arg   []byte   `json:"arg"` // encoding/json base64-encodes []byte automatically
	Deps  []depDoc `json:"deps"`
}

type depDoc struct {
	Hash string `json:"hash"`
	Hard bool   `json:"hard"`
}

type nstateDoc struct {
	Name string   `json:"name"`
	Top  []string `json:"top"`
}

// SaveGraph snapshots g to disk, deterministically ordered so that byte-
// identical graphs always produce byte-identical files.
func (s *Store) SaveGraph(g *graph.Graph) error {
	doc := graphDoc{}

	hashes := make([]ehash.Hash, 0, len(g.Events))
	for h := range g.Events {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })

	for _, h := range hashes {
		ev := g.Events[h]
		deps := make([]depDoc, len(ev.Deps))
		for i, d := range ev.Deps {
			deps[i] = depDoc{Hash: d.Hash.String(), Hard: d.Hard}
		}
		sort.Slice(deps, func(i, j int) bool {
			if deps[i].Hash != deps[j].Hash {
				return deps[i].Hash < deps[j].Hash
			}
			return deps[i].Hard && !deps[j].Hard
		})
		doc.Events = append(doc.Events, eventDoc{
			Hash:  h.String(),
			CmdID: ev.CmdID,
			Arg:   ev.Arg,
			Deps:  deps,
		})
	}

	names := make([]string, 0, len(g.NStates))
	for n := range g.NStates {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		top := make([]string, len(g.NStates[n]))
		for i, h := range g.NStates[n] {
			top[i] = h.String()
		}
		sort.Strings(top)
		doc.NStates = append(doc.NStates, nstateDoc{Name: n, Top: top})
	}

	if err := ensureDirDurable(s.root()); err != nil {
		return fmt.Errorf("persist: ensure root: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: marshal graph: %w", err)
	}
	data = append(data, '\n')
	return writeFileAtomicDurable(s.graphPath(), data, 0o644)
}

// LoadGraph reconstructs a Graph from disk. Returns an empty Graph,
// not an error, when no snapshot exists yet.
func (s *Store) LoadGraph() (*graph.Graph, error) {
	g := graph.New()

	f, err := os.Open(s.graphPath())
	if err != nil {
		if os.IsNotExist(err) {
			return g, nil
		}
		return nil, err
	}
	defer f.Close()

	var doc graphDoc
	dec := json.NewDecoder(f)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("persist: decode graph: %w", err)
	}

	for _, ed := range doc.Events {
		deps := make([]event.DepEdge, len(ed.Deps))
		for i, dd := range ed.Deps {
			h, err := ehash.Parse(dd.Hash)
			if err != nil {
				return nil, fmt.Errorf("persist: dep hash: %w", err)
			}
			deps[i] = event.DepEdge{Hash: h, Hard: dd.Hard}
		}
		ev := event.Event{CmdID: ed.CmdID, Arg: ed.Arg, Deps: deps}
		wantHash, err := ehash.Parse(ed.Hash)
		if err != nil {
			return nil, fmt.Errorf("persist: event hash: %w", err)
		}
		if collision, h := g.EnsureEvent(ev); collision != nil || h != wantHash {
			return nil, fmt.Errorf("persist: event %s does not re-hash to itself on load", ed.Hash)
		}
	}

	for _, nd := range doc.NStates {
		top := make([]ehash.Hash, len(nd.Top))
		for i, hs := range nd.Top {
			h, err := ehash.Parse(hs)
			if err != nil {
				return nil, fmt.Errorf("persist: nstate hash: %w", err)
			}
			top[i] = h
		}
		g.NStates[nd.Name] = top
	}

	return g, nil
}

// SaveCacheEntry persists one WorkCache payload keyed by its closed-set
// key. Entries are write-once: the cache's contents are a pure function
// of (graph, executor, key), so re-saving an existing key is a no-op.
func (s *Store) SaveCacheEntry(key string, payload []byte) error {
	if err := ensureDirDurable(s.cacheDir()); err != nil {
		return fmt.Errorf("persist: ensure cache dir: %w", err)
	}
	path := s.cachePath(key)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeFileAtomicDurable(path, payload, 0o644)
}

// LoadCacheEntry reads back a previously saved cache entry. Returns
// (nil, false, nil) when absent.
func (s *Store) LoadCacheEntry(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.cachePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func keyToFilename(key string) string {
	if key == "" {
		return "root"
	}
	return fmt.Sprintf("%x", key)
}

func ensureDirDurable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := fsyncDir(dir); err != nil {
		return err
	}
	parent := filepath.Dir(dir)
	if parent != dir {
		return fsyncDir(parent)
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
