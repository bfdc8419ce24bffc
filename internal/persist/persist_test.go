package persist_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"esvc/internal/ehash"
	"esvc/internal/event"
	"esvc/internal/graph"
	"esvc/internal/persist"
	"esvc/internal/replayengine"
)

func TestSaveLoadGraphRoundTrips(t *testing.T) {
	dir := t.TempDir()
	g := graph.New()

	_, h1 := g.EnsureEvent(event.Event{CmdID: replayengine.CmdReplace, Arg: replayengine.EncodeArg("a", "A")})
	_, h2 := g.EnsureEvent(event.Event{
		CmdID: replayengine.CmdReplace,
		Arg:   replayengine.EncodeArg("b", "B"),
		Deps:  []event.DepEdge{{Hash: h1, Hard: true}},
	})
	g.NStates["main"] = []ehash.Hash{h2}

	s, err := persist.NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveGraph(g))

	loaded, err := s.LoadGraph()
	require.NoError(t, err)
	require.Len(t, loaded.Events, 2)
	require.Equal(t, event.Encode(g.Events[h1]), event.Encode(loaded.Events[h1]))
	require.Equal(t, event.Encode(g.Events[h2]), event.Encode(loaded.Events[h2]))
	require.Equal(t, g.NStates["main"], loaded.NStates["main"])
}

func TestLoadGraphMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := persist.NewStore(dir)
	require.NoError(t, err)

	g, err := s.LoadGraph()
	require.NoError(t, err)
	require.Empty(t, g.Events)
}

func TestSaveLoadCacheEntryRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := persist.NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveCacheEntry("somekey", []byte("payload")))
	data, ok, err := s.LoadCacheEntry("somekey")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "payload", string(data))

	_, ok, err = s.LoadCacheEntry("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDOTRendersNodesAndEdges(t *testing.T) {
	g := graph.New()
	_, h1 := g.EnsureEvent(event.Event{CmdID: replayengine.CmdReplace, Arg: replayengine.EncodeArg("a", "A")})
	_, h2 := g.EnsureEvent(event.Event{
		CmdID: replayengine.CmdReplace,
		Arg:   replayengine.EncodeArg("b", "B"),
		Deps:  []event.DepEdge{{Hash: h1, Hard: true}},
	})

	out := persist.DOT(g)
	require.Contains(t, out, "digraph {")
	require.Contains(t, out, h1.String())
	require.Contains(t, out, h2.String())
	require.Contains(t, out, h2.String()+"\" -> \""+h1.String())
}
