package workcache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"esvc/internal/ehash"
	"esvc/internal/graph"
	"esvc/internal/replayengine"
	"esvc/internal/workcache"
)

func newFixture(t *testing.T, initial string) (*graph.Graph, *workcache.WorkCache) {
	t.Helper()
	g := graph.New()
	wc := workcache.New(g, replayengine.Engine{}, []byte(initial))
	return g, wc
}

func arg(needle, repl string) []byte {
	return replayengine.EncodeArg(needle, repl)
}

func TestRunForeachRecursivelyEmptySetReturnsInitial(t *testing.T) {
	_, wc := newFixture(t, "seed")
	data, tt, err := wc.RunForeachRecursively(nil)
	require.NoError(t, err)
	require.Empty(t, tt)
	require.Equal(t, "seed", string(data))
}

func TestRunRecursivelyUnknownStartIsDatasetNotFound(t *testing.T) {
	_, wc := newFixture(t, "seed")
	ghost := ehash.Compute([]byte("ghost"))
	_, _, err := wc.RunRecursively([]ehash.Hash{ghost}, ghost, graph.IncludeAll)
	require.ErrorIs(t, err, graph.ErrDatasetNotFound)
}

func TestRunForeachRecursivelyChainsDependencies(t *testing.T) {
	g, wc := newFixture(t, "x")
	hA, err := wc.ShelveEvent(nil, replayengine.CmdReplace, arg("x", "xx"))
	require.NoError(t, err)
	require.NotNil(t, hA)

	hB, err := wc.ShelveEvent([]ehash.Hash{*hA}, replayengine.CmdReplace, arg("x", "y"))
	require.NoError(t, err)
	require.NotNil(t, hB)

	evB := g.Events[*hB]
	require.ElementsMatch(t, []ehash.Hash{*hA}, evB.HardDeps())

	data, tt, err := wc.RunForeachRecursively(map[ehash.Hash]graph.IncludeSpec{*hB: graph.IncludeAll})
	require.NoError(t, err)
	require.Equal(t, "yy", string(data))
	require.ElementsMatch(t, []ehash.Hash{*hA, *hB}, tt)
}

func TestCheckPairwiseMergeableAgreesOnOverlap(t *testing.T) {
	_, wc := newFixture(t, "ab")
	hA, err := wc.ShelveEvent(nil, replayengine.CmdReplace, arg("a", "A"))
	require.NoError(t, err)
	hB, err := wc.ShelveEvent(nil, replayengine.CmdReplace, arg("b", "B"))
	require.NoError(t, err)

	ok, err := wc.CheckPairwiseMergeable(context.Background(), []ehash.Hash{*hA, *hB})
	require.NoError(t, err)
	require.True(t, ok)
}
