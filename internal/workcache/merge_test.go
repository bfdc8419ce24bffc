package workcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"esvc/internal/ehash"
	"esvc/internal/graph"
	"esvc/internal/replayengine"
	"esvc/internal/workcache"
)

func TestTryMergeSelfConsistentFrontierIsNoop(t *testing.T) {
	_, wc := newFixture(t, "x")
	h1, err := wc.ShelveEvent(nil, replayengine.CmdReplace, arg("x", "xx"))
	require.NoError(t, err)

	require.NoError(t, wc.TryMerge([]ehash.Hash{*h1}))
}

// TestTryMergeAcceptsIndependentForeignEvent simulates two replicas that
// each shelved one event against the same base without seeing the
// other's event, then merges the foreign one in: re-shelving must
// reproduce the same hash since the two touch disjoint letters.
func TestTryMergeAcceptsIndependentForeignEvent(t *testing.T) {
	g := graph.New()
	eng := replayengine.Engine{}

	wcA := workcache.New(g, eng, []byte("ab"))
	hA, err := wcA.ShelveEvent(nil, replayengine.CmdReplace, arg("a", "A"))
	require.NoError(t, err)

	wcB := workcache.New(g, eng, []byte("ab"))
	hB, err := wcB.ShelveEvent(nil, replayengine.CmdReplace, arg("b", "B"))
	require.NoError(t, err)

	require.NoError(t, wcA.TryMerge([]ehash.Hash{*hB}))

	data, _, err := wcA.RunForeachRecursively(map[ehash.Hash]graph.IncludeSpec{*hA: graph.IncludeAll, *hB: graph.IncludeAll})
	require.NoError(t, err)
	require.Equal(t, "AB", string(data))
}

func TestTryMergeUnknownFrontierIsDependencyNotFound(t *testing.T) {
	_, wc := newFixture(t, "x")
	ghost := ehash.Compute([]byte("ghost"))
	err := wc.TryMerge([]ehash.Hash{ghost})
	require.Error(t, err)
	var dnf *graph.DependencyNotFoundError
	require.ErrorAs(t, err, &dnf)
}
