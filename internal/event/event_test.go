package event

import (
	"testing"

	"github.com/stretchr/testify/require"

	"esvc/internal/ehash"
)

func TestHashStability(t *testing.T) {
	d1 := ehash.Compute([]byte("dep-one"))
	d2 := ehash.Compute([]byte("dep-two"))
	ev := Event{
		CmdID: 7,
		Arg:   []byte("replace:x:xx"),
		Deps:  []DepEdge{{Hash: d2, Hard: true}, {Hash: d1, Hard: false}},
	}

	encoded := Encode(ev)
	h1 := Hash(ev)

	// re-encode from a structurally identical but differently-ordered Deps
	// slice: canonical ordering must make the two byte-identical.
	ev2 := Event{
		CmdID: 7,
		Arg:   []byte("replace:x:xx"),
		Deps:  []DepEdge{{Hash: d1, Hard: false}, {Hash: d2, Hard: true}},
	}
	require.Equal(t, encoded, Encode(ev2))
	require.Equal(t, h1, Hash(ev2))
}

func TestHashDiffersOnCmdIDWithSameArg(t *testing.T) {
	a := Event{CmdID: 1, Arg: []byte("same")}
	b := Event{CmdID: 2, Arg: []byte("same")}
	require.NotEqual(t, Hash(a), Hash(b))
}

func TestHardAndSoftDepsPartition(t *testing.T) {
	hard := ehash.Compute([]byte("hard"))
	soft := ehash.Compute([]byte("soft"))
	ev := Event{
		CmdID: 1,
		Deps:  []DepEdge{{Hash: hard, Hard: true}, {Hash: soft, Hard: false}},
	}
	require.Equal(t, []ehash.Hash{hard}, ev.HardDeps())
	require.Equal(t, []ehash.Hash{soft}, ev.SoftDeps())
	require.Len(t, ev.AllDeps(), 2)
}

func TestEncodeEmptyArgAndDeps(t *testing.T) {
	ev := Event{CmdID: 0}
	require.NotPanics(t, func() { Encode(ev) })
	require.NotEmpty(t, Encode(ev))
}
