package replayengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunEventBareReplaces(t *testing.T) {
	e := Engine{}
	out, err := e.RunEventBare(CmdReplace, EncodeArg("x", "xx"), []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "xx", string(out))
}

func TestRunEventBareUnknownCommand(t *testing.T) {
	e := Engine{}
	_, err := e.RunEventBare(99, EncodeArg("x", "y"), []byte("x"))
	require.Error(t, err)
}

func TestArgRoundTrip(t *testing.T) {
	arg := EncodeArg("needle with spaces", "")
	needle, repl, err := DecodeArg(arg)
	require.NoError(t, err)
	require.Equal(t, "needle with spaces", needle)
	require.Equal(t, "", repl)
}

func TestNonIdempotentSelfRepeatSequence(t *testing.T) {
	// spec.md §8 scenario 1
	e := Engine{}
	payload := []byte("x")
	for _, step := range []struct{ needle, repl string }{
		{"x", "xx"},
		{"x", "xx"},
		{"x", "y"},
	} {
		out, err := e.RunEventBare(CmdReplace, EncodeArg(step.needle, step.repl), payload)
		require.NoError(t, err)
		payload = out
	}
	require.Equal(t, "yyyy", string(payload))
}
