package passthrough

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/nodeloom/loom/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecute_ForwardsInputs(t *testing.T) {
	node, err := New(map[string]any{})
	require.NoError(t, err)

	inputs := map[string]any{"a": 1}

	out, err := node.Execute(context.Background(), protocol.NodeInputs{Inputs: inputs}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, inputs, out)
}

func TestExecute_WrapsUnderConfiguredKey(t *testing.T) {
	node, err := New(map[string]any{"key": "upstream"})
	require.NoError(t, err)

	inputs := map[string]any{"a": 1}

	out, err := node.Execute(context.Background(), protocol.NodeInputs{Inputs: inputs}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"upstream": inputs}, out)
}
