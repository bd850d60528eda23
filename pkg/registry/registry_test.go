package registry

import (
	"io"
	"log/slog"
	"testing"

	"github.com/nodeloom/loom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandlerFor_EveryKind(t *testing.T) {
	reg := testRegistry()

	configs := map[models.NodeKind]map[string]any{
		models.NodeKindQuery:    {"query": "SELECT 1"},
		models.NodeKindHTTPCall: {"url": "http://localhost/ping"},
	}

	for _, kind := range models.Kinds() {
		node := &models.Node{ID: "n", Kind: kind, Label: "N", Config: configs[kind]}

		handler, err := reg.HandlerFor(node)
		require.NoError(t, err, "kind %s", kind)
		assert.NotNil(t, handler, "kind %s", kind)
	}
}

func TestHandlerFor_UnknownKind(t *testing.T) {
	_, err := testRegistry().HandlerFor(&models.Node{ID: "n", Kind: "warp", Label: "N"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `node kind "warp" not registered`)
}

func TestSchemaFor_EveryKindHasSchema(t *testing.T) {
	for _, kind := range models.Kinds() {
		schema, err := SchemaFor(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, "object", schema["type"], "kind %s", kind)
	}
}

func TestValidateConfig_RejectsWrongType(t *testing.T) {
	node := &models.Node{
		ID:     "bad",
		Kind:   models.NodeKindTransform,
		Label:  "Bad",
		Config: map[string]any{"expression": 42},
	}

	err := testRegistry().ValidateConfig(node)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config for node bad")
}

func TestValidateConfig_MissingRequiredField(t *testing.T) {
	node := &models.Node{ID: "q", Kind: models.NodeKindQuery, Label: "Q"}

	err := testRegistry().ValidateConfig(node)

	require.Error(t, err)
}

func TestValidateConfig_NilConfigAllowedWhenNothingRequired(t *testing.T) {
	node := &models.Node{ID: "p", Kind: models.NodeKindPassthrough, Label: "P"}

	assert.NoError(t, testRegistry().ValidateConfig(node))
}

func TestHealthCheck_ListsKinds(t *testing.T) {
	details, healthy := testRegistry().HealthCheck()

	assert.True(t, healthy)
	assert.ElementsMatch(t,
		[]string{"ingress", "transform", "visualize", "query", "httpcall", "passthrough"},
		details["node_kinds"],
	)
}
