package httpcall

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nodeloom/loom/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(map[string]any{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field 'url'")
}

func TestExecute_DecodesJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	node, err := New(map[string]any{"url": server.URL})
	require.NoError(t, err)

	out, err := node.Execute(context.Background(), protocol.NodeInputs{}, testLogger())
	require.NoError(t, err)

	result := out.(map[string]any)
	assert.Equal(t, http.StatusOK, result["status_code"])
	assert.Equal(t, map[string]any{"ok": true}, result["body"])
}

func TestExecute_SendsMethodHeadersAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"key":"value"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer server.Close()

	node, err := New(map[string]any{
		"url":    server.URL,
		"method": "post",
		"body":   `{"key":"value"}`,
		"headers": map[string]any{
			"Authorization": "Bearer token",
		},
	})
	require.NoError(t, err)

	out, err := node.Execute(context.Background(), protocol.NodeInputs{}, testLogger())
	require.NoError(t, err)

	result := out.(map[string]any)
	assert.Equal(t, http.StatusCreated, result["status_code"])
	// Non-JSON responses come back as the raw string.
	assert.Equal(t, "created", result["body"])
}

func TestExecute_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	node, err := New(map[string]any{"url": url})
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), protocol.NodeInputs{}, testLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}
