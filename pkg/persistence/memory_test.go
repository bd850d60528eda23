package persistence

import (
	"context"
	"testing"

	"github.com/nodeloom/loom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGraphs_SaveAndFetch(t *testing.T) {
	t.Parallel()

	p := NewMemoryPersistence()
	ctx := context.Background()

	g := &models.Graph{ID: "graph-1", Name: "Test", Active: true}
	require.NoError(t, p.GraphRepository().SaveGraph(ctx, g))

	fetched, err := p.GraphRepository().GraphByID(ctx, "graph-1")
	require.NoError(t, err)
	assert.Equal(t, "Test", fetched.Name)

	all, err := p.GraphRepository().Graphs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryGraphs_NotFound(t *testing.T) {
	t.Parallel()

	p := NewMemoryPersistence()

	_, err := p.GraphRepository().GraphByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrGraphNotFound)

	err = p.GraphRepository().DeleteGraph(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrGraphNotFound)
}

func TestMemoryGraphs_Delete(t *testing.T) {
	t.Parallel()

	p := NewMemoryPersistence()
	ctx := context.Background()

	require.NoError(t, p.GraphRepository().SaveGraph(ctx, &models.Graph{ID: "graph-1"}))
	require.NoError(t, p.GraphRepository().DeleteGraph(ctx, "graph-1"))

	_, err := p.GraphRepository().GraphByID(ctx, "graph-1")
	assert.ErrorIs(t, err, ErrGraphNotFound)
}

func TestMemoryWebhooks_SaveAndFetch(t *testing.T) {
	t.Parallel()

	p := NewMemoryPersistence()
	ctx := context.Background()

	w, err := models.NewWebhook("graph-1", "POST", "", nil)
	require.NoError(t, err)
	require.NoError(t, p.WebhookRepository().SaveWebhook(ctx, w))

	fetched, err := p.WebhookRepository().WebhookByKey(ctx, w.Key)
	require.NoError(t, err)
	assert.Equal(t, "graph-1", fetched.GraphID)

	_, err = p.WebhookRepository().WebhookByKey(ctx, "missing")
	assert.ErrorIs(t, err, ErrWebhookNotFound)
}

func TestMemoryWebhooks_RecordCall(t *testing.T) {
	t.Parallel()

	p := NewMemoryPersistence()
	ctx := context.Background()

	w, err := models.NewWebhook("graph-1", "POST", "", nil)
	require.NoError(t, err)
	require.NoError(t, p.WebhookRepository().SaveWebhook(ctx, w))

	require.NoError(t, p.WebhookRepository().RecordCall(ctx, w.Key))
	require.NoError(t, p.WebhookRepository().RecordCall(ctx, w.Key))

	fetched, err := p.WebhookRepository().WebhookByKey(ctx, w.Key)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fetched.CallCount)
	assert.NotNil(t, fetched.LastCalledAt)

	assert.ErrorIs(t, p.WebhookRepository().RecordCall(ctx, "missing"), ErrWebhookNotFound)
}

func TestMemoryPersistence_Lifecycle(t *testing.T) {
	t.Parallel()

	p := NewMemoryPersistence()

	assert.NoError(t, p.HealthCheck(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
}
