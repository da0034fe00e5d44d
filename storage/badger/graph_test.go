package badger

import (
	"context"
	"testing"

	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/graph"
	"github.com/poiesic/postflow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphStore_EnsureSchema(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	schema := graph.NewSchema("postflow", "social", core.NewVisibility(core.LevelUnclassified, false))

	require.NoError(t, stores.Graph.EnsureSchema(ctx, testCred, schema))

	err := stores.Graph.EnsureSchema(ctx, testCred, schema)
	assert.ErrorIs(t, err, storage.ErrSchemaExists)

	stored, err := stores.Graph.Schema(ctx, "social")
	require.NoError(t, err)
	assert.Equal(t, schema.EdgeLabels, stored.EdgeLabels)
	assert.Equal(t, core.LevelUnclassified, stored.Visibility.Level())
}

func TestGraphStore_WriteAndRead(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	vis := core.NewVisibility(core.LevelFOUO, false)

	alice := core.User{ID: "u1", ScreenName: "alice"}
	bob := core.User{ID: "u2", ScreenName: "bob"}
	g := graph.Build(&core.Post{ID: "1", Author: alice, Mentions: []core.User{bob}}, vis)

	require.NoError(t, stores.Graph.WriteGraph(ctx, testCred, "social", vis, g))
	// writing the same graph again is idempotent
	require.NoError(t, stores.Graph.WriteGraph(ctx, testCred, "social", vis, g))

	v, err := stores.Graph.Vertex(ctx, testCred, "social", "alice")
	require.NoError(t, err)
	assert.Equal(t, graph.KeyTwitterID, v.Selector)
	assert.Len(t, v.Properties, 2)

	out, err := stores.Graph.Edges(ctx, testCred, "social", "alice")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, graph.LabelMentioned, out[0].Label)
	assert.Equal(t, "bob", out[0].In)

	back, err := stores.Graph.Edges(ctx, testCred, "social", "bob")
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, graph.LabelMentionedBy, back[0].Label)

	_, err = stores.Graph.Vertex(ctx, testCred, "social", "carol")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGraphStore_VertexUpsertMergesProperties(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	low := core.NewVisibility(core.LevelUnclassified, false)
	high := core.NewVisibility(core.LevelSecret, false)

	first := &graph.Graph{Vertices: []graph.Vertex{{
		ID:         "alice",
		Selector:   graph.KeyTwitterID,
		Properties: []graph.Property{{Key: graph.KeyScreenName, Value: "alice", Visibility: low}},
	}}}
	second := &graph.Graph{Vertices: []graph.Vertex{{
		ID: "alice",
		Properties: []graph.Property{
			{Key: graph.KeyScreenName, Value: "alice", Visibility: high},
			{Key: graph.KeyTwitterID, Value: "u1"},
		},
	}}}

	require.NoError(t, stores.Graph.WriteGraph(ctx, testCred, "social", low, first))
	require.NoError(t, stores.Graph.WriteGraph(ctx, testCred, "social", high, second))

	v, err := stores.Graph.Vertex(ctx, testCred, "social", "alice")
	require.NoError(t, err)
	assert.Equal(t, graph.KeyTwitterID, v.Selector, "selector kept from first write")
	require.Len(t, v.Properties, 2)

	name, _ := v.Property(graph.KeyScreenName)
	assert.Equal(t, core.LevelSecret, name.Visibility.Level())
	id, _ := v.Property(graph.KeyTwitterID)
	assert.Equal(t, high, id.Visibility, "unset visibility inherits the graph visibility")
}

func TestGraphStore_RejectsUndeclaredLabel(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	vis := core.NewVisibility(core.LevelUnclassified, false)

	schema := graph.NewSchema("postflow", "social", vis)
	schema.EdgeLabels = []graph.Label{graph.LabelMentioned}
	require.NoError(t, stores.Graph.EnsureSchema(ctx, testCred, schema))

	g := &graph.Graph{Edges: []graph.Edge{{Out: "a", In: "b", Label: graph.LabelRetweeted, Visibility: vis}}}
	err := stores.Graph.WriteGraph(ctx, testCred, "social", vis, g)
	assert.ErrorIs(t, err, storage.ErrUnknownLabel)
}

func TestGraphStore_EmptyGraph(t *testing.T) {
	stores := newTestStores(t)
	vis := core.NewVisibility(core.LevelUnclassified, false)

	assert.NoError(t, stores.Graph.WriteGraph(context.Background(), testCred, "social", vis, &graph.Graph{}))
	assert.NoError(t, stores.Graph.WriteGraph(context.Background(), testCred, "social", vis, nil))
}
