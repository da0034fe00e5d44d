package sink

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/graph"
	"github.com/poiesic/postflow/provenance"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
	"github.com/poiesic/postflow/storage/badger"
	"github.com/poiesic/postflow/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCred = security.NewCredential("postflow", "test-token", time.Unix(0, 0))

func newStores(t *testing.T) *badger.Stores {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func registeredPost(t *testing.T, registrar *provenance.Registrar, images ...core.Image) *core.Post {
	t.Helper()
	post := &core.Post{
		ID:       "100",
		Author:   core.User{ID: "u1", ScreenName: "alice"},
		Mentions: []core.User{{ID: "u2", ScreenName: "bob"}},
		Raw:      []byte(`{"id_str":"100"}`),
	}
	for _, img := range images {
		post.AddImage(img)
	}
	_, err := registrar.RegisterPost(context.Background(), post)
	require.NoError(t, err)
	return post
}

func TestDocumentSink_Deliver(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "docs.sqlite"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	s, err := NewDocumentSink(store, testCred, "posts", nil)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx))

	post := &core.Post{ID: "1", ProvenanceID: 7, Raw: []byte(`{"id_str":"1"}`)}
	vis := core.NewVisibility(core.LevelSecret, false)
	require.NoError(t, s.Deliver(ctx, Delivery{Post: post, Visibility: vis, Document: []byte(`{"id_str":"1","provenance_id":7}`)}))

	n, err := store.Count(ctx, testCred, "posts")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDocumentSink_StoreError(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "docs.sqlite"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	s, err := NewDocumentSink(store, testCred, "posts", nil)
	require.NoError(t, err)

	err = s.Deliver(context.Background(), Delivery{Post: &core.Post{ID: "1"}})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "document", storeErr.Sink)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestNewSinks_RequireStore(t *testing.T) {
	_, err := NewDocumentSink(nil, testCred, "posts", nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewGraphSink(nil, testCred, graph.Schema{}, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewImageSink(nil, nil, testCred, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestGraphSink(t *testing.T) {
	stores := newStores(t)
	ctx := context.Background()
	vis := core.NewVisibility(core.LevelUnclassified, false)

	s, err := NewGraphSink(stores.Graph, testCred, graph.NewSchema("postflow", "social", vis), nil)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx))
	// a second Init finds the schema and carries on
	require.NoError(t, s.Init(ctx))

	post := &core.Post{
		ID:       "1",
		Author:   core.User{ID: "u1", ScreenName: "alice"},
		Mentions: []core.User{{ID: "u2", ScreenName: "bob"}},
	}
	require.NoError(t, s.Deliver(ctx, Delivery{Post: post, Visibility: vis}))

	edges, err := stores.Graph.Edges(ctx, testCred, "social", "alice")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, graph.LabelMentioned, edges[0].Label)
}

func TestImageSink_Deliver(t *testing.T) {
	stores := newStores(t)
	ctx := context.Background()
	registrar, err := provenance.NewRegistrar(stores.Registry, testCred)
	require.NoError(t, err)

	one := core.NewImage([]byte("one"), "http://pbs.example/p1.jpg", "p1.jpg")
	two := core.NewImage([]byte("two"), "http://pbs.example/p2.jpg", "p2.jpg")
	post := registeredPost(t, registrar, one, two)

	s, err := NewImageSink(stores.Images, registrar, testCred, nil)
	require.NoError(t, err)
	vis := core.NewVisibility(core.LevelConfidential, true)
	require.NoError(t, s.Deliver(ctx, Delivery{Post: post, Visibility: vis}))

	record, err := stores.Images.Get(ctx, testCred, one.ID())
	require.NoError(t, err)
	assert.Equal(t, provenance.PostURI(post.ID), record.ParentURI)

	lineage, err := stores.Registry.Lookup(ctx, testCred, provenance.ImageURI("p1.jpg"))
	require.NoError(t, err)
	id, ok := record.Visibility.ProvenanceID()
	require.True(t, ok)
	assert.Equal(t, lineage.ID, id, "image visibility carries the image's own provenance id")
	assert.Equal(t, []core.ProvenanceID{post.ProvenanceID}, lineage.Parents)
}

func TestImageSink_NoImages(t *testing.T) {
	stores := newStores(t)
	registrar, err := provenance.NewRegistrar(stores.Registry, testCred)
	require.NoError(t, err)
	s, err := NewImageSink(stores.Images, registrar, testCred, nil)
	require.NoError(t, err)

	assert.NoError(t, s.Deliver(context.Background(), Delivery{Post: &core.Post{ID: "1"}}))
}

// skewedIndex returns a fixed id set regardless of what was submitted.
type skewedIndex struct {
	ids []core.ImageID
	err error
}

func (x *skewedIndex) IngestDocuments(ctx context.Context, cred security.Credential, docs []storage.ImageDocument) ([]storage.IngestResult, error) {
	if x.err != nil {
		return nil, x.err
	}
	return []storage.IngestResult{{FileName: "any", ImageIDs: x.ids}}, nil
}

func (x *skewedIndex) Close() error { return nil }

func TestImageSink_ConsistencyError(t *testing.T) {
	stores := newStores(t)
	registrar, err := provenance.NewRegistrar(stores.Registry, testCred)
	require.NoError(t, err)

	img := core.NewImage([]byte("one"), "", "p1.jpg")
	post := registeredPost(t, registrar, img)

	s, err := NewImageSink(&skewedIndex{ids: []core.ImageID{"bogus"}}, registrar, testCred, nil)
	require.NoError(t, err)

	err = s.Deliver(context.Background(), Delivery{Post: post})
	var consistency *ConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, post.ID, consistency.PostID)
	assert.Equal(t, []core.ImageID{img.ID()}, consistency.Missing)
	assert.Equal(t, []core.ImageID{"bogus"}, consistency.Unexpected)
}

func TestImageSink_IngestFailure(t *testing.T) {
	stores := newStores(t)
	registrar, err := provenance.NewRegistrar(stores.Registry, testCred)
	require.NoError(t, err)
	post := registeredPost(t, registrar, core.NewImage([]byte("one"), "", "p1.jpg"))

	s, err := NewImageSink(&skewedIndex{err: storage.ErrTransport}, registrar, testCred, nil)
	require.NoError(t, err)

	err = s.Deliver(context.Background(), Delivery{Post: post})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "ingest", storeErr.Op)
	assert.ErrorIs(t, err, storage.ErrTransport)
}

func TestImageSink_RegistrationFailureAbandonsBatch(t *testing.T) {
	stores := newStores(t)
	ctx := context.Background()
	registrar, err := provenance.NewRegistrar(stores.Registry, testCred)
	require.NoError(t, err)

	shared := core.NewImage([]byte("shared"), "", "shared.jpg")
	fresh := core.NewImage([]byte("fresh"), "", "fresh.jpg")

	// an earlier post already registered shared.jpg in this run
	earlier := registeredPost(t, registrar, shared)
	_, err = registrar.RegisterImage(ctx, earlier.ID, shared)
	require.NoError(t, err)

	post := &core.Post{ID: "retweet"}
	_, err = registrar.RegisterPost(ctx, post)
	require.NoError(t, err)
	post.AddImage(shared)
	post.AddImage(fresh)

	s, err := NewImageSink(stores.Images, registrar, testCred, nil)
	require.NoError(t, err)

	err = s.Deliver(ctx, Delivery{Post: post, Visibility: core.NewVisibility(core.LevelSecret, true)})
	var regErr *provenance.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, provenance.KindDuplicate, regErr.Kind)
	assert.Equal(t, provenance.ImageURI("shared.jpg"), regErr.URI)

	for _, id := range post.ImageIDs() {
		_, err := stores.Images.Get(ctx, testCred, id)
		assert.ErrorIs(t, err, storage.ErrNotFound, "no image of the post is ingested")
	}
}

func TestImageSink_MissingParent(t *testing.T) {
	stores := newStores(t)
	registrar, err := provenance.NewRegistrar(stores.Registry, testCred)
	require.NoError(t, err)

	// the post itself is never registered, so the parent is missing
	post := &core.Post{ID: "orphan"}
	post.AddImage(core.NewImage([]byte("one"), "", "p1.jpg"))

	s, err := NewImageSink(stores.Images, registrar, testCred, nil)
	require.NoError(t, err)

	err = s.Deliver(context.Background(), Delivery{Post: post})
	var regErr *provenance.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, provenance.KindMissingParent, regErr.Kind)

	_, err = stores.Images.Get(context.Background(), testCred, post.ImageIDs()[0])
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDifference(t *testing.T) {
	missing, unexpected := difference(
		[]core.ImageID{"a", "b", "c"},
		[]core.ImageID{"c", "d", "d", "b"},
	)
	assert.Equal(t, []core.ImageID{"a"}, missing)
	assert.Equal(t, []core.ImageID{"d"}, unexpected)

	missing, unexpected = difference([]core.ImageID{"a"}, []core.ImageID{"a"})
	assert.Empty(t, missing)
	assert.Empty(t, unexpected)
}

func TestStoreError(t *testing.T) {
	err := &StoreError{Sink: "graph", Op: "write graph", Err: storage.ErrUnknownLabel}
	assert.Equal(t, "sink graph: write graph: edge label not in schema", err.Error())
	assert.True(t, errors.Is(err, storage.ErrUnknownLabel))
}
