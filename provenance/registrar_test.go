package provenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/postflow/core"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/storage"
	"github.com/poiesic/postflow/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCred = security.NewCredential("postflow", "test-token", time.Unix(0, 0))

// flakyRegistry fails the first failures calls with a transport error.
type flakyRegistry struct {
	storage.Registry
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyRegistry) Register(ctx context.Context, cred security.Credential, reg storage.Registration) (core.ProvenanceID, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return 0, fmt.Errorf("%w: connection refused", storage.ErrTransport)
	}
	return f.Registry.Register(ctx, cred, reg)
}

func newTestRegistry(t *testing.T) *badger.Registry {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores.Registry
}

func TestURIs(t *testing.T) {
	assert.Equal(t, "social://postflow/ingest/post/42", PostURI("42"))
	assert.Equal(t, "social://postflow/ingest/image/42.jpg", ImageURI("42.jpg"))
}

func TestNewRegistrar_RequiresRegistry(t *testing.T) {
	_, err := NewRegistrar(nil, testCred)
	assert.ErrorIs(t, err, ErrRegistryRequired)
}

func TestRegistrar_RegisterPostAndImage(t *testing.T) {
	registry := newTestRegistry(t)
	r, err := NewRegistrar(registry, testCred)
	require.NoError(t, err)
	assert.NotEmpty(t, r.RunID())
	ctx := context.Background()

	post := &core.Post{ID: "1"}
	id, err := r.RegisterPost(ctx, post)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, id, post.ProvenanceID)

	img := core.NewImage([]byte("pixels"), "http://pbs.example/p1.jpg", "p1.jpg")
	imgID, err := r.RegisterImage(ctx, post.ID, img)
	require.NoError(t, err)
	assert.NotEqual(t, id, imgID)

	record, err := registry.Lookup(ctx, testCred, ImageURI("p1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []core.ProvenanceID{id}, record.Parents)
}

func TestRegistrar_DuplicateInRun(t *testing.T) {
	r, err := NewRegistrar(newTestRegistry(t), testCred)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.RegisterPost(ctx, &core.Post{ID: "1"})
	require.NoError(t, err)

	_, err = r.RegisterPost(ctx, &core.Post{ID: "1"})
	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, KindDuplicate, regErr.Kind)
	assert.Equal(t, PostURI("1"), regErr.URI)
	assert.ErrorIs(t, err, storage.ErrDuplicateDocument)
}

func TestRegistrar_DuplicateAcrossRuns(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	first, err := NewRegistrar(registry, testCred)
	require.NoError(t, err)
	_, err = first.RegisterPost(ctx, &core.Post{ID: "1"})
	require.NoError(t, err)

	second, err := NewRegistrar(registry, testCred)
	require.NoError(t, err)
	_, err = second.RegisterPost(ctx, &core.Post{ID: "1"})
	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, KindDuplicate, regErr.Kind)
}

func TestRegistrar_ErrorKinds(t *testing.T) {
	ctx := context.Background()

	t.Run("missing parent", func(t *testing.T) {
		r, err := NewRegistrar(newTestRegistry(t), testCred)
		require.NoError(t, err)
		_, err = r.RegisterImage(ctx, "never-registered", core.NewImage([]byte("x"), "", "x.jpg"))
		var regErr *RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Equal(t, KindMissingParent, regErr.Kind)
	})

	t.Run("rule not found", func(t *testing.T) {
		r, err := NewRegistrar(newTestRegistry(t), testCred, WithAgeOffRules("90d"))
		require.NoError(t, err)
		_, err = r.RegisterPost(ctx, &core.Post{ID: "1"})
		var regErr *RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Equal(t, KindRuleNotFound, regErr.Kind)
		assert.ErrorIs(t, err, storage.ErrRuleNotFound)
	})

	t.Run("known rule", func(t *testing.T) {
		registry := newTestRegistry(t)
		require.NoError(t, registry.AddAgeOffRule(ctx, "90d"))
		r, err := NewRegistrar(registry, testCred, WithAgeOffRules("90d"))
		require.NoError(t, err)
		_, err = r.RegisterPost(ctx, &core.Post{ID: "1"})
		require.NoError(t, err)
	})

	t.Run("transport", func(t *testing.T) {
		flaky := &flakyRegistry{Registry: newTestRegistry(t), failures: 1}
		r, err := NewRegistrar(flaky, testCred)
		require.NoError(t, err)
		_, err = r.RegisterPost(ctx, &core.Post{ID: "1"})
		var regErr *RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Equal(t, KindTransport, regErr.Kind)

		// a failed registration can be retried later in the run
		_, err = r.RegisterPost(ctx, &core.Post{ID: "1"})
		assert.NoError(t, err)
	})
}

func TestRetryingRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transport failures", func(t *testing.T) {
		flaky := &flakyRegistry{Registry: newTestRegistry(t), failures: 2}
		retrying := NewRetryingRegistry(flaky, 3, time.Millisecond)

		id, err := retrying.Register(ctx, testCred, storage.Registration{URI: "a"})
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.Equal(t, 3, flaky.calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		flaky := &flakyRegistry{Registry: newTestRegistry(t), failures: 5}
		retrying := NewRetryingRegistry(flaky, 2, time.Millisecond)

		_, err := retrying.Register(ctx, testCred, storage.Registration{URI: "a"})
		assert.ErrorIs(t, err, storage.ErrTransport)
		assert.Equal(t, 2, flaky.calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		flaky := &flakyRegistry{Registry: newTestRegistry(t)}
		retrying := NewRetryingRegistry(flaky, 5, time.Millisecond)

		_, err := retrying.Register(ctx, testCred, storage.Registration{URI: "a", Parents: []string{"missing"}})
		assert.ErrorIs(t, err, storage.ErrMissingParent)
		assert.Equal(t, 1, flaky.calls)
	})

	t.Run("lookup", func(t *testing.T) {
		registry := newTestRegistry(t)
		retrying := NewRetryingRegistry(registry, 0, time.Millisecond)
		id, err := retrying.Register(ctx, testCred, storage.Registration{URI: "a"})
		require.NoError(t, err)

		record, err := retrying.Lookup(ctx, testCred, "a")
		require.NoError(t, err)
		assert.Equal(t, id, record.ID)
	})
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "duplicate", KindDuplicate.String())
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "other", kindOf(errors.New("boom")).String())
}
