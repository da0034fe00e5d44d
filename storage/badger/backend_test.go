package badger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/postflow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir() + "/nested/db"
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)

	assert.False(t, backend.IsClosed())

	err = backend.Close()
	require.NoError(t, err)

	assert.True(t, backend.IsClosed())

	err = backend.update(func(tx *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestUpdateAndView(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	t.Run("successful update commits", func(t *testing.T) {
		err := backend.update(func(tx *badger.Txn) error {
			return tx.Set([]byte("k"), []byte("v"))
		})
		require.NoError(t, err)

		var got []byte
		err = backend.view(func(tx *badger.Txn) error {
			var err error
			got, err = getValue(tx, []byte("k"))
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("failed update discards", func(t *testing.T) {
		err := backend.update(func(tx *badger.Txn) error {
			if err := tx.Set([]byte("discarded"), []byte("v")); err != nil {
				return err
			}
			return assert.AnError
		})
		assert.Equal(t, assert.AnError, err)

		err = backend.view(func(tx *badger.Txn) error {
			_, err := getValue(tx, []byte("discarded"))
			return err
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestScan(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.update(func(tx *badger.Txn) error {
		for _, k := range []string{"p:b", "p:a", "q:c"} {
			if err := tx.Set([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var keys []string
	err = backend.view(func(tx *badger.Txn) error {
		return scan(tx, []byte("p:"), func(key, val []byte) error {
			keys = append(keys, string(key))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p:a", "p:b"}, keys)
}

func TestGetSequence(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.GetSequence("test_sequence")
	require.NoError(t, err)
	require.NotNil(t, seq)
	defer seq.Release()

	// nextID never hands out zero
	id1, err := nextID(seq)
	require.NoError(t, err)
	assert.NotZero(t, id1)

	id2, err := nextID(seq)
	require.NoError(t, err)

	// IDs should be sequential
	assert.Greater(t, id2, id1)
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := OpenBackend(path, false)
	require.Error(t, err)
}

func TestOpenStores_WithOptions(t *testing.T) {
	stores, err := OpenStores(t.TempDir(), false, WithLogger(slog.New(slog.DiscardHandler)), WithSyncWrites(true))
	require.NoError(t, err)
	require.NoError(t, stores.Close())
}
