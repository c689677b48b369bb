package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) BlobStore

func memFactory(t *testing.T) BlobStore {
	t.Helper()
	s, err := NewMemStore()
	require.NoError(t, err)
	return s
}

func badgerFactory(t *testing.T) BlobStore {
	t.Helper()
	s, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	return s
}

func dirFactory(t *testing.T) BlobStore {
	t.Helper()
	s, err := NewDirStore(t.TempDir())
	require.NoError(t, err)
	return s
}

// runForAllStores runs one test body against every store implementation.
func runForAllStores(t *testing.T, testFn func(t *testing.T, s BlobStore)) {
	factories := map[string]storeFactory{
		"Mem":    memFactory,
		"Badger": badgerFactory,
		"Dir":    dirFactory,
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { s.Close() })
			testFn(t, s)
		})
	}
}

func TestGetAbsent(t *testing.T) {
	runForAllStores(t, func(t *testing.T, s BlobStore) {
		_, err := s.Get(DatabaseKey)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPutGetRoundTrip(t *testing.T) {
	runForAllStores(t, func(t *testing.T, s BlobStore) {
		blob := []byte{0x53, 0x51, 0x4c, 0x69, 0x74, 0x65, 0x00}
		require.NoError(t, s.Put(DatabaseKey, blob))

		got, err := s.Get(DatabaseKey)
		require.NoError(t, err)
		assert.Equal(t, blob, got)
	})
}

func TestPutOverwrites(t *testing.T) {
	runForAllStores(t, func(t *testing.T, s BlobStore) {
		require.NoError(t, s.Put(DatabaseKey, []byte("first")))
		require.NoError(t, s.Put(DatabaseKey, []byte("second, longer payload")))

		got, err := s.Get(DatabaseKey)
		require.NoError(t, err)
		assert.Equal(t, []byte("second, longer payload"), got)
	})
}

func TestEmptyBlob(t *testing.T) {
	runForAllStores(t, func(t *testing.T, s BlobStore) {
		require.NoError(t, s.Put(DatabaseKey, []byte{}))
		got, err := s.Get(DatabaseKey)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
