package library

import (
	"testing"

	"github.com/ncruces/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfkeeper/storage"
)

func tempStore(t *testing.T) storage.BlobStore {
	t.Helper()
	store, err := storage.NewMemStore()
	require.NoError(t, err)
	return store
}

func tempEngine(t *testing.T) (*Engine, storage.BlobStore) {
	t.Helper()
	store := tempStore(t)
	e, err := Open(Config{Store: store})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, store
}

// countingStore counts writes so tests can observe persistence frequency.
type countingStore struct {
	storage.BlobStore
	puts int
}

func (s *countingStore) Put(key string, data []byte) error {
	s.puts++
	return s.BlobStore.Put(key, data)
}

// staleBlob builds a serialized database missing most required tables.
func staleBlob(t *testing.T) []byte {
	t.Helper()
	conn, err := sqlite3.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Exec(`CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT)`))
	blob, err := conn.Serialize("main")
	require.NoError(t, err)
	return blob
}

func TestOpenSeedsFirstRun(t *testing.T) {
	store := tempStore(t)

	_, err := store.Get(storage.DatabaseKey)
	require.ErrorIs(t, err, storage.ErrNotFound)

	e, err := Open(Config{Store: store})
	require.NoError(t, err)
	defer e.Close()

	// Seed is persisted immediately on first run.
	blob, err := store.Get(storage.DatabaseKey)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)

	rows, err := e.Query(`SELECT COUNT(*) AS n FROM books`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows[0]["n"])
}

func TestOpenAdoptsPersistedState(t *testing.T) {
	store := tempStore(t)

	e, err := Open(Config{Store: store})
	require.NoError(t, err)
	_, err = e.Execute(`INSERT INTO books (title, author, copies) VALUES ('Dune', 'Frank Herbert', 2)`)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e2, err := Open(Config{Store: store})
	require.NoError(t, err)
	defer e2.Close()

	rows, err := e2.Query(`SELECT title FROM books`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dune", rows[0]["title"])
}

func TestOpenReseedsOnMissingTables(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, store.Put(storage.DatabaseKey, staleBlob(t)))

	e, err := Open(Config{Store: store})
	require.NoError(t, err)
	defer e.Close()

	// The stale blob was discarded and the full schema is in place.
	rows, err := e.Query(`SELECT COUNT(*) AS n FROM settings`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows[0]["n"])
}

func TestOpenReseedsOnGarbageBlob(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, store.Put(storage.DatabaseKey, []byte("not a database")))

	e, err := Open(Config{Store: store})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Query(`SELECT COUNT(*) AS n FROM borrows`)
	assert.NoError(t, err)
}

func TestOpenSeedFetchFailure(t *testing.T) {
	store := tempStore(t)
	failing := SeedSource(func() ([]byte, error) {
		return nil, assert.AnError
	})

	_, err := Open(Config{Store: store, Seed: failing})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestQueryReturnsEmptyNotNil(t *testing.T) {
	e, _ := tempEngine(t)
	rows, err := e.Query(`SELECT * FROM books WHERE id = ?`, 999)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestExecuteReportsResult(t *testing.T) {
	e, _ := tempEngine(t)

	res, err := e.Execute(`INSERT INTO books (title, author, copies) VALUES (?, ?, ?)`, "Dune", "Frank Herbert", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(1), res.InsertedID)

	res, err = e.Execute(`UPDATE books SET copies = 3 WHERE id = ?`, res.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
}

func TestExecutePersists(t *testing.T) {
	store := tempStore(t)
	counting := &countingStore{BlobStore: store}
	e, err := Open(Config{Store: counting})
	require.NoError(t, err)
	defer e.Close()

	before := counting.puts
	_, err = e.Execute(`INSERT INTO categories (name) VALUES ('Sci-Fi')`)
	require.NoError(t, err)
	assert.Equal(t, before+1, counting.puts)

	// Clean engine: Persist is a no-op.
	require.NoError(t, e.Persist())
	assert.Equal(t, before+1, counting.puts)
}

func TestTransactionCommitsAtomically(t *testing.T) {
	store := tempStore(t)
	counting := &countingStore{BlobStore: store}
	e, err := Open(Config{Store: counting})
	require.NoError(t, err)
	defer e.Close()

	before := counting.puts
	err = e.Transaction(func(tx *Tx) error {
		if _, err := tx.Execute(`INSERT INTO categories (name) VALUES ('A')`); err != nil {
			return err
		}
		_, err := tx.Execute(`INSERT INTO categories (name) VALUES ('B')`)
		return err
	})
	require.NoError(t, err)

	// One persist for the whole transaction, not one per statement.
	assert.Equal(t, before+1, counting.puts)

	rows, err := e.Query(`SELECT COUNT(*) AS n FROM categories`)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows[0]["n"])
}

func TestTransactionRollsBackCompletely(t *testing.T) {
	e, store := tempEngine(t)

	_, err := e.Execute(`INSERT INTO categories (name) VALUES ('Keep')`)
	require.NoError(t, err)
	persisted, err := store.Get(storage.DatabaseKey)
	require.NoError(t, err)

	err = e.Transaction(func(tx *Tx) error {
		if _, err := tx.Execute(`INSERT INTO categories (name) VALUES ('Gone')`); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	// Live instance unchanged.
	rows, err := e.Query(`SELECT COUNT(*) AS n FROM categories`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0]["n"])

	// Persisted blob unchanged.
	after, err := store.Get(storage.DatabaseKey)
	require.NoError(t, err)
	assert.Equal(t, persisted, after)
}

func TestSnapshotRoundTrip(t *testing.T) {
	e, _ := tempEngine(t)

	_, err := e.Execute(`INSERT INTO books (title, author, copies) VALUES ('Dune', 'Frank Herbert', 2)`)
	require.NoError(t, err)

	snapshot, err := e.ExportSnapshot()
	require.NoError(t, err)

	_, err = e.Execute(`DELETE FROM books`)
	require.NoError(t, err)

	require.NoError(t, e.RestoreSnapshot(snapshot))
	rows, err := e.Query(`SELECT title FROM books`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dune", rows[0]["title"])
}

func TestRestoreRejectsGarbage(t *testing.T) {
	e, _ := tempEngine(t)

	_, err := e.Execute(`INSERT INTO categories (name) VALUES ('Kept')`)
	require.NoError(t, err)

	err = e.RestoreSnapshot([]byte("definitely not sqlite"))
	require.ErrorIs(t, err, ErrSnapshotParse)

	// Replace-or-fail: the live instance is untouched.
	rows, err := e.Query(`SELECT COUNT(*) AS n FROM categories`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0]["n"])
}

func TestRestoredStaleBlobReseedsOnNextOpen(t *testing.T) {
	store := tempStore(t)
	e, err := Open(Config{Store: store})
	require.NoError(t, err)

	// Restore performs no schema validation.
	require.NoError(t, e.RestoreSnapshot(staleBlob(t)))
	require.NoError(t, e.Close())

	// The next initialize detects the missing tables and reseeds.
	e2, err := Open(Config{Store: store})
	require.NoError(t, err)
	defer e2.Close()

	rows, err := e2.Query(`SELECT COUNT(*) AS n FROM settings`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows[0]["n"])
}

func TestUseAfterClose(t *testing.T) {
	e, _ := tempEngine(t)
	require.NoError(t, e.Close())

	_, err := e.Query(`SELECT 1`)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = e.Execute(`DELETE FROM books`)
	assert.ErrorIs(t, err, ErrNotInitialized)
	err = e.Transaction(func(tx *Tx) error { return nil })
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = e.ExportSnapshot()
	assert.ErrorIs(t, err, ErrNotInitialized)

	// Closing twice is fine.
	assert.NoError(t, e.Close())
}

func TestColumnTypes(t *testing.T) {
	e, _ := tempEngine(t)

	_, err := e.Execute(`INSERT INTO books (title, author, isbn, copies) VALUES (?, ?, ?, ?)`,
		"Dune", "Frank Herbert", "9780441172719", 3)
	require.NoError(t, err)

	rows, err := e.Query(`SELECT title, copies FROM books`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dune", rows[0]["title"])
	assert.Equal(t, int64(3), rows[0]["copies"])

	rows, err = e.Query(`SELECT return_date FROM borrows WHERE 1 = 0`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
