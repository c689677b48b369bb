// Package storage provides the local blob store the database engine
// persists into. A store holds whole serialized database files addressed by
// a single key; it knows nothing about their contents.
package storage

import "errors"

// DatabaseKey is the one key the engine uses for the live database blob.
const DatabaseKey = "library.db"

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("storage: key not found")

// BlobStore is a minimal key/value blob store.
type BlobStore interface {
	// Get returns the blob stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)
	// Put stores the blob under key, overwriting any previous value.
	Put(key string, data []byte) error
	Close() error
}
