//go:build js && wasm

package storage

import (
	"context"
	"fmt"

	"github.com/hack-pad/hackpadfs/indexeddb"
)

// NewIndexedDBStore returns a store persisting into the browser's IndexedDB
// under the given database name. This is the storage backend for the
// offline-first browser deployment.
func NewIndexedDBStore(ctx context.Context, name string) (*FSStore, error) {
	fsys, err := indexeddb.NewFS(ctx, name, indexeddb.Options{})
	if err != nil {
		return nil, fmt.Errorf("create indexeddb fs: %w", err)
	}
	return &FSStore{fs: fsys}, nil
}
