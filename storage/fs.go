package storage

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/hack-pad/hackpadfs/os"
)

// FSStore keeps each blob as one file on a hackpadfs filesystem. The same
// type serves the in-memory filesystem used by tests, a plain OS directory,
// and (on js/wasm) IndexedDB.
type FSStore struct {
	fs hackpadfs.FS
}

// NewFSStore wraps an existing filesystem.
func NewFSStore(fsys hackpadfs.FS) *FSStore {
	return &FSStore{fs: fsys}
}

// NewMemStore returns a store backed by an in-memory filesystem.
func NewMemStore() (*FSStore, error) {
	fsys, err := mem.NewFS()
	if err != nil {
		return nil, fmt.Errorf("create mem fs: %w", err)
	}
	return &FSStore{fs: fsys}, nil
}

// NewDirStore returns a store rooted at an OS directory.
func NewDirStore(dir string) (*FSStore, error) {
	osfs := os.NewFS()
	path, err := osfs.FromOSPath(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	if err := hackpadfs.MkdirAll(osfs, path, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	sub, err := osfs.Sub(path)
	if err != nil {
		return nil, fmt.Errorf("sub fs %s: %w", dir, err)
	}
	return &FSStore{fs: sub}, nil
}

func (s *FSStore) Get(key string) ([]byte, error) {
	data, err := hackpadfs.ReadFile(s.fs, key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *FSStore) Put(key string, data []byte) error {
	if err := hackpadfs.WriteFullFile(s.fs, key, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *FSStore) Close() error { return nil }
