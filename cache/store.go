package cache

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorruptEntry is returned by a Store for an entry it could not decode.
var ErrCorruptEntry = stderrors.New("cache: corrupt entry")

// Store is a durable mirror for cache entries. Load reports ok=false for a
// missing entry.
type Store[V any] interface {
	Load(key string) (Entry[V], bool, error)
	Save(key string, e Entry[V]) error
	Delete(key string) error
	Clear() error
}

const (
	entryExt  = ".json"
	sealedExt = ".enc"
)

// Sealer encrypts entries at rest. Open must fail for data sealed with
// another key.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*fileStoreOptions)

type fileStoreOptions struct {
	sealer Sealer
}

// WithSealer encrypts every entry with s. Sealed entries use a separate
// file extension, so plain and sealed stores may share a directory.
func WithSealer(s Sealer) FileStoreOption {
	return func(o *fileStoreOptions) { o.sealer = s }
}

// FileStore keeps one file per key under a directory. Writes go to a
// temporary file that is renamed into place, so readers never see a partial
// entry.
type FileStore[V any] struct {
	dir    string
	ext    string
	sealer Sealer
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore[V any](dir string, opts ...FileStoreOption) (*FileStore[V], error) {
	var o fileStoreOptions
	for _, opt := range opts {
		opt(&o)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cache: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	s := &FileStore[V]{dir: abs, ext: entryExt, sealer: o.sealer}
	if s.sealer != nil {
		s.ext = sealedExt
	}
	return s, nil
}

// Dir returns the absolute store directory.
func (s *FileStore[V]) Dir() string { return s.dir }

// path maps an opaque key to a file name that is always filesystem safe.
func (s *FileStore[V]) path(key string) string {
	return filepath.Join(s.dir, Fingerprint(key)+s.ext)
}

// Load reads the entry for key. A file that does not open or decode is
// removed and reported as ErrCorruptEntry.
func (s *FileStore[V]) Load(key string) (Entry[V], bool, error) {
	var e Entry[V]
	p := s.path(key)
	data, err := os.ReadFile(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return e, false, nil
		}
		return e, false, fmt.Errorf("cache: read entry: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Open(data); err != nil {
			_ = os.Remove(p)
			return e, false, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, filepath.Base(p), err)
		}
	}
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(p)
		return Entry[V]{}, false, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, filepath.Base(p), err)
	}
	return e, true, nil
}

// Save writes e for key atomically.
func (s *FileStore[V]) Save(key string, e Entry[V]) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data); err != nil {
			return fmt.Errorf("cache: seal entry: %w", err)
		}
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("cache: write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("cache: close entry: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("cache: commit entry: %w", err)
	}
	return nil
}

// Delete removes the entry for key. Missing entries are not an error.
func (s *FileStore[V]) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: delete entry: %w", err)
	}
	return nil
}

// Clear removes every entry file in the directory, sealed or not.
func (s *FileStore[V]) Clear() error {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("cache: list dir: %w", err)
	}
	for _, it := range items {
		if it.IsDir() || !(strings.HasSuffix(it.Name(), entryExt) || strings.HasSuffix(it.Name(), sealedExt)) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, it.Name())); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cache: clear: %w", err)
		}
	}
	return nil
}
