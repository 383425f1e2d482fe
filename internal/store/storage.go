// Package store persists computed compatibility tables so repeated runs over
// the same split and parameters skip the pairwise computation.
package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
	"github.com/ricesearch/kgeval/internal/pkg/security"
)

// Storage is a byte-oriented key-value backend.
type Storage interface {
	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the value of key or a not-found error.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the stored keys in sorted order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases the backend.
	Close() error
}

// MemoryStorage keeps values in memory (for testing and the "none" store).
type MemoryStorage struct {
	values map[string][]byte
	mu     sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		values: make(map[string][]byte),
	}
}

func (m *MemoryStorage) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.values[key]
	if !ok {
		return nil, errors.NotFoundError("compat table " + key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

func (m *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStorage) Close() error { return nil }

// FileStorage stores one JSON file per key under a base directory.
type FileStorage struct {
	fs       afero.Fs
	basePath string
	mu       sync.RWMutex
}

const fileExt = ".json"

// NewFileStorage creates a file-based storage. A nil fs uses the OS
// filesystem.
func NewFileStorage(fs afero.Fs, basePath string) *FileStorage {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStorage{
		fs:       fs,
		basePath: basePath,
	}
}

// path maps key to its file. Keys that are not plain file names are rejected.
func (f *FileStorage) path(key string) (string, error) {
	if err := security.ValidateKey(key); err != nil {
		return "", errors.Wrap(errors.CodeValidation, "invalid store key", err)
	}
	return filepath.Join(f.basePath, key+fileExt), nil
}

func (f *FileStorage) Put(_ context.Context, key string, data []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fs.MkdirAll(f.basePath, 0o755); err != nil {
		return errors.StoreError("creating storage directory", err)
	}

	// Write to a sibling and rename into place.
	tmp := path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, data, 0o644); err != nil {
		return errors.StoreError("writing "+path, err)
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		_ = f.fs.Remove(tmp)
		return errors.StoreError("writing "+path, err)
	}
	return nil
}

func (f *FileStorage) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("compat table " + key)
		}
		return nil, errors.StoreError("reading "+path, err)
	}
	return data, nil
}

func (f *FileStorage) Delete(_ context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.StoreError("deleting "+path, err)
	}
	return nil
}

func (f *FileStorage) Keys(_ context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if ok, _ := afero.DirExists(f.fs, f.basePath); !ok {
		return []string{}, nil
	}

	entries, err := afero.ReadDir(f.fs, f.basePath)
	if err != nil {
		return nil, errors.StoreError("listing "+f.basePath, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileStorage) Close() error { return nil }
