package store

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/ricesearch/kgeval/internal/pkg/errors"
)

var badgerPrefix = []byte("compat:")

// BadgerStorage keeps tables in an embedded BadgerDB.
type BadgerStorage struct {
	db *badger.DB
}

// BadgerOptions configures the embedded database.
type BadgerOptions struct {
	// DataDir is where the database lives. Ignored when InMemory is set.
	DataDir string

	// InMemory runs BadgerDB without touching disk.
	InMemory bool
}

// NewBadgerStorage opens (or creates) a BadgerDB.
func NewBadgerStorage(opts BadgerOptions) (*BadgerStorage, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}

	// Tables are small and written rarely.
	badgerOpts = badgerOpts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(8 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, errors.StoreError("opening badger", err)
	}
	return &BadgerStorage{db: db}, nil
}

func badgerKey(key string) []byte {
	return append(append([]byte(nil), badgerPrefix...), key...)
}

func (b *BadgerStorage) Put(_ context.Context, key string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(key), data)
	})
	if err != nil {
		return errors.StoreError("writing "+key, err)
	}
	return nil
}

func (b *BadgerStorage) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.NotFoundError("compat table " + key)
	}
	if err != nil {
		return nil, errors.StoreError("reading "+key, err)
	}
	return data, nil
}

func (b *BadgerStorage) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(key))
	})
	if err != nil {
		return errors.StoreError("deleting "+key, err)
	}
	return nil
}

func (b *BadgerStorage) Keys(_ context.Context) ([]string, error) {
	keys := []string{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(badgerPrefix); it.ValidForPrefix(badgerPrefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(badgerPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, errors.StoreError("listing keys", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close flushes and closes the database.
func (b *BadgerStorage) Close() error {
	return b.db.Close()
}
