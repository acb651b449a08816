// Package badgerkv implements kv.Store on BadgerDB.
package badgerkv

import (
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/jvs-project/managedfiles/pkg/kv"
)

// Store implements kv.Store using BadgerDB.
//
// Every call runs in its own transaction; badger's iterators give the
// lexicographic key order the scan contract requires.
type Store struct {
	db *badgerdb.DB
}

var _ kv.Store = (*Store)(nil)

// Options configures Open.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data in memory (tests).
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// Open opens or creates a BadgerDB database.
func Open(opts Options) (*Store, error) {
	bopts := badgerdb.DefaultOptions(opts.Dir).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil)
	if opts.InMemory {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", opts.Dir, err)
	}
	return &Store{db: db}, nil
}

// Get returns the value at key.
func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return kv.ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put stores value at key.
func (s *Store) Put(key, value []byte) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(kv.Clone(key), kv.Clone(value))
	})
}

// Delete removes key, reporting kv.ErrNotFound when absent.
func (s *Store) Delete(key []byte) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return kv.ErrNotFound
			}
			return err
		}
		return txn.Delete(kv.Clone(key))
	})
}

// Scan returns one page of pairs under prefix.
func (s *Store) Scan(prefix, token []byte, limit int) ([]kv.Pair, []byte, error) {
	start, err := kv.ValidateScan(prefix, token, limit)
	if err != nil {
		return nil, nil, err
	}

	var (
		pairs []kv.Pair
		next  []byte
	)
	err = s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if len(pairs) == limit {
				next = item.KeyCopy(nil)
				return nil
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read value for %q: %w", item.Key(), err)
			}
			pairs = append(pairs, kv.Pair{Key: item.KeyCopy(nil), Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return pairs, next, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
