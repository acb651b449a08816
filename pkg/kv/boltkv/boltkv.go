// Package boltkv implements kv.Store on a single bbolt bucket.
package boltkv

import (
	"bytes"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jvs-project/managedfiles/pkg/kv"
)

var bucketName = []byte("managedfiles")

// Store implements kv.Store using bbolt.
type Store struct {
	db *bbolt.DB
}

var _ kv.Store = (*Store)(nil)

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket %s: %w", bucketName, err)
	}
	return &Store{db: db}, nil
}

// Get returns the value at key.
func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v == nil {
			return kv.ErrNotFound
		}
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	return value, err
}

// Put stores value at key.
func (s *Store) Put(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, value)
	})
}

// Delete removes key, reporting kv.ErrNotFound when absent.
func (s *Store) Delete(key []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get(key) == nil {
			return kv.ErrNotFound
		}
		return b.Delete(key)
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
	err = s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketName).Cursor()
		for k, v := cursor.Seek(start); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			if len(pairs) == limit {
				next = kv.Clone(k)
				return nil
			}
			pairs = append(pairs, kv.Pair{Key: kv.Clone(k), Value: kv.Clone(v)})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return pairs, next, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
