// Package memkv is an in-memory kv.Store backed by a sorted key slice.
//
// It honors the same ordering and pagination contract as the persistent
// backends and is used by tests and by the "memory" backend.
package memkv

import (
	"bytes"
	"errors"
	"sort"
	"sync"

	"github.com/jvs-project/managedfiles/pkg/kv"
)

var errClosed = errors.New("memkv: store closed")

// Store implements kv.Store in memory.
type Store struct {
	mu     sync.RWMutex
	keys   []string // sorted
	values map[string][]byte
	closed bool
}

var _ kv.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

// Get returns the value at key.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	v, ok := s.values[string(key)]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return kv.Clone(v), nil
}

// Put stores value at key.
func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	k := string(key)
	if _, ok := s.values[k]; !ok {
		i := sort.SearchStrings(s.keys, k)
		s.keys = append(s.keys, "")
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = k
	}
	v := kv.Clone(value)
	if v == nil {
		v = []byte{}
	}
	s.values[k] = v
	return nil
}

// Delete removes key.
func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	k := string(key)
	if _, ok := s.values[k]; !ok {
		return kv.ErrNotFound
	}
	delete(s.values, k)
	i := sort.SearchStrings(s.keys, k)
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	return nil
}

// Scan returns one page of pairs under prefix.
func (s *Store) Scan(prefix, token []byte, limit int) ([]kv.Pair, []byte, error) {
	start, err := kv.ValidateScan(prefix, token, limit)
	if err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, nil, errClosed
	}

	var pairs []kv.Pair
	for i := sort.SearchStrings(s.keys, string(start)); i < len(s.keys); i++ {
		k := []byte(s.keys[i])
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		if len(pairs) == limit {
			return pairs, k, nil
		}
		pairs = append(pairs, kv.Pair{Key: k, Value: kv.Clone(s.values[s.keys[i]])})
	}
	return pairs, nil, nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Close marks the store closed. Contents are dropped.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.keys = nil
	s.values = nil
	return nil
}
