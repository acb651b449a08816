// Package kv defines the ordered key-value store the file ledger persists to.
//
// Keys are ordered lexicographically on their raw bytes. Range scans are
// prefix-bounded and paginated: a caller loops on the returned continuation
// token until it is nil to enumerate a whole prefix.
package kv

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get and Delete when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Pair is one key and its value as returned by Scan.
type Pair struct {
	Key   []byte
	Value []byte
}

// Store is an ordered byte store.
//
// Implementations must be safe for concurrent use. Returned slices are owned
// by the caller.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
	// Put stores value at key, replacing any previous value.
	Put(key, value []byte) error
	// Delete removes key, or returns ErrNotFound if it is absent.
	Delete(key []byte) error
	// Scan returns at most limit pairs whose keys start with prefix, in key
	// order, beginning at token (inclusive) or at the start of the prefix when
	// token is nil. next is the first key of the following page, or nil when
	// the prefix is exhausted.
	Scan(prefix, token []byte, limit int) (pairs []Pair, next []byte, err error)
	// Close releases the store's resources.
	Close() error
}

// DefaultPageSize is the page size used when enumerating a whole prefix.
const DefaultPageSize = 100

// ScanAll visits every pair under prefix, one page at a time.
func ScanAll(s Store, prefix []byte, pageSize int, fn func(Pair) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var token []byte
	for {
		pairs, next, err := s.Scan(prefix, token, pageSize)
		if err != nil {
			return fmt.Errorf("scan %q: %w", prefix, err)
		}
		for _, p := range pairs {
			if err := fn(p); err != nil {
				return err
			}
		}
		if next == nil {
			return nil
		}
		token = next
	}
}

// ValidateScan checks the arguments shared by every Scan implementation and
// returns the key the scan should seek to.
func ValidateScan(prefix, token []byte, limit int) ([]byte, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("kv: scan limit must be positive, got %d", limit)
	}
	if token == nil {
		return prefix, nil
	}
	if !bytes.HasPrefix(token, prefix) {
		return nil, fmt.Errorf("kv: continuation token %q outside prefix %q", token, prefix)
	}
	return token, nil
}

// Clone returns a copy of b, preserving nil.
func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
