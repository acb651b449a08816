package ledger

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/pkg/keys"
	"github.com/jvs-project/managedfiles/pkg/kv"
	"github.com/jvs-project/managedfiles/pkg/kv/memkv"
	"github.com/jvs-project/managedfiles/pkg/logging"
	"github.com/jvs-project/managedfiles/pkg/model"
)

// recordingRemover remembers every removal and optionally fails.
type recordingRemover struct {
	mu      sync.Mutex
	removed []string
	fail    error
}

func (r *recordingRemover) RemoveFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.removed = append(r.removed, path)
	return nil
}

func (r *recordingRemover) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.removed {
		if p == path {
			n++
		}
	}
	return n
}

// fixedIDs hands out the same id forever.
type fixedIDs struct{ id []byte }

func (f fixedIDs) NewID() []byte { return bytes.Clone(f.id) }

func quietLogger() *logging.Logger {
	l := logging.NewLogger(logging.LevelError)
	l.SetOutput(io.Discard)
	return l
}

func openTestDB(t *testing.T, store kv.Store, remover *recordingRemover) *Database {
	t.Helper()
	db, err := New(store, Options{
		PageSize:  3,
		CacheSize: 16,
		Remover:   remover,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	return db
}

func newTestDB(t *testing.T) (*Database, *memkv.Store, *recordingRemover) {
	t.Helper()
	store := memkv.New()
	rm := &recordingRemover{}
	return openTestDB(t, store, rm), store, rm
}

func outcomes(results []model.SweepResult) map[string]model.SweepOutcome {
	out := make(map[string]model.SweepOutcome, len(results))
	for _, r := range results {
		out[r.Path] = r.Outcome
	}
	return out
}

var errDiskGone = errors.New("disk gone")

var errStoreDown = errors.New("store down")

// faultStore fails Put or Delete on keys inside the given namespaces.
type faultStore struct {
	kv.Store
	mu         sync.Mutex
	putFails   []string
	deleteFail []string
}

func (f *faultStore) failPuts(namespaces ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putFails = namespaces
}

func (f *faultStore) failDeletes(namespaces ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteFail = namespaces
}

func (f *faultStore) heal() {
	f.failPuts()
	f.failDeletes()
}

func (f *faultStore) hit(onDelete bool, key []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	namespaces := f.putFails
	if onDelete {
		namespaces = f.deleteFail
	}
	for _, ns := range namespaces {
		if bytes.HasPrefix(key, keys.Namespace(ns)) {
			return true
		}
	}
	return false
}

func (f *faultStore) Put(key, value []byte) error {
	if f.hit(false, key) {
		return errStoreDown
	}
	return f.Store.Put(key, value)
}

func (f *faultStore) Delete(key []byte) error {
	if f.hit(true, key) {
		return errStoreDown
	}
	return f.Store.Delete(key)
}

func newFaultDB(t *testing.T) (*Database, *faultStore, *memkv.Store, *recordingRemover) {
	t.Helper()
	mem := memkv.New()
	fs := &faultStore{Store: mem}
	rm := &recordingRemover{}
	return openTestDB(t, fs, rm), fs, mem, rm
}
