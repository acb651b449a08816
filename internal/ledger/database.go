// Package ledger persists tracked file entries and their acquisitions.
//
// A Database owns the key-value store, the per-process volatile acquisition
// map and the single mutex that serializes every read-then-write sequence
// over them, including a whole sweep. Holding one lock keeps the sweep's
// emptiness check atomic with respect to concurrent acquire and release.
//
// Store layout (see package keys for the encoding):
//
//	managed_file <file_id>                                   -> FileEntryRecord
//	managed_file_path <path>                                 -> value key
//	managed_file_all <file_id>                               -> value key
//	managed_file_acquire <acquire_id>                        -> AcquireRecord
//	managed_file_acquire_order_file file_id <fid> <acquire_id> -> acquire value key
//
// Writes put index keys before the value key they reference and roll back
// on failure, so a record is visible only once all of its indexes exist.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/jvs-project/managedfiles/internal/record"
	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/fsutil"
	"github.com/jvs-project/managedfiles/pkg/keys"
	"github.com/jvs-project/managedfiles/pkg/kv"
	"github.com/jvs-project/managedfiles/pkg/logging"
	"github.com/jvs-project/managedfiles/pkg/metrics"
	"github.com/jvs-project/managedfiles/pkg/model"
	"github.com/jvs-project/managedfiles/pkg/uuidutil"
)

const (
	nsFile        = "managed_file"
	nsFilePath    = "managed_file_path"
	nsFileAll     = "managed_file_all"
	nsAcquire     = "managed_file_acquire"
	nsAcquireFile = "managed_file_acquire_order_file"

	fieldFileID = "file_id"
)

// IDSource mints opaque unique ids.
type IDSource interface {
	NewID() []byte
}

// Options configures a Database. Zero values select defaults.
type Options struct {
	// PageSize bounds each store scan. Defaults to kv.DefaultPageSize.
	PageSize int
	// CacheSize is the number of decoded entries kept in memory. Zero
	// disables the cache. A cached entry is trusted without rereading the
	// store, so two Databases sharing one store can acquire an entry the
	// other has already swept. Use one Database per store.
	CacheSize int
	IDs       IDSource
	Remover   fsutil.FileRemover
	Logger    *logging.Logger
	Metrics   *metrics.Registry
}

// Database is the file entry store and acquisition ledger.
type Database struct {
	mu sync.Mutex

	store    kv.Store
	ids      IDSource
	remover  fsutil.FileRemover
	pageSize int
	cache    *lru.Cache
	log      *logging.Logger
	metrics  *metrics.Registry

	// volatile maps string(fileID) -> string(acquireID) -> acquisition.
	volatile map[string]map[string]model.Acquisition
}

// New opens a ledger over store. Volatile acquisitions start empty; restart
// acquisitions are whatever the store already holds.
func New(store kv.Store, opts Options) (*Database, error) {
	db := &Database{
		store:    store,
		ids:      opts.IDs,
		remover:  opts.Remover,
		pageSize: opts.PageSize,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		volatile: make(map[string]map[string]model.Acquisition),
	}
	if db.ids == nil {
		db.ids = uuidutil.NewGenerator()
	}
	if db.remover == nil {
		db.remover = fsutil.NewOsRemover()
	}
	if db.pageSize <= 0 {
		db.pageSize = kv.DefaultPageSize
	}
	if db.log == nil {
		db.log = logging.Global()
	}
	if opts.CacheSize > 0 {
		c, err := lru.New(opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("entry cache: %w", err)
		}
		db.cache = c
	}
	db.log = db.log.WithFields(map[string]any{"component": "ledger"})
	return db, nil
}

// Store returns the underlying key-value store.
func (db *Database) Store() kv.Store {
	return db.store
}

func fileKey(id model.FileID) []byte { return keys.Value(nsFile, id) }

func pathKey(path string) []byte { return keys.Value(nsFilePath, []byte(path)) }

func allKey(id model.FileID) []byte { return keys.Index(nsFileAll).Build(id) }

func acquireKey(id model.AcquireID) []byte { return keys.Value(nsAcquire, id) }

func acquireIndexQuery(fid model.FileID) []byte {
	return keys.Index(nsAcquireFile).Field(fieldFileID, fid).Query()
}

func acquireIndexKey(fid model.FileID, aid model.AcquireID) []byte {
	return keys.Index(nsAcquireFile).Field(fieldFileID, fid).Build(aid)
}

// Create starts tracking path. The new entry carries no acquisitions; use
// Manage to create and acquire in one step.
func (db *Database) Create(path string, expirationMillis int64) (*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.create(path, expirationMillis)
}

// Manage creates an entry for path and takes a volatile acquisition on it
// under the same lock, so the entry is never observable unacquired.
func (db *Database) Manage(path string, expirationMillis int64, acquireName string) (*Entry, model.Acquisition, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e, err := db.create(path, expirationMillis)
	if err != nil {
		return nil, model.Acquisition{}, err
	}
	return e, db.acquireVolatile(e.rec.FileID, acquireName), nil
}

func (db *Database) create(path string, expirationMillis int64) (*Entry, error) {
	pk := pathKey(path)
	if err := db.ensurePathFree(pk, path); err != nil {
		return nil, err
	}

	id := model.FileID(db.ids.NewID())
	vk := fileKey(id)
	if err := db.ensureAbsent(vk); err != nil {
		return nil, err
	}

	// The value key goes last: until it lands the entry does not exist, and
	// the path index already blocks a second create of the same path.
	rec := model.FileEntry{FileID: id, Path: path, ExpirationTimeInMillis: expirationMillis}
	writes := []kv.Pair{
		{Key: pk, Value: vk},
		{Key: allKey(id), Value: vk},
		{Key: vk, Value: record.MarshalFileEntry(&rec)},
	}
	if err := db.putAll(writes); err != nil {
		return nil, fmt.Errorf("create file entry: %w", err)
	}
	if db.cache != nil {
		db.cache.Add(string(id), rec)
	}

	db.log.Debug("file entry created", map[string]any{
		"file_id":    id.String(),
		"path":       path,
		"expiration": expirationMillis,
	})
	return &Entry{db: db, rec: rec}, nil
}

// ensurePathFree fails with errclass.ErrFileAlreadyManaged when a live entry
// owns path. A path index left behind by an interrupted create, one whose
// value key was never written, does not count.
func (db *Database) ensurePathFree(pk []byte, path string) error {
	vk, err := db.store.Get(pk)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read path index: %w", err)
	}
	_, err = db.store.Get(vk)
	switch {
	case err == nil:
		return errclass.ErrFileAlreadyManaged.WithMessagef("file already managed: %s", path)
	case errors.Is(err, kv.ErrNotFound):
		db.log.Warn("reclaiming stale path index", map[string]any{"path": path})
		return nil
	default:
		return fmt.Errorf("read file entry: %w", err)
	}
}

// putAll writes pairs in order. If one fails, the pairs already written are
// deleted again in reverse order and the write error is returned.
func (db *Database) putAll(pairs []kv.Pair) error {
	for i, p := range pairs {
		if err := db.store.Put(p.Key, p.Value); err != nil {
			for j := i - 1; j >= 0; j-- {
				if derr := db.deleteIgnoreMissing(pairs[j].Key); derr != nil {
					db.log.ErrorErr("rollback failed", derr, map[string]any{"key": fmt.Sprintf("%x", pairs[j].Key)})
				}
			}
			return fmt.Errorf("write %x: %w", p.Key, err)
		}
	}
	return nil
}

// ensureAbsent guards freshly minted ids against reuse.
func (db *Database) ensureAbsent(key []byte) error {
	_, err := db.store.Get(key)
	switch {
	case err == nil:
		return errclass.ErrIDCollision.WithMessagef("generated id already present: %x", key)
	case errors.Is(err, kv.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check id: %w", err)
	}
}

// ByFileID loads an entry. A missing entry is errclass.ErrNotFound.
func (db *Database) ByFileID(id model.FileID) (*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, err := db.load(id)
	if err != nil {
		return nil, err
	}
	return &Entry{db: db, rec: *rec}, nil
}

// ByAcquireID resolves a restart acquisition to the entry it holds.
func (db *Database) ByAcquireID(id model.AcquireID) (*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	acq, err := db.loadAcquire(id)
	if err != nil {
		return nil, err
	}
	rec, err := db.load(acq.FileID)
	if err != nil {
		return nil, errclass.ErrDatabaseCorrupt.WithMessagef(
			"can not read from database: acquire %s references file %s: %v", id, acq.FileID, err)
	}
	return &Entry{db: db, rec: *rec}, nil
}

// FindAndAcquire takes a volatile acquisition on an existing entry. It
// returns errclass.ErrNotFound when no entry has that id.
func (db *Database) FindAndAcquire(id model.FileID, acquireName string) (*Entry, model.Acquisition, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, err := db.load(id)
	if err != nil {
		return nil, model.Acquisition{}, err
	}
	return &Entry{db: db, rec: *rec}, db.acquireVolatile(rec.FileID, acquireName), nil
}

func (db *Database) load(id model.FileID) (*model.FileEntry, error) {
	if db.cache != nil {
		if v, ok := db.cache.Get(string(id)); ok {
			rec := v.(model.FileEntry)
			return &rec, nil
		}
	}
	data, err := db.store.Get(fileKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, errclass.ErrNotFound.WithMessagef("file %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read file entry: %w", err)
	}
	rec, err := record.UnmarshalFileEntry(data)
	if err != nil {
		return nil, err
	}
	if db.cache != nil {
		db.cache.Add(string(id), *rec)
	}
	return rec, nil
}

func (db *Database) loadAcquire(id model.AcquireID) (*model.Acquisition, error) {
	data, err := db.store.Get(acquireKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, errclass.ErrAcquireNotFound.WithMessagef("acquire does not exist: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read acquire: %w", err)
	}
	return record.UnmarshalAcquire(data)
}

// List returns every tracked entry in file id order.
func (db *Database) List() ([]*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []*Entry
	err := db.eachEntry(func(_ kv.Pair, rec *model.FileEntry) error {
		if rec != nil {
			out = append(out, &Entry{db: db, rec: *rec})
		}
		return nil
	})
	return out, err
}

// Statuses returns every entry with its current holders.
func (db *Database) Statuses() ([]model.FileStatus, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []model.FileStatus
	err := db.eachEntry(func(_ kv.Pair, rec *model.FileEntry) error {
		if rec == nil {
			return nil
		}
		restart, err := db.restartAcquisitions(rec.FileID)
		if err != nil {
			return err
		}
		out = append(out, model.FileStatus{
			Entry:    *rec,
			Volatile: db.volatileAcquisitions(rec.FileID),
			Restart:  restart,
		})
		return nil
	})
	return out, err
}

// eachEntry walks the enumeration index. fn receives a nil record when an
// index key points at a value that no longer exists.
func (db *Database) eachEntry(fn func(kv.Pair, *model.FileEntry) error) error {
	return kv.ScanAll(db.store, keys.Namespace(nsFileAll), db.pageSize, func(p kv.Pair) error {
		data, err := db.store.Get(p.Value)
		if errors.Is(err, kv.ErrNotFound) {
			return fn(p, nil)
		}
		if err != nil {
			return fmt.Errorf("read file entry: %w", err)
		}
		rec, err := record.UnmarshalFileEntry(data)
		if err != nil {
			return err
		}
		return fn(p, rec)
	})
}

// deleteEntry removes the path index when it points at rec, then the value
// key and the enumeration index, plus any restart index keys left without a record.
// Keys already gone are ignored.
func (db *Database) deleteEntry(rec *model.FileEntry) error {
	// The path index may belong to another entry for the same path.
	vk := fileKey(rec.FileID)
	if owned, err := db.pointsAt(pathKey(rec.Path), vk); err != nil {
		return err
	} else if owned {
		if err := db.deleteIgnoreMissing(pathKey(rec.Path)); err != nil {
			return err
		}
	}
	for _, k := range [][]byte{vk, allKey(rec.FileID)} {
		if err := db.deleteIgnoreMissing(k); err != nil {
			return err
		}
	}
	err := kv.ScanAll(db.store, acquireIndexQuery(rec.FileID), db.pageSize, func(p kv.Pair) error {
		return db.deleteIgnoreMissing(p.Key)
	})
	if err != nil {
		return err
	}
	if db.cache != nil {
		db.cache.Remove(string(rec.FileID))
	}
	delete(db.volatile, string(rec.FileID))

	db.log.Debug("file entry deleted", map[string]any{
		"file_id": rec.FileID.String(),
		"path":    rec.Path,
	})
	return nil
}

func (db *Database) deleteIgnoreMissing(key []byte) error {
	if err := db.store.Delete(key); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("delete %x: %w", key, err)
	}
	return nil
}
