package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/jvs-project/managedfiles/internal/record"
	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/kv"
	"github.com/jvs-project/managedfiles/pkg/model"
)

// Entry is a loaded file entry bound to its Database. The record itself is
// immutable; acquisition state is always read live from the ledger.
type Entry struct {
	db  *Database
	rec model.FileEntry
}

func (e *Entry) FileID() model.FileID { return e.rec.FileID }

func (e *Entry) Path() string { return e.rec.Path }

func (e *Entry) ExpirationTimeInMillis() int64 { return e.rec.ExpirationTimeInMillis }

// Record returns a copy of the persisted record.
func (e *Entry) Record() model.FileEntry { return e.rec }

// AcquireVolatile records an in-memory hold on the entry. It fails with
// errclass.ErrNotFound if the entry has been swept.
func (e *Entry) AcquireVolatile(name string) (model.AcquireID, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	if err := e.db.exists(e.rec.FileID); err != nil {
		return nil, err
	}
	return e.db.acquireVolatile(e.rec.FileID, name).AcquireID, nil
}

// ReleaseVolatile drops an in-memory hold.
func (e *Entry) ReleaseVolatile(id model.AcquireID) error {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	held := e.db.volatile[string(e.rec.FileID)]
	if _, ok := held[string(id)]; !ok {
		return errclass.ErrAlreadyReleased.WithMessagef("already released: %s", id)
	}
	delete(held, string(id))
	if len(held) == 0 {
		delete(e.db.volatile, string(e.rec.FileID))
	}
	e.db.metrics.RecordRelease(string(model.AcquireVolatile))
	return nil
}

// AcquireRestart persists a hold that survives process restarts.
func (e *Entry) AcquireRestart(name string) (model.AcquireID, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	if err := e.db.exists(e.rec.FileID); err != nil {
		return nil, err
	}
	id := model.AcquireID(e.db.ids.NewID())
	ak := acquireKey(id)
	if err := e.db.ensureAbsent(ak); err != nil {
		return nil, err
	}
	acq := model.Acquisition{FileID: e.rec.FileID, AcquireID: id, AcquireName: name}
	// The value key is written last; an index without it is skipped by readers.
	err := e.db.putAll([]kv.Pair{
		{Key: acquireIndexKey(e.rec.FileID, id), Value: ak},
		{Key: ak, Value: record.MarshalAcquire(&acq)},
	})
	if err != nil {
		return nil, fmt.Errorf("write acquire: %w", err)
	}
	e.db.metrics.RecordAcquire(string(model.AcquireRestart))
	e.db.log.Debug("restart acquisition created", map[string]any{
		"file_id":    e.rec.FileID.String(),
		"acquire_id": id.String(),
		"name":       name,
	})
	return id, nil
}

// ReleaseRestart deletes a persisted hold on this entry.
func (e *Entry) ReleaseRestart(id model.AcquireID) error {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()

	acq, err := e.db.loadAcquire(id)
	if err != nil {
		return err
	}
	if !bytes.Equal(acq.FileID, e.rec.FileID) {
		return errclass.ErrAcquireNotFound.WithMessagef("acquire does not exist: %s on file %s", id, e.rec.FileID)
	}
	if err := e.db.store.Delete(acquireKey(id)); err != nil {
		return fmt.Errorf("delete acquire: %w", err)
	}
	if err := e.db.deleteIgnoreMissing(acquireIndexKey(e.rec.FileID, id)); err != nil {
		return err
	}
	e.db.metrics.RecordRelease(string(model.AcquireRestart))
	return nil
}

// VolatileAcquisitions returns the in-memory holds, ordered by acquire id.
func (e *Entry) VolatileAcquisitions() []model.Acquisition {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.volatileAcquisitions(e.rec.FileID)
}

// RestartAcquisitions returns the persisted holds, ordered by acquire id.
func (e *Entry) RestartAcquisitions() ([]model.Acquisition, error) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.restartAcquisitions(e.rec.FileID)
}

func (db *Database) exists(id model.FileID) error {
	_, err := db.load(id)
	return err
}

func (db *Database) acquireVolatile(fid model.FileID, name string) model.Acquisition {
	held := db.volatile[string(fid)]
	if held == nil {
		held = make(map[string]model.Acquisition)
		db.volatile[string(fid)] = held
	}
	// Volatile ids never reach the store, so only the live map can collide.
	var id model.AcquireID
	for {
		id = db.ids.NewID()
		if _, dup := held[string(id)]; !dup {
			break
		}
	}
	acq := model.Acquisition{FileID: fid, AcquireID: id, AcquireName: name}
	held[string(id)] = acq
	db.metrics.RecordAcquire(string(model.AcquireVolatile))
	return acq
}

func (db *Database) volatileAcquisitions(fid model.FileID) []model.Acquisition {
	held := db.volatile[string(fid)]
	out := make([]model.Acquisition, 0, len(held))
	for _, a := range held {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].AcquireID, out[j].AcquireID) < 0 })
	return out
}

// restartAcquisitions enumerates the file id index. Index keys whose record
// is missing are skipped and reported by Verify.
func (db *Database) restartAcquisitions(fid model.FileID) ([]model.Acquisition, error) {
	var out []model.Acquisition
	err := kv.ScanAll(db.store, acquireIndexQuery(fid), db.pageSize, func(p kv.Pair) error {
		data, err := db.store.Get(p.Value)
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read acquire: %w", err)
		}
		acq, err := record.UnmarshalAcquire(data)
		if err != nil {
			return err
		}
		out = append(out, *acq)
		return nil
	})
	return out, err
}
