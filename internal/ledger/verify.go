package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jvs-project/managedfiles/internal/record"
	"github.com/jvs-project/managedfiles/pkg/keys"
	"github.com/jvs-project/managedfiles/pkg/kv"
	"github.com/jvs-project/managedfiles/pkg/model"
)

// ProblemKind classifies an inconsistency found by Verify.
type ProblemKind string

const (
	ProblemUndecodable      ProblemKind = "undecodable_record"
	ProblemDanglingIndex    ProblemKind = "dangling_index"
	ProblemMissingIndex     ProblemKind = "missing_index"
	ProblemPathMismatch     ProblemKind = "path_mismatch"
	ProblemOrphanAcquire    ProblemKind = "orphan_acquire"
	ProblemIndexKeyMismatch ProblemKind = "index_key_mismatch"
)

// Problem is one inconsistency between the store's namespaces.
type Problem struct {
	Kind   ProblemKind `json:"kind"`
	Key    string      `json:"key"`
	FileID string      `json:"file_id,omitempty"`
	Detail string      `json:"detail"`
}

// Verify walks every namespace and cross-checks records against their
// indexes. It never modifies the store.
func (db *Database) Verify() ([]Problem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var problems []Problem
	report := func(kind ProblemKind, key []byte, fid model.FileID, format string, args ...any) {
		p := Problem{Kind: kind, Key: fmt.Sprintf("%x", key), Detail: fmt.Sprintf(format, args...)}
		if fid != nil {
			p.FileID = fid.String()
		}
		problems = append(problems, p)
	}

	err := kv.ScanAll(db.store, keys.Namespace(nsFile), db.pageSize, func(p kv.Pair) error {
		rec, err := record.UnmarshalFileEntry(p.Value)
		if err != nil {
			report(ProblemUndecodable, p.Key, nil, "%v", err)
			return nil
		}
		if !bytes.Equal(p.Key, fileKey(rec.FileID)) {
			report(ProblemIndexKeyMismatch, p.Key, rec.FileID, "record stored under a different file id")
		}
		if ok, err := db.pointsAt(allKey(rec.FileID), p.Key); err != nil {
			return err
		} else if !ok {
			report(ProblemMissingIndex, p.Key, rec.FileID, "not in enumeration index")
		}
		if ok, err := db.pointsAt(pathKey(rec.Path), p.Key); err != nil {
			return err
		} else if !ok {
			report(ProblemPathMismatch, p.Key, rec.FileID, "path index for %s does not point at this entry", rec.Path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ns := range []string{nsFilePath, nsFileAll, nsAcquireFile} {
		err := kv.ScanAll(db.store, keys.Namespace(ns), db.pageSize, func(p kv.Pair) error {
			v, err := db.store.Get(p.Value)
			if errors.Is(err, kv.ErrNotFound) {
				report(ProblemDanglingIndex, p.Key, nil, "%s entry points at missing key %x", ns, p.Value)
				return nil
			} else if err != nil {
				return fmt.Errorf("read %x: %w", p.Value, err)
			}
			if ns != nsAcquireFile {
				return nil
			}
			acq, err := record.UnmarshalAcquire(v)
			if err != nil {
				// Reported by the acquire namespace pass.
				return nil
			}
			if !bytes.Equal(p.Key, acquireIndexKey(acq.FileID, acq.AcquireID)) {
				report(ProblemIndexKeyMismatch, p.Key, acq.FileID, "index key does not match acquire %s", acq.AcquireID)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	err = kv.ScanAll(db.store, keys.Namespace(nsAcquire), db.pageSize, func(p kv.Pair) error {
		acq, err := record.UnmarshalAcquire(p.Value)
		if err != nil {
			report(ProblemUndecodable, p.Key, nil, "%v", err)
			return nil
		}
		if _, err := db.store.Get(fileKey(acq.FileID)); errors.Is(err, kv.ErrNotFound) {
			report(ProblemOrphanAcquire, p.Key, acq.FileID, "restart acquire %s holds a missing file", acq.AcquireID)
		} else if err != nil {
			return fmt.Errorf("read file entry: %w", err)
		}
		if ok, err := db.pointsAt(acquireIndexKey(acq.FileID, acq.AcquireID), p.Key); err != nil {
			return err
		} else if !ok {
			report(ProblemMissingIndex, p.Key, acq.FileID, "restart acquire %s not in file index", acq.AcquireID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return problems, nil
}

// pointsAt reports whether index key k exists and references target.
func (db *Database) pointsAt(k, target []byte) (bool, error) {
	v, err := db.store.Get(k)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %x: %w", k, err)
	}
	return bytes.Equal(v, target), nil
}
