package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/keys"
	"github.com/jvs-project/managedfiles/pkg/kv"
	"github.com/jvs-project/managedfiles/pkg/model"
)

// Sweep examines every entry at nowMillis and deletes the ones nobody holds
// whose expiration gate has passed. The lock is held for the whole pass so
// no acquisition can land between the emptiness check and the delete.
//
// With dryRun set nothing is removed and eligible entries are reported as
// model.SweepCandidate. If removing a file fails the sweep stops and returns
// the results gathered so far along with the error. A corrupt record aborts
// the sweep with errclass.ErrDatabaseCorrupt. An unheld entry whose path
// index names a different entry is dropped from the ledger without touching
// the file and reported as model.SweepSuperseded.
func (db *Database) Sweep(nowMillis int64, dryRun bool) ([]model.SweepResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var results []model.SweepResult
	err := db.eachEntry(func(p kv.Pair, rec *model.FileEntry) error {
		if rec == nil {
			// A previous sweep got as far as the value key.
			id, err := keys.TrailingID(keys.Namespace(nsFileAll), p.Key)
			if err != nil {
				return errclass.ErrDatabaseCorrupt.WithMessagef("file index key: %v", err)
			}
			if !dryRun {
				if err := db.deleteIgnoreMissing(p.Key); err != nil {
					return err
				}
			}
			results = append(results, model.SweepResult{FileID: id, Outcome: model.SweepAlreadyRemoved})
			return nil
		}

		outcome, err := db.verdict(rec, nowMillis)
		if err != nil {
			return err
		}
		if outcome == model.SweepCandidate {
			if outcome, err = db.shadowed(rec); err != nil {
				return err
			}
		}
		if outcome == model.SweepSuperseded && !dryRun {
			// Another entry owns the path and its file. Drop only our keys.
			if err := db.deleteEntry(rec); err != nil {
				return err
			}
		}
		if outcome == model.SweepCandidate && !dryRun {
			if err := db.remover.RemoveFile(rec.Path); err != nil {
				return fmt.Errorf("sweep %s: %w", rec.FileID, err)
			}
			if err := db.deleteEntry(rec); err != nil {
				return err
			}
			outcome = model.SweepDeleted
		}
		results = append(results, model.SweepResult{
			FileID:  rec.FileID,
			Path:    rec.Path,
			Outcome: outcome,
		})
		return nil
	})
	return results, err
}

// shadowed reports model.SweepSuperseded when the path index exists and
// names a different entry, model.SweepCandidate otherwise.
func (db *Database) shadowed(rec *model.FileEntry) (model.SweepOutcome, error) {
	v, err := db.store.Get(pathKey(rec.Path))
	if errors.Is(err, kv.ErrNotFound) {
		return model.SweepCandidate, nil
	}
	if err != nil {
		return "", fmt.Errorf("read path index: %w", err)
	}
	if !bytes.Equal(v, fileKey(rec.FileID)) {
		db.log.Warn("entry shadowed by another entry for its path", map[string]any{
			"file_id": rec.FileID.String(),
			"path":    rec.Path,
		})
		return model.SweepSuperseded, nil
	}
	return model.SweepCandidate, nil
}

func (db *Database) verdict(rec *model.FileEntry, nowMillis int64) (model.SweepOutcome, error) {
	if len(db.volatile[string(rec.FileID)]) > 0 {
		return model.SweepHeldVolatile, nil
	}
	restart, err := db.restartAcquisitions(rec.FileID)
	if err != nil {
		return "", err
	}
	if len(restart) > 0 {
		return model.SweepHeldRestart, nil
	}
	if rec.Protected(nowMillis) {
		return model.SweepGracePeriod, nil
	}
	return model.SweepCandidate, nil
}
