package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/model"
)

func TestSweep_Outcomes(t *testing.T) {
	db, _, rm := newTestDB(t)
	const now = int64(1_000_000)

	_, _, err := db.Manage("/data/held", 0, "upload")
	require.NoError(t, err)
	r, err := db.Create("/data/restart", 0)
	require.NoError(t, err)
	_, err = r.AcquireRestart("resume")
	require.NoError(t, err)
	_, err = db.Create("/data/grace", now+60_000)
	require.NoError(t, err)
	_, err = db.Create("/data/expired", now-1)
	require.NoError(t, err)
	_, err = db.Create("/data/nograce", 0)
	require.NoError(t, err)
	_, err = db.Create("/data/boundary", now)
	require.NoError(t, err)

	results, err := db.Sweep(now, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]model.SweepOutcome{
		"/data/held":     model.SweepHeldVolatile,
		"/data/restart":  model.SweepHeldRestart,
		"/data/grace":    model.SweepGracePeriod,
		"/data/expired":  model.SweepDeleted,
		"/data/nograce":  model.SweepDeleted,
		"/data/boundary": model.SweepDeleted,
	}, outcomes(results))

	assert.ElementsMatch(t, []string{"/data/expired", "/data/nograce", "/data/boundary"}, rm.removed)

	list, err := db.List()
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestSweep_DeletesAllKeys(t *testing.T) {
	db, store, _ := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	before := store.Len()
	require.Equal(t, 3, before)

	_, err = db.Sweep(0, false)
	require.NoError(t, err)
	assert.Zero(t, store.Len())

	_, err = db.ByFileID(e.FileID())
	assert.ErrorIs(t, err, errclass.ErrNotFound)
}

func TestSweep_DryRun(t *testing.T) {
	db, store, rm := newTestDB(t)

	_, err := db.Create("/data/a", 0)
	require.NoError(t, err)

	results, err := db.Sweep(0, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.SweepCandidate, results[0].Outcome)
	assert.Empty(t, rm.removed)
	assert.Equal(t, 3, store.Len())
}

func TestSweep_ExpirationGate(t *testing.T) {
	db, _, rm := newTestDB(t)
	const now = int64(5_000)

	e, acq, err := db.Manage("/data/p2", now+60_000, "t")
	require.NoError(t, err)
	require.NoError(t, e.ReleaseVolatile(acq.AcquireID))

	_, err = db.Sweep(now, false)
	require.NoError(t, err)
	assert.Zero(t, rm.count("/data/p2"))

	_, err = db.Sweep(now+60_000+1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, rm.count("/data/p2"))
}

func TestSweep_RemoveFailureAborts(t *testing.T) {
	db, store, rm := newTestDB(t)
	rm.fail = errDiskGone

	_, err := db.Create("/data/a", 0)
	require.NoError(t, err)

	_, err = db.Sweep(0, false)
	require.ErrorIs(t, err, errDiskGone)
	assert.Equal(t, 3, store.Len(), "keys stay when the file could not be removed")

	rm.fail = nil
	_, err = db.Sweep(0, false)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestSweep_CorruptRecordIsFatal(t *testing.T) {
	db, store, rm := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	require.NoError(t, store.Put(fileKey(e.FileID()), []byte{0x0a, 0x7f}))

	_, err = db.Sweep(0, false)
	assert.ErrorIs(t, err, errclass.ErrDatabaseCorrupt)
	assert.Empty(t, rm.removed)
}

func TestSweep_ValueAlreadyGone(t *testing.T) {
	db, store, rm := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	require.NoError(t, store.Delete(pathKey("/data/a")))
	require.NoError(t, store.Delete(fileKey(e.FileID())))

	results, err := db.Sweep(0, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.SweepAlreadyRemoved, results[0].Outcome)
	assert.Equal(t, e.FileID(), results[0].FileID)
	assert.Empty(t, rm.removed)
	assert.Zero(t, store.Len())
}

func TestSweep_CleansDanglingRestartIndex(t *testing.T) {
	db, store, _ := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	aid, err := e.AcquireRestart("r")
	require.NoError(t, err)
	// Simulate a release interrupted after the record delete.
	require.NoError(t, store.Delete(acquireKey(aid)))

	_, err = db.Sweep(0, false)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

// H1 = manage; H2 = mint from H1; release H1; sweep keeps; release H2;
// sweep deletes and removes the file exactly once.
func TestSweep_MintedHandleKeepsFile(t *testing.T) {
	db, _, rm := newTestDB(t)

	e, h1, err := db.Manage("/tmp/a", 0, "t1")
	require.NoError(t, err)
	h2, err := e.AcquireVolatile("t2")
	require.NoError(t, err)
	require.NoError(t, e.ReleaseVolatile(h1.AcquireID))

	_, err = db.Sweep(0, false)
	require.NoError(t, err)
	_, err = db.ByFileID(e.FileID())
	require.NoError(t, err)
	assert.Zero(t, rm.count("/tmp/a"))

	require.NoError(t, e.ReleaseVolatile(h2))
	_, err = db.Sweep(0, false)
	require.NoError(t, err)
	_, err = db.Sweep(0, false)
	require.NoError(t, err)

	_, err = db.ByFileID(e.FileID())
	assert.ErrorIs(t, err, errclass.ErrNotFound)
	assert.Equal(t, 1, rm.count("/tmp/a"))
}

func TestSweep_ManyEntriesAcrossPages(t *testing.T) {
	db, store, rm := newTestDB(t) // page size 3

	for i := 0; i < 11; i++ {
		_, err := db.Create(fmt.Sprintf("/data/%02d", i), 0)
		require.NoError(t, err)
	}
	results, err := db.Sweep(0, false)
	require.NoError(t, err)
	assert.Len(t, results, 11)
	assert.Len(t, rm.removed, 11)
	assert.Zero(t, store.Len())
}

// Concurrent acquires either land before the sweep and keep the file, or
// after it and fail with ErrNotFound. A file is never removed while held.
func TestSweep_ConcurrentAcquire(t *testing.T) {
	for i := 0; i < 20; i++ {
		db, _, rm := newTestDB(t)
		e, err := db.Create("/data/race", 0)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var acquireErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acquireErr = e.AcquireVolatile("racer")
		}()
		go func() {
			defer wg.Done()
			_, _ = db.Sweep(0, false)
		}()
		wg.Wait()

		if acquireErr == nil {
			assert.Zero(t, rm.count("/data/race"), "held file was removed")
		} else {
			assert.ErrorIs(t, acquireErr, errclass.ErrNotFound)
			assert.Equal(t, 1, rm.count("/data/race"))
		}
	}
}
