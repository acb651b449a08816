package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/pkg/model"
)

func kinds(problems []Problem) []ProblemKind {
	out := make([]ProblemKind, 0, len(problems))
	for _, p := range problems {
		out = append(out, p.Kind)
	}
	return out
}

func TestVerify_Clean(t *testing.T) {
	db, _, _ := newTestDB(t)

	e, _, err := db.Manage("/data/a", 0, "t")
	require.NoError(t, err)
	_, err = e.AcquireRestart("r")
	require.NoError(t, err)
	_, err = db.Create("/data/b", 10)
	require.NoError(t, err)

	problems, err := db.Verify()
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestVerify_Undecodable(t *testing.T) {
	db, store, _ := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	require.NoError(t, store.Put(fileKey(e.FileID()), []byte{0xff}))

	problems, err := db.Verify()
	require.NoError(t, err)
	assert.Contains(t, kinds(problems), ProblemUndecodable)
}

func TestVerify_DanglingIndex(t *testing.T) {
	db, store, _ := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	require.NoError(t, store.Delete(fileKey(e.FileID())))

	problems, err := db.Verify()
	require.NoError(t, err)
	// Both the path index and the enumeration index dangle.
	assert.Equal(t, []ProblemKind{ProblemDanglingIndex, ProblemDanglingIndex}, kinds(problems))
}

func TestVerify_MissingIndexes(t *testing.T) {
	db, store, _ := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	require.NoError(t, store.Delete(allKey(e.FileID())))
	require.NoError(t, store.Delete(pathKey("/data/a")))

	problems, err := db.Verify()
	require.NoError(t, err)
	assert.ElementsMatch(t, []ProblemKind{ProblemMissingIndex, ProblemPathMismatch}, kinds(problems))
	assert.Equal(t, e.FileID().String(), problems[0].FileID)
}

func TestVerify_OrphanAcquire(t *testing.T) {
	db, store, _ := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	_, err = e.AcquireRestart("r")
	require.NoError(t, err)
	require.NoError(t, store.Delete(fileKey(e.FileID())))
	require.NoError(t, store.Delete(allKey(e.FileID())))
	require.NoError(t, store.Delete(pathKey("/data/a")))

	problems, err := db.Verify()
	require.NoError(t, err)
	assert.Equal(t, []ProblemKind{ProblemOrphanAcquire}, kinds(problems))
}

func TestVerify_AcquireMissingFromIndex(t *testing.T) {
	db, store, _ := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	aid, err := e.AcquireRestart("r")
	require.NoError(t, err)
	require.NoError(t, store.Delete(acquireIndexKey(e.FileID(), aid)))

	problems, err := db.Verify()
	require.NoError(t, err)
	assert.Equal(t, []ProblemKind{ProblemMissingIndex}, kinds(problems))
}

func TestVerify_IndexKeyMismatch(t *testing.T) {
	db, store, _ := newTestDB(t)

	e, err := db.Create("/data/a", 0)
	require.NoError(t, err)
	aid, err := e.AcquireRestart("r")
	require.NoError(t, err)
	// An index entry filed under the wrong acquire id.
	require.NoError(t, store.Put(acquireIndexKey(e.FileID(), model.AcquireID("other")), acquireKey(aid)))

	problems, err := db.Verify()
	require.NoError(t, err)
	assert.Equal(t, []ProblemKind{ProblemIndexKeyMismatch}, kinds(problems))
}
