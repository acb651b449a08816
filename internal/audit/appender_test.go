package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/internal/audit"
	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/model"
)

func readRecords(t *testing.T, path string) []model.AuditRecord {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []model.AuditRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r model.AuditRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestFileAppender_AppendCreatesJSONL(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit", "audit.jsonl")

	appender := audit.NewFileAppender(logPath)
	err := appender.Append(model.EventTypeFileManage, "a3f7c1b2", "/data/a.jpg", map[string]any{"acquire_name": "upload"})
	require.NoError(t, err)

	records := readRecords(t, logPath)
	require.Len(t, records, 1)
	assert.Equal(t, model.EventTypeFileManage, records[0].EventType)
	assert.Equal(t, "a3f7c1b2", records[0].FileID)
	assert.Equal(t, "/data/a.jpg", records[0].Path)
	assert.Equal(t, "upload", records[0].Details["acquire_name"])
}

func TestFileAppender_HashChain(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	appender := audit.NewFileAppender(logPath)

	require.NoError(t, appender.Append(model.EventTypeFileManage, "id1", "/data/a", nil))
	require.NoError(t, appender.Append(model.EventTypeFileReap, "id1", "/data/a", map[string]any{"sweep_id": "s1"}))

	records := readRecords(t, logPath)
	require.Len(t, records, 2)

	// First record has empty prev_hash
	assert.Equal(t, model.HashValue(""), records[0].PrevHash)
	// Second record's prev_hash equals first record's record_hash
	assert.Equal(t, records[0].RecordHash, records[1].PrevHash)
	assert.NotEmpty(t, records[1].RecordHash)
}

func TestFileAppender_ConcurrentAppends(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	appender := audit.NewFileAppender(logPath)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			appender.Append(model.EventTypeRestartAcquire, "id", "/data/a", map[string]any{"idx": idx})
		}(i)
	}
	wg.Wait()

	assert.Len(t, readRecords(t, logPath), 10)
	n, err := appender.Verify()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestFileAppender_GetLastRecordHash(t *testing.T) {
	appender := audit.NewFileAppender(filepath.Join(t.TempDir(), "audit.jsonl"))

	hash, err := appender.GetLastRecordHash()
	require.NoError(t, err)
	assert.Equal(t, model.HashValue(""), hash)

	require.NoError(t, appender.Append(model.EventTypeSweep, "", "", map[string]any{"deleted": 2}))

	hash, err = appender.GetLastRecordHash()
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestFileAppender_VerifyMissingLog(t *testing.T) {
	n, err := audit.NewFileAppender(filepath.Join(t.TempDir(), "none.jsonl")).Verify()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFileAppender_VerifyDetectsTampering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	appender := audit.NewFileAppender(logPath)

	require.NoError(t, appender.Append(model.EventTypeFileManage, "id1", "/data/a", nil))
	require.NoError(t, appender.Append(model.EventTypeFileReap, "id1", "/data/a", nil))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "/data/a", "/data/b", 1)
	require.NoError(t, os.WriteFile(logPath, []byte(tampered), 0644))

	_, err = appender.Verify()
	assert.ErrorIs(t, err, errclass.ErrAuditChainBroken)
}

func TestFileAppender_VerifyDetectsRemovedLine(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	appender := audit.NewFileAppender(logPath)

	for i := 0; i < 3; i++ {
		require.NoError(t, appender.Append(model.EventTypeFileManage, "id", "/data/a", map[string]any{"i": i}))
	}
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.SplitAfter(string(data), "\n")
	require.NoError(t, os.WriteFile(logPath, []byte(lines[0]+lines[2]), 0644))

	n, err := appender.Verify()
	assert.ErrorIs(t, err, errclass.ErrAuditChainBroken)
	assert.Equal(t, 2, n)
}
