package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/internal/doctor"
)

func TestDoctorCommand_Healthy(t *testing.T) {
	dir := setupHome(t)
	manage(t, dir, writeFile(t, dir, "a"))

	out, err := executeCommand("-C", dir, "doctor", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "restart")
}

func TestDoctorCommand_EmptyHome(t *testing.T) {
	dir := setupHome(t)
	out, err := executeCommand("-C", dir, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "Home is healthy.")
}

func TestDoctorCommand_MissingFileAndRepair(t *testing.T) {
	dir := setupHome(t)
	path := writeFile(t, dir, "a")
	manage(t, dir, path)
	require.NoError(t, os.Remove(path))
	orphan := filepath.Join(dir, ".mfiles", "files", ".mfiles-tmp-1")
	require.NoError(t, os.WriteFile(orphan, nil, 0644))

	out, err := executeCommand("-C", dir, "--json", "doctor")
	require.NoError(t, err, "warnings do not make the home unhealthy")
	var result doctor.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Healthy)
	var categories []string
	for _, f := range result.Findings {
		categories = append(categories, f.Category)
	}
	assert.Contains(t, categories, "file")
	assert.Contains(t, categories, "tmp")

	out, err = executeCommand("-C", dir, "doctor", "--repair", "clean_tmp")
	require.NoError(t, err)
	assert.Contains(t, out, "Repair clean_tmp: cleaned 1")
	assert.NoFileExists(t, orphan)
}

func TestDoctorCommand_TamperedAudit(t *testing.T) {
	dir := setupHome(t)
	manage(t, dir, writeFile(t, dir, "a"))
	auditPath := filepath.Join(dir, ".mfiles", "audit", "audit.jsonl")
	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(auditPath, append([]byte("{}\n"), data...), 0644))

	_, err = executeCommand("-C", dir, "doctor")
	require.NoError(t, err)
	out, err := executeCommand("-C", dir, "doctor", "--strict")
	assert.ErrorIs(t, err, errUnhealthy)
	assert.Contains(t, out, "audit")
}
