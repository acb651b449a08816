package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/pkg/fsutil"
)

func TestAtomicWrite_CreatesFile(t *testing.T) {
	fs := afero.NewOsFs()
	dir := t.TempDir()
	path := filepath.Join(dir, "store_id")
	data := []byte("0f8c2a")

	require.NoError(t, fsutil.AtomicWrite(fs, path, data, 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestAtomicWrite_OverwritesExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home", 0755))
	require.NoError(t, afero.WriteFile(fs, "/home/format_version", []byte("old"), 0644))

	require.NoError(t, fsutil.AtomicWrite(fs, "/home/format_version", []byte("new"), 0644))

	content, err := afero.ReadFile(fs, "/home/format_version")
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestAtomicWrite_NoTmpLeftOnSuccess(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home", 0755))
	require.NoError(t, fsutil.AtomicWrite(fs, "/home/data", []byte("data"), 0644))

	entries, err := afero.ReadDir(fs, "/home")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the target file should exist")
}

func TestAtomicWrite_MissingDir(t *testing.T) {
	fs := afero.NewOsFs()
	err := fsutil.AtomicWrite(fs, filepath.Join(t.TempDir(), "nope", "x"), []byte("x"), 0644)
	assert.Error(t, err)
}

func TestFsyncDir(t *testing.T) {
	assert.NoError(t, fsutil.FsyncDir(afero.NewOsFs(), t.TempDir()))
}
