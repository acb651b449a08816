package home_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/internal/home"
	"github.com/jvs-project/managedfiles/pkg/config"
	"github.com/jvs-project/managedfiles/pkg/errclass"
)

func TestInit_CreatesDirectoryStructure(t *testing.T) {
	dir := t.TempDir()
	h, err := home.Init(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, h.FormatVersion)
	assert.NotEmpty(t, h.StoreID)

	for _, sub := range []string{"db", "audit", "files"} {
		assert.DirExists(t, filepath.Join(dir, ".mfiles", sub))
	}
	assert.FileExists(t, filepath.Join(dir, ".mfiles", "format_version"))
	assert.FileExists(t, config.Path(dir))
}

func TestInit_Twice(t *testing.T) {
	dir := t.TempDir()
	_, err := home.Init(dir)
	require.NoError(t, err)
	_, err = home.Init(dir)
	assert.Error(t, err)
}

func TestDiscover_FindsHome(t *testing.T) {
	dir := t.TempDir()
	created, err := home.Init(dir)
	require.NoError(t, err)

	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))

	h, err := home.Discover(sub)
	require.NoError(t, err)
	assert.Equal(t, created.Root, h.Root)
	assert.Equal(t, created.StoreID, h.StoreID)
}

func TestDiscover_NotFound(t *testing.T) {
	_, err := home.Discover(t.TempDir())
	assert.ErrorIs(t, err, errclass.ErrNotFound)
}

func TestDiscover_FutureFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := home.Init(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mfiles", "format_version"), []byte("9\n"), 0644))

	_, err = home.Discover(dir)
	assert.ErrorIs(t, err, errclass.ErrFormatUnsupported)
}

func TestFilesDir(t *testing.T) {
	h := &home.Home{Root: "/srv/app"}
	cfg := config.Default()
	assert.Equal(t, "/srv/app/.mfiles/files", h.FilesDir(cfg))

	cfg.FilesDir = "cache"
	assert.Equal(t, "/srv/app/cache", h.FilesDir(cfg))

	cfg.FilesDir = "/var/cache/mf"
	assert.Equal(t, "/var/cache/mf", h.FilesDir(cfg))
}

func TestOpenStore_Backends(t *testing.T) {
	for _, backend := range []string{config.BackendBadger, config.BackendBolt, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			h, err := home.Init(t.TempDir())
			require.NoError(t, err)
			cfg := config.Default()
			cfg.Backend = backend

			store, err := h.OpenStore(cfg)
			require.NoError(t, err)
			require.NoError(t, store.Put([]byte("k"), []byte("v")))
			v, err := store.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), v)
			require.NoError(t, store.Close())
		})
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	h := &home.Home{Root: t.TempDir()}
	cfg := config.Default()
	cfg.Backend = "etcd"
	_, err := h.OpenStore(cfg)
	assert.ErrorIs(t, err, errclass.ErrConfigInvalid)
}
