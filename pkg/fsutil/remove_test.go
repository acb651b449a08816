package fsutil_test

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/managedfiles/pkg/fsutil"
)

func TestFsRemover_RemovesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/a.jpg", []byte("x"), 0644))

	r := &fsutil.FsRemover{Fs: fs}
	require.NoError(t, r.RemoveFile("/data/a.jpg"))

	exists, err := afero.Exists(fs, "/data/a.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFsRemover_MissingFileIsRemoved(t *testing.T) {
	r := &fsutil.FsRemover{Fs: afero.NewMemMapFs()}
	assert.NoError(t, r.RemoveFile("/data/never-existed"))
}

func TestFsRemover_PropagatesOtherErrors(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	r := &fsutil.FsRemover{Fs: fs}
	// ReadOnlyFs refuses removal with EPERM before checking existence.
	assert.Error(t, r.RemoveFile("/data/a.jpg"))
}

func TestRemoverFunc(t *testing.T) {
	boom := errors.New("boom")
	var got string
	r := fsutil.RemoverFunc(func(p string) error { got = p; return boom })

	assert.ErrorIs(t, r.RemoveFile("/x"), boom)
	assert.Equal(t, "/x", got)
}
