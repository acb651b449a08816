package fsutil

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// FileRemover deletes a tracked file from disk.
type FileRemover interface {
	RemoveFile(path string) error
}

// FsRemover removes files through an afero filesystem. A file that is
// already gone counts as removed.
type FsRemover struct {
	Fs afero.Fs
}

// NewOsRemover returns a remover backed by the real filesystem.
func NewOsRemover() *FsRemover {
	return &FsRemover{Fs: afero.NewOsFs()}
}

func (r *FsRemover) RemoveFile(path string) error {
	err := r.Fs.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("remove %s: %w", path, err)
}

// RemoverFunc adapts a function to FileRemover.
type RemoverFunc func(path string) error

func (f RemoverFunc) RemoveFile(path string) error { return f(path) }
