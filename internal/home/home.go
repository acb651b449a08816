// Package home manages the on-disk layout of a managedfiles installation:
//
//	<root>/.mfiles/
//	    format_version
//	    store_id
//	    config.yaml
//	    db/            badger directory, or db/ledger.db for bolt
//	    audit/audit.jsonl
//	    files/         temporary files
package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/jvs-project/managedfiles/pkg/config"
	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/fsutil"
	"github.com/jvs-project/managedfiles/pkg/kv"
	"github.com/jvs-project/managedfiles/pkg/kv/badgerkv"
	"github.com/jvs-project/managedfiles/pkg/kv/boltkv"
	"github.com/jvs-project/managedfiles/pkg/kv/memkv"
	"github.com/jvs-project/managedfiles/pkg/uuidutil"
)

const (
	FormatVersion     = 1
	DirName           = ".mfiles"
	FormatVersionFile = "format_version"
	StoreIDFile       = "store_id"
)

// Home represents an initialized managedfiles directory.
type Home struct {
	Root          string
	FormatVersion int
	StoreID       string
}

// Init creates a managedfiles home at path with a default config. An
// existing home is an error.
func Init(path string) (*Home, error) {
	fs := afero.NewOsFs()
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Join(root, DirName)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("managedfiles home already exists at %s", dir)
	}

	for _, d := range []string{
		dir,
		filepath.Join(dir, "db"),
		filepath.Join(dir, "audit"),
		filepath.Join(dir, "files"),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	if err := fsutil.AtomicWrite(fs, filepath.Join(dir, FormatVersionFile), []byte(fmt.Sprintf("%d\n", FormatVersion)), 0644); err != nil {
		return nil, fmt.Errorf("write format_version: %w", err)
	}
	storeID := uuidutil.NewV4()
	if err := fsutil.AtomicWrite(fs, filepath.Join(dir, StoreIDFile), []byte(storeID+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write store_id: %w", err)
	}
	if err := config.Save(root, config.Default()); err != nil {
		return nil, err
	}
	if err := fsutil.FsyncDir(fs, root); err != nil {
		return nil, fmt.Errorf("fsync root: %w", err)
	}

	return &Home{Root: root, FormatVersion: FormatVersion, StoreID: storeID}, nil
}

// Discover walks up from cwd to find the directory containing .mfiles/.
func Discover(cwd string) (*Home, error) {
	path, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cwd, err)
	}
	for {
		dir := filepath.Join(path, DirName)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			version, err := readFormatVersion(dir)
			if err != nil {
				return nil, err
			}
			if version > FormatVersion {
				return nil, errclass.ErrFormatUnsupported.WithMessagef(
					"format version %d > supported %d", version, FormatVersion)
			}
			storeID, _ := readStoreID(dir)
			return &Home{Root: path, FormatVersion: version, StoreID: storeID}, nil
		}

		parent := filepath.Dir(path)
		if parent == path {
			return nil, errclass.ErrNotFound.WithMessagef("no managedfiles home found (no %s/ in parent directories)", DirName)
		}
		path = parent
	}
}

// Dir returns the .mfiles directory.
func (h *Home) Dir() string { return filepath.Join(h.Root, DirName) }

// DBDir returns the store directory.
func (h *Home) DBDir() string { return filepath.Join(h.Dir(), "db") }

// AuditPath returns the audit log location.
func (h *Home) AuditPath() string { return filepath.Join(h.Dir(), "audit", "audit.jsonl") }

// FilesDir returns where temporary files go: cfg.FilesDir when set
// (relative paths resolve against Root), otherwise .mfiles/files.
func (h *Home) FilesDir(cfg *config.Config) string {
	if cfg.FilesDir == "" {
		return filepath.Join(h.Dir(), "files")
	}
	if filepath.IsAbs(cfg.FilesDir) {
		return cfg.FilesDir
	}
	return filepath.Join(h.Root, cfg.FilesDir)
}

// OpenStore opens the backend cfg selects.
func (h *Home) OpenStore(cfg *config.Config) (kv.Store, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		return badgerkv.Open(badgerkv.Options{Dir: h.DBDir(), SyncWrites: true})
	case config.BackendBolt:
		if err := os.MkdirAll(h.DBDir(), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		return boltkv.Open(filepath.Join(h.DBDir(), "ledger.db"))
	case config.BackendMemory:
		return memkv.New(), nil
	}
	return nil, errclass.ErrConfigInvalid.WithMessagef("unknown backend %q", cfg.Backend)
}

func readFormatVersion(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, FormatVersionFile))
	if err != nil {
		return 0, fmt.Errorf("read format_version: %w", err)
	}
	var version int
	if _, err := fmt.Sscanf(string(data), "%d", &version); err != nil {
		return 0, fmt.Errorf("parse format_version: %w", err)
	}
	return version, nil
}

func readStoreID(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, StoreIDFile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
