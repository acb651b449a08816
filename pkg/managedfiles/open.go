package managedfiles

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jvs-project/managedfiles/internal/audit"
	"github.com/jvs-project/managedfiles/internal/home"
	"github.com/jvs-project/managedfiles/pkg/config"
	"github.com/jvs-project/managedfiles/pkg/logging"
	"github.com/jvs-project/managedfiles/pkg/metrics"
)

// OpenOptions adjusts a Manager opened from a managedfiles home.
type OpenOptions struct {
	Clock   Clock
	Logger  *logging.Logger
	Metrics *metrics.Registry
}

// Init creates a managedfiles home at path and opens it.
func Init(path string, opts OpenOptions) (*Manager, error) {
	if _, err := home.Init(path); err != nil {
		return nil, fmt.Errorf("managedfiles init: %w", err)
	}
	return Open(path, opts)
}

// Open opens the managedfiles home at or above path using its config.
func Open(path string, opts OpenOptions) (*Manager, error) {
	h, err := home.Discover(path)
	if err != nil {
		return nil, fmt.Errorf("managedfiles open: %w", err)
	}
	cfg, err := config.Load(h.Root)
	if err != nil {
		return nil, fmt.Errorf("managedfiles open: %w", err)
	}
	store, err := h.OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("managedfiles open store: %w", err)
	}

	m, err := New(store, Options{
		Clock:      opts.Clock,
		DefaultTTL: cfg.TTL(),
		FilesDir:   h.FilesDir(cfg),
		PageSize:   cfg.Sweep.PageSize,
		CacheSize:  cfg.CacheSize,
		Audit:      audit.NewFileAppender(h.AuditPath()),
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	m.root = h.Root
	return m, nil
}

// OpenOrInit opens an existing home at path, or initializes a new one.
func OpenOrInit(path string, opts OpenOptions) (*Manager, error) {
	if info, err := os.Stat(filepath.Join(path, home.DirName)); err == nil && info.IsDir() {
		return Open(path, opts)
	}
	return Init(path, opts)
}
