package managedfiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/jvs-project/managedfiles/internal/audit"
	"github.com/jvs-project/managedfiles/internal/gc"
	"github.com/jvs-project/managedfiles/internal/ledger"
	"github.com/jvs-project/managedfiles/pkg/config"
	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/fsutil"
	"github.com/jvs-project/managedfiles/pkg/kv"
	"github.com/jvs-project/managedfiles/pkg/logging"
	"github.com/jvs-project/managedfiles/pkg/metrics"
	"github.com/jvs-project/managedfiles/pkg/model"
	"github.com/jvs-project/managedfiles/pkg/pathutil"
)

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Clock Clock
	// DefaultTTL is the grace period ManageFile applies. Defaults to
	// config.DefaultTTL.
	DefaultTTL time.Duration
	// Fs hosts temporary files and, unless Remover is set, file removal.
	// Defaults to the OS filesystem.
	Fs afero.Fs
	// FilesDir is where CreateTemporaryFile puts new files. Defaults to a
	// managedfiles directory under os.TempDir.
	FilesDir  string
	Remover   fsutil.FileRemover
	PageSize  int
	CacheSize int
	IDs       ledger.IDSource
	Audit     audit.Sink
	Logger    *logging.Logger
	Metrics   *metrics.Registry
}

// Manager is the entry point for tracking files.
type Manager struct {
	db        *ledger.Database
	collector *gc.Collector
	store     kv.Store
	clock     Clock
	ttl       time.Duration
	fs        afero.Fs
	filesDir  string
	audit     audit.Sink
	log       *logging.Logger
	root      string
}

// New builds a Manager over store. The Manager owns store and closes it in
// Close.
func New(store kv.Store, opts Options) (*Manager, error) {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = config.DefaultTTL
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.FilesDir == "" {
		opts.FilesDir = filepath.Join(os.TempDir(), "managedfiles")
	}
	if opts.Remover == nil {
		opts.Remover = &fsutil.FsRemover{Fs: opts.Fs}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global()
	}

	db, err := ledger.New(store, ledger.Options{
		PageSize:  opts.PageSize,
		CacheSize: opts.CacheSize,
		IDs:       opts.IDs,
		Remover:   opts.Remover,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	return &Manager{
		db: db,
		collector: gc.NewCollector(db, gc.Options{
			Audit:   opts.Audit,
			Metrics: opts.Metrics,
			Logger:  opts.Logger,
		}),
		store:    store,
		clock:    opts.Clock,
		ttl:      opts.DefaultTTL,
		fs:       opts.Fs,
		filesDir: opts.FilesDir,
		audit:    opts.Audit,
		log:      opts.Logger.WithFields(map[string]any{"component": "managedfiles"}),
	}, nil
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// Ledger exposes the underlying database for diagnostics.
func (m *Manager) Ledger() *ledger.Database { return m.db }

// Root returns the managedfiles home this Manager was opened from, or ""
// when it was built directly with New.
func (m *Manager) Root() string { return m.root }

// DefaultTTL returns the grace period ManageFile applies.
func (m *Manager) DefaultTTL() time.Duration { return m.ttl }

// FilesDir returns the directory CreateTemporaryFile writes to.
func (m *Manager) FilesDir() string { return m.filesDir }

// Now returns the Manager's clock reading in Unix milliseconds.
func (m *Manager) Now() int64 { return m.clock.NowMillis() }

// ManageFile starts tracking path with the default TTL and returns an
// Active volatile handle.
func (m *Manager) ManageFile(path, acquireName string) (*Handle, error) {
	return m.ManageFileWithExpiration(path, acquireName, m.clock.NowMillis()+m.ttl.Milliseconds())
}

// ManageFileWithExpiration starts tracking path with an absolute
// expiration time in Unix milliseconds. Zero means no grace period.
func (m *Manager) ManageFileWithExpiration(path, acquireName string, expirationMillis int64) (*Handle, error) {
	norm, err := pathutil.Normalize(path)
	if err != nil {
		return nil, err
	}
	if err := pathutil.ValidateAcquireName(acquireName); err != nil {
		return nil, err
	}
	entry, acq, err := m.db.Manage(norm, expirationMillis, acquireName)
	if err != nil {
		return nil, err
	}
	m.appendAudit(model.EventTypeFileManage, entry, map[string]any{
		"acquire_name": acquireName,
		"expiration":   expirationMillis,
	})
	return &Handle{m: m, entry: entry, acquireID: acq.AcquireID, kind: model.AcquireVolatile}, nil
}

// FindAndAcquireIfExists takes a volatile handle on the file with the given
// id. It returns nil and no error when no such file is tracked.
func (m *Manager) FindAndAcquireIfExists(fileID model.FileID, acquireName string) (*Handle, error) {
	if err := pathutil.ValidateAcquireName(acquireName); err != nil {
		return nil, err
	}
	entry, acq, err := m.db.FindAndAcquire(fileID, acquireName)
	if errors.Is(err, errclass.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Handle{m: m, entry: entry, acquireID: acq.AcquireID, kind: model.AcquireVolatile}, nil
}

// ReceiveRestartHandle resolves a restart acquisition persisted before a
// restart. Unknown ids fault with errclass.ErrAcquireNotFound.
func (m *Manager) ReceiveRestartHandle(acquireID model.AcquireID) (*Handle, error) {
	entry, err := m.db.ByAcquireID(acquireID)
	if err != nil {
		return nil, err
	}
	return &Handle{m: m, entry: entry, acquireID: acquireID, kind: model.AcquireRestart}, nil
}

// RemoveOldFiles runs one sweep at the current clock reading.
func (m *Manager) RemoveOldFiles() (*model.SweepReport, error) {
	return m.collector.Sweep(m.clock.NowMillis())
}

// PlanRemoval reports what RemoveOldFiles would delete right now.
func (m *Manager) PlanRemoval() (*model.SweepReport, error) {
	return m.collector.Plan(m.clock.NowMillis())
}

// List returns every tracked file with its holders. It has no side effects.
func (m *Manager) List() ([]model.FileStatus, error) {
	return m.db.Statuses()
}

// DebugDump renders List as indented text.
func (m *Manager) DebugDump() (string, error) {
	statuses, err := m.List()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d managed files\n", len(statuses))
	for _, s := range statuses {
		exp := "none"
		if s.Entry.ExpirationTimeInMillis != 0 {
			exp = s.Entry.ExpiresAt().UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%s %s expires=%s\n", s.Entry.FileID, s.Entry.Path, exp)
		for _, a := range s.Volatile {
			fmt.Fprintf(&b, "  volatile %s %s\n", a.AcquireID, a.AcquireName)
		}
		for _, a := range s.Restart {
			fmt.Fprintf(&b, "  restart  %s %s\n", a.AcquireID, a.AcquireName)
		}
	}
	return b.String(), nil
}

// CreateTemporaryFile creates an empty file named managed*<ext> in the
// files directory and tracks it with the default TTL.
func (m *Manager) CreateTemporaryFile(extension, acquireName string) (*Handle, error) {
	if err := pathutil.ValidateExtension(extension); err != nil {
		return nil, err
	}
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	if err := m.fs.MkdirAll(m.filesDir, 0700); err != nil {
		return nil, fmt.Errorf("create files dir: %w", err)
	}
	f, err := afero.TempFile(m.fs, m.filesDir, "managed*"+extension)
	if err != nil {
		return nil, fmt.Errorf("create temporary file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		m.fs.Remove(name)
		return nil, fmt.Errorf("close temporary file: %w", err)
	}
	h, err := m.ManageFile(name, acquireName)
	if err != nil {
		m.fs.Remove(name)
		return nil, err
	}
	return h, nil
}

func (m *Manager) acquireVolatile(entry *ledger.Entry, acquireName string) (*Handle, error) {
	if err := pathutil.ValidateAcquireName(acquireName); err != nil {
		return nil, err
	}
	id, err := entry.AcquireVolatile(acquireName)
	if err != nil {
		return nil, err
	}
	return &Handle{m: m, entry: entry, acquireID: id, kind: model.AcquireVolatile}, nil
}

func (m *Manager) acquireRestart(entry *ledger.Entry, acquireName string) (*Handle, error) {
	if err := pathutil.ValidateAcquireName(acquireName); err != nil {
		return nil, err
	}
	id, err := entry.AcquireRestart(acquireName)
	if err != nil {
		return nil, err
	}
	m.appendAudit(model.EventTypeRestartAcquire, entry, map[string]any{
		"acquire_id":   id.String(),
		"acquire_name": acquireName,
	})
	return &Handle{m: m, entry: entry, acquireID: id, kind: model.AcquireRestart}, nil
}

func (m *Manager) appendAudit(eventType model.AuditEventType, entry *ledger.Entry, details map[string]any) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Append(eventType, entry.FileID().String(), entry.Path(), details); err != nil {
		m.log.Warn("audit append failed", map[string]any{"event": string(eventType), "error": err.Error()})
	}
}
