package managedfiles

import (
	"sync"

	"github.com/jvs-project/managedfiles/internal/ledger"
	"github.com/jvs-project/managedfiles/pkg/errclass"
	"github.com/jvs-project/managedfiles/pkg/model"
)

// Handle is one acquisition of a tracked file. It starts Active and becomes
// Released after a successful Release; every accessor then faults with
// errclass.ErrAlreadyReleased.
type Handle struct {
	m         *Manager
	entry     *ledger.Entry
	acquireID model.AcquireID
	kind      model.AcquireKind

	mu       sync.Mutex
	released bool
}

func (h *Handle) active() error {
	if h.released {
		return errclass.ErrAlreadyReleased.WithMessagef("handle %s is released", h.acquireID)
	}
	return nil
}

// Release drops this acquisition. A failed release leaves the handle Active.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.active(); err != nil {
		return err
	}
	if h.kind == model.AcquireRestart {
		if err := h.entry.ReleaseRestart(h.acquireID); err != nil {
			return err
		}
		h.m.appendAudit(model.EventTypeRestartRelease, h.entry, map[string]any{
			"acquire_id": h.acquireID.String(),
		})
	} else if err := h.entry.ReleaseVolatile(h.acquireID); err != nil {
		return err
	}
	h.released = true
	return nil
}

// Released reports whether Release has succeeded.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Kind reports whether the handle is volatile or restart.
func (h *Handle) Kind() model.AcquireKind { return h.kind }

// Path returns the tracked file's path.
func (h *Handle) Path() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.active(); err != nil {
		return "", err
	}
	return h.entry.Path(), nil
}

// FileID returns the tracked file's id.
func (h *Handle) FileID() (model.FileID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.active(); err != nil {
		return nil, err
	}
	return h.entry.FileID(), nil
}

// AcquireID returns the id of this acquisition. For a restart handle it is
// the value to hand to ReceiveRestartHandle after a restart.
func (h *Handle) AcquireID() (model.AcquireID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.active(); err != nil {
		return nil, err
	}
	return h.acquireID, nil
}

// ExpirationTimeInMillis returns the entry's expiration gate.
func (h *Handle) ExpirationTimeInMillis() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.active(); err != nil {
		return 0, err
	}
	return h.entry.ExpirationTimeInMillis(), nil
}

// NewManagedFile mints a new volatile handle on the same file. The
// receiver is unchanged.
func (h *Handle) NewManagedFile(acquireName string) (*Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.active(); err != nil {
		return nil, err
	}
	return h.m.acquireVolatile(h.entry, acquireName)
}

// NewRestartManagedFile mints a new restart handle on the same file. The
// receiver is unchanged.
func (h *Handle) NewRestartManagedFile(acquireName string) (*Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.active(); err != nil {
		return nil, err
	}
	return h.m.acquireRestart(h.entry, acquireName)
}
