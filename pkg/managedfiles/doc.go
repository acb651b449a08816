// Package managedfiles tracks files borrowed by one or more holders and
// deletes them once nobody holds them and their grace period has passed.
//
// Every tracked file has a persisted entry and a set of acquisitions. A
// Handle is one acquisition. Volatile handles live only in process memory
// and vanish on restart; restart handles are persisted and must be resolved
// with ReceiveRestartHandle and released explicitly after a restart.
//
// # Expiration
//
// An entry carries an absolute expiration time in Unix milliseconds. Until
// that time the file survives sweeps even if unheld. Zero means no grace
// period: the file is deleted by the first sweep after its last release.
// It does not mean the file never expires.
//
// Callers relying on zero are ephemeral files that should disappear as soon
// as they are released; files that should outlive a brief gap between
// holders use ManageFile, which applies the default TTL.
//
// # Concurrency Safety
//
// A Manager is safe for concurrent use. All ledger mutations, including a
// whole sweep, are serialized behind one mutex, so a sweep blocks acquire
// and release for its duration. A restart acquisition that is never
// released keeps its file alive indefinitely; the doctor command lists
// them.
//
// # Usage
//
//	m, err := managedfiles.Open(".")
//	h, err := m.ManageFile("/srv/uploads/a.jpg", "upload")
//	r, err := h.NewRestartManagedFile("thumbnailer")
//	h.Release()
//	// after a restart
//	r, err = m.ReceiveRestartHandle(savedAcquireID)
//	path, err := r.Path()
//	r.Release()
//	m.RemoveOldFiles()
package managedfiles
