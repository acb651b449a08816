package model

import "time"

// FileEntry is the persisted record of a tracked file. Immutable after creation.
//
// ExpirationTimeInMillis == 0 means no grace period: the file is eligible for
// deletion as soon as it is unacquired. It does NOT mean "never expires".
// Ephemeral capture files rely on 0; TTL'd files carry an absolute timestamp.
type FileEntry struct {
	FileID                 FileID `json:"file_id"`
	Path                   string `json:"path"`
	ExpirationTimeInMillis int64  `json:"expiration_time_in_millis"`
}

// Protected reports whether the entry is still inside its grace period at now.
func (e *FileEntry) Protected(nowMillis int64) bool {
	return e.ExpirationTimeInMillis != 0 && nowMillis < e.ExpirationTimeInMillis
}

// ExpiresAt returns the expiration gate as a time, or the zero time when the
// entry has no grace period.
func (e *FileEntry) ExpiresAt() time.Time {
	if e.ExpirationTimeInMillis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.ExpirationTimeInMillis)
}

// Acquisition is one reference held against a file entry.
type Acquisition struct {
	FileID      FileID    `json:"file_id"`
	AcquireID   AcquireID `json:"acquire_id"`
	AcquireName string    `json:"acquire_name"`
}

// FileStatus is a diagnostic snapshot of one entry and its holders.
type FileStatus struct {
	Entry    FileEntry     `json:"entry"`
	Volatile []Acquisition `json:"volatile,omitempty"`
	Restart  []Acquisition `json:"restart,omitempty"`
}

// Acquired reports whether any holder references the file.
func (s *FileStatus) Acquired() bool {
	return len(s.Volatile) > 0 || len(s.Restart) > 0
}
