package model

import "time"

// AuditEventType identifies the type of auditable event.
type AuditEventType string

const (
	EventTypeFileManage     AuditEventType = "file_manage"
	EventTypeFileReap       AuditEventType = "file_reap"
	EventTypeRestartAcquire AuditEventType = "restart_acquire"
	EventTypeRestartRelease AuditEventType = "restart_release"
	EventTypeSweep          AuditEventType = "sweep"
)

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

// AuditRecord is a single line in the audit log (JSONL format).
type AuditRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventType  AuditEventType `json:"event_type"`
	FileID     string         `json:"file_id,omitempty"`
	Path       string         `json:"path,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	PrevHash   HashValue      `json:"prev_hash"`
	RecordHash HashValue      `json:"record_hash"`
}
