package model

import (
	"encoding/hex"
	"fmt"
)

// FileID identifies a tracked file's logical record. Opaque, never reused.
type FileID []byte

func (id FileID) String() string { return hex.EncodeToString(id) }

// ParseFileID decodes the hex form produced by FileID.String.
func ParseFileID(s string) (FileID, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, fmt.Errorf("invalid file id %q", s)
	}
	return FileID(b), nil
}

// AcquireID identifies one acquisition against a file entry.
type AcquireID []byte

func (id AcquireID) String() string { return hex.EncodeToString(id) }

// ParseAcquireID decodes the hex form produced by AcquireID.String.
func ParseAcquireID(s string) (AcquireID, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, fmt.Errorf("invalid acquire id %q", s)
	}
	return AcquireID(b), nil
}

// AcquireKind distinguishes in-memory holds from persisted ones.
type AcquireKind string

const (
	// AcquireVolatile holds live only in process memory and vanish on restart.
	AcquireVolatile AcquireKind = "volatile"
	// AcquireRestart holds are persisted and must be released explicitly.
	AcquireRestart AcquireKind = "restart"
)
