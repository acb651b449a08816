package errclass

import "fmt"

// MFError is a stable, machine-readable error class.
type MFError struct {
	Code    string
	Message string
}

func (e *MFError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *MFError) Is(target error) bool {
	t, ok := target.(*MFError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new MFError with the same Code but a specific message.
func (e *MFError) WithMessage(msg string) *MFError {
	return &MFError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new MFError with a formatted message.
func (e *MFError) WithMessagef(format string, args ...any) *MFError {
	return &MFError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Error classes.
//
// ErrNotFound is the only recoverable class. ErrDatabaseCorrupt and
// ErrIDCollision mean the store and the ledger have diverged. ErrAlreadyReleased
// and ErrAcquireNotFound are caller bugs and are never retried.
var (
	ErrNotFound           = &MFError{Code: "E_NOT_FOUND"}
	ErrDatabaseCorrupt    = &MFError{Code: "E_DATABASE_CORRUPT"}
	ErrAlreadyReleased    = &MFError{Code: "E_ALREADY_RELEASED"}
	ErrAcquireNotFound    = &MFError{Code: "E_ACQUIRE_NOT_FOUND"}
	ErrFileAlreadyManaged = &MFError{Code: "E_FILE_ALREADY_MANAGED"}
	ErrIDCollision        = &MFError{Code: "E_ID_COLLISION"}
	ErrPathInvalid        = &MFError{Code: "E_PATH_INVALID"}
	ErrNameInvalid        = &MFError{Code: "E_NAME_INVALID"}
	ErrFormatUnsupported  = &MFError{Code: "E_FORMAT_UNSUPPORTED"}
	ErrAuditChainBroken   = &MFError{Code: "E_AUDIT_CHAIN_BROKEN"}
	ErrConfigInvalid      = &MFError{Code: "E_CONFIG_INVALID"}
)
