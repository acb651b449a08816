// Package pathutil normalizes tracked file paths and validates the names
// callers attach to them.
package pathutil

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/jvs-project/managedfiles/pkg/errclass"
)

// MaxAcquireNameLen bounds the debug label stored with each acquisition.
const MaxAcquireNameLen = 256

var extRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]*$`)

// Normalize returns the absolute, cleaned, NFC-normalized form of path.
// Two spellings of the same file map to one path index key.
func Normalize(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errclass.ErrPathInvalid.WithMessage("path must not be empty")
	}
	if strings.ContainsRune(path, 0) {
		return "", errclass.ErrPathInvalid.WithMessagef("path contains NUL: %q", path)
	}
	if !utf8.ValidString(path) {
		return "", errclass.ErrPathInvalid.WithMessagef("path is not valid UTF-8: %q", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errclass.ErrPathInvalid.WithMessagef("resolve %s: %v", path, err)
	}
	return norm.NFC.String(abs), nil
}

// ValidateAcquireName checks the free-form label attached to an acquisition.
func ValidateAcquireName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("acquire name must not be empty")
	}
	if len(name) > MaxAcquireNameLen {
		return errclass.ErrNameInvalid.WithMessagef("acquire name longer than %d bytes", MaxAcquireNameLen)
	}
	if !utf8.ValidString(name) {
		return errclass.ErrNameInvalid.WithMessagef("acquire name is not valid UTF-8: %q", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("acquire name must not contain control characters: %q", name)
		}
	}
	return nil
}

// ValidateExtension checks a temporary file extension. The leading dot is
// optional and an empty extension is allowed.
func ValidateExtension(ext string) error {
	ext = strings.TrimPrefix(ext, ".")
	if strings.Contains(ext, "..") || !extRegex.MatchString(ext) {
		return errclass.ErrNameInvalid.WithMessagef("extension must match [a-zA-Z0-9._-]*: %s", ext)
	}
	return nil
}
