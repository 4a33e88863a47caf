// Package naming holds the naming rules for VMs and the resources derived
// from them. Disk files are named after the VM, so a VM name must be safe to
// use as a single path element.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

// MaxVMNameLength matches the practical limit for libvirt domain names used
// as hostnames.
const MaxVMNameLength = 63

// ErrInvalidName is returned for names that fail validation.
var ErrInvalidName = errors.New("invalid name")

var vmNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateVMName checks that name is non-empty, not too long, starts with a
// letter or digit and contains only letters, digits, '.', '_' and '-'.
//
// Example: "web-01" is valid; "../etc", "a/b" and ".hidden" are not.
func ValidateVMName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > MaxVMNameLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxVMNameLength)
	}
	if !IsPathSafe(name) || !vmNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must start with a letter or digit and contain only letters, digits, '.', '_' or '-'", ErrInvalidName, name)
	}
	return nil
}

// IsPathSafe reports whether name is a single path element that stays inside
// its parent directory.
func IsPathSafe(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name
}

// DiskFileName returns the disk file name for a VM.
// Format: {vmName}.{ext}
//
// Example: ("web-01", "qcow2") → "web-01.qcow2"
func DiskFileName(vmName, ext string) string {
	return fmt.Sprintf("%s.%s", vmName, ext)
}
