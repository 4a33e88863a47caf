package vm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVMNotFound is returned when no VM with the given name exists in the project.
	ErrVMNotFound = errors.New("vm not found")

	// ErrVMAlreadyExists is returned when the project already has a VM with the given name.
	ErrVMAlreadyExists = errors.New("vm already exists")

	// ErrInvalidRequest is returned for malformed create or destroy input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrImageNotFound is returned when the requested image is not in the catalog.
	ErrImageNotFound = errors.New("image not found")

	// ErrVMCreation is matched by every *CreationError.
	ErrVMCreation = errors.New("vm creation failed")
)

// CreationError is returned when CreateVM fails after side effects began.
// Every completed step has been rolled back by the time it is returned.
type CreationError struct {
	Name  string
	Cause error

	// Warnings lists rollback steps that failed and may have leaked resources.
	Warnings []string
}

func (e *CreationError) Error() string {
	msg := fmt.Sprintf("VM creation failed for %s: %v", e.Name, e.Cause)
	if len(e.Warnings) > 0 {
		msg += " (rollback warnings: " + strings.Join(e.Warnings, "; ") + ")"
	}
	return msg
}

func (e *CreationError) Unwrap() []error {
	return []error{ErrVMCreation, e.Cause}
}
