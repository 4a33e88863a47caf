package identity

import "errors"

var (
	// ErrAuthentication is returned for every failed login. It never says
	// which check failed.
	ErrAuthentication = errors.New("authentication failed")

	// ErrTokenInvalid is returned for unknown or expired tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")

	ErrInvalidInput    = errors.New("invalid input")
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project already exists")
	ErrProjectNotEmpty = errors.New("project still has vms")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrRoleNotFound    = errors.New("role not found")
)
