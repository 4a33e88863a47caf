package libvirt

import "errors"

var (
	// ErrConnection indicates the hypervisor connection could not be opened or has died.
	ErrConnection = errors.New("hypervisor connection failed")

	// ErrNotConnected is returned by operations on a client without a live connection.
	ErrNotConnected = errors.New("client not connected")

	// ErrDomainNotFound is returned when no domain matches the requested UUID.
	ErrDomainNotFound = errors.New("domain not found")

	// ErrStartFailed wraps failures to boot a defined domain.
	ErrStartFailed = errors.New("failed to start domain")

	// ErrTimeout is returned when a hypervisor call exceeds the call timeout.
	ErrTimeout = errors.New("hypervisor call timed out")
)
