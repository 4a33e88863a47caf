package vm

import (
	"context"

	"github.com/jbweber/hearth/internal/libvirt"
	"github.com/jbweber/hearth/internal/store"
)

// Hypervisor defines the domain operations needed for VM management.
//
// In production, this is satisfied by *libvirt.Client.
// In tests, this is satisfied by mock implementations.
type Hypervisor interface {
	// Define registers a domain from XML without starting it
	Define(xml string) (libvirt.Domain, error)

	// Start boots a defined domain
	Start(dom libvirt.Domain) error

	// LookupByUUID finds a domain by UUID
	LookupByUUID(uuid string) (libvirt.Domain, error)

	// IsActive reports whether the domain is running
	IsActive(dom libvirt.Domain) (bool, error)

	// Stop force-stops a domain
	Stop(dom libvirt.Domain) error

	// Undefine removes the domain definition
	Undefine(dom libvirt.Domain) error

	// ListAllDomainUUIDs lists every defined domain
	ListAllDomainUUIDs() ([]string, error)

	// StateOf returns the live state, UNKNOWN on any error
	StateOf(dom libvirt.Domain) libvirt.DomainState

	// NameOf returns the hypervisor-side domain name
	NameOf(dom libvirt.Domain) string
}

// DiskManager defines the disk operations needed for VM management.
//
// In production, this is satisfied by *disk.Manager.
type DiskManager interface {
	// ValidateAndLocate resolves an image name to its backing file
	ValidateAndLocate(ctx context.Context, imageName string) (string, error)

	// CreateDisk clones sourcePath into the VM's disk and returns its path
	CreateDisk(ctx context.Context, vmName, sourcePath string) (string, error)

	// DeleteDisk removes a disk; missing files are not an error
	DeleteDisk(path string) error

	// DeleteDiskByName removes the VM's disk at its deterministic path
	DeleteDiskByName(vmName string) error
}

// VMStore defines the metadata operations needed for VM management.
//
// In production, this is satisfied by *store.VMRepository.
type VMStore interface {
	FindByNameInProject(ctx context.Context, name string, projectID uint) (*store.VM, error)
	ListByProject(ctx context.Context, projectID uint) ([]store.VM, error)
	ListAllUUIDs(ctx context.Context) ([]string, error)
	Create(ctx context.Context, vm *store.VM) error
	Delete(ctx context.Context, vm *store.VM) error
}
