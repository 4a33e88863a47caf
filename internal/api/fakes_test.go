package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/hearth/internal/disk"
	"github.com/jbweber/hearth/internal/libvirt"
)

// fakeHypervisor is an in-memory vm.Hypervisor.
type fakeHypervisor struct {
	mu       sync.Mutex
	domains  map[string]libvirt.Domain
	active   map[string]bool
	startErr error
}

func newFakeHypervisor() *fakeHypervisor {
	return &fakeHypervisor{
		domains: make(map[string]libvirt.Domain),
		active:  make(map[string]bool),
	}
}

func (f *fakeHypervisor) add(name, uuid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domains[uuid] = libvirt.Domain{Name: name, UUID: uuid}
	f.active[uuid] = true
}

func (f *fakeHypervisor) Define(xml string) (libvirt.Domain, error) {
	var spec libvirtxml.Domain
	if err := spec.Unmarshal(xml); err != nil {
		return libvirt.Domain{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dom := libvirt.Domain{Name: spec.Name, UUID: spec.UUID}
	f.domains[spec.UUID] = dom
	return dom, nil
}

func (f *fakeHypervisor) Start(dom libvirt.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.active[dom.UUID] = true
	return nil
}

func (f *fakeHypervisor) LookupByUUID(uuid string) (libvirt.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dom, ok := f.domains[uuid]
	if !ok {
		return libvirt.Domain{}, fmt.Errorf("%w: %s", libvirt.ErrDomainNotFound, uuid)
	}
	return dom, nil
}

func (f *fakeHypervisor) IsActive(dom libvirt.Domain) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[dom.UUID], nil
}

func (f *fakeHypervisor) Stop(dom libvirt.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[dom.UUID] = false
	return nil
}

func (f *fakeHypervisor) Undefine(dom libvirt.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.domains, dom.UUID)
	delete(f.active, dom.UUID)
	return nil
}

func (f *fakeHypervisor) ListAllDomainUUIDs() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.domains))
	for id := range f.domains {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeHypervisor) StateOf(dom libvirt.Domain) libvirt.DomainState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[dom.UUID] {
		return libvirt.StateRunning
	}
	return libvirt.StateShutoff
}

func (f *fakeHypervisor) NameOf(dom libvirt.Domain) string {
	return dom.Name
}

func (f *fakeHypervisor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.domains)
}

// fakeDisks is an in-memory vm.DiskManager with a fixed image catalog.
type fakeDisks struct {
	mu    sync.Mutex
	disks map[string]bool
}

func newFakeDisks() *fakeDisks {
	return &fakeDisks{disks: make(map[string]bool)}
}

func (f *fakeDisks) ValidateAndLocate(_ context.Context, imageName string) (string, error) {
	if imageName != "Ubuntu-Base-22.04" {
		return "", fmt.Errorf("%w: %s", disk.ErrImageNotFound, imageName)
	}
	return "/images/ubuntu-22.04.qcow2", nil
}

func (f *fakeDisks) CreateDisk(_ context.Context, vmName, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := "/vms/" + vmName + ".qcow2"
	f.disks[path] = true
	return path, nil
}

func (f *fakeDisks) DeleteDisk(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.disks, path)
	return nil
}

func (f *fakeDisks) DeleteDiskByName(vmName string) error {
	return f.DeleteDisk("/vms/" + vmName + ".qcow2")
}

func (f *fakeDisks) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.disks)
}

var errBoom = errors.New("boom")
