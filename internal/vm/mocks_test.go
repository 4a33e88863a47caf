package vm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/hearth/internal/disk"
	"github.com/jbweber/hearth/internal/libvirt"
	"github.com/jbweber/hearth/internal/store"
)

// mockHypervisor is a mock implementation of the Hypervisor interface for testing.
// By default it behaves like an empty libvirtd: defined domains are tracked by
// UUID and start as shut off.
type mockHypervisor struct {
	mu sync.Mutex

	domains map[string]libvirt.Domain
	active  map[string]bool

	// Configurable behavior
	defineFunc   func(xml string) (libvirt.Domain, error)
	startFunc    func(dom libvirt.Domain) error
	lookupFunc   func(uuid string) (libvirt.Domain, error)
	stopFunc     func(dom libvirt.Domain) error
	undefineFunc func(dom libvirt.Domain) error
	listErr      error

	// Call tracking
	defineCalls   []string
	startCalls    []libvirt.Domain
	lookupCalls   []string
	stopCalls     []libvirt.Domain
	undefineCalls []libvirt.Domain
}

func newMockHypervisor() *mockHypervisor {
	return &mockHypervisor{
		domains: make(map[string]libvirt.Domain),
		active:  make(map[string]bool),
	}
}

// addDomain registers a domain as if created out-of-band.
func (m *mockHypervisor) addDomain(name, uuid string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domains[uuid] = libvirt.Domain{Name: name, UUID: uuid}
	m.active[uuid] = active
}

func (m *mockHypervisor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.defineCalls) + len(m.startCalls) + len(m.lookupCalls) + len(m.stopCalls) + len(m.undefineCalls)
}

func (m *mockHypervisor) Define(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	m.defineCalls = append(m.defineCalls, xml)
	m.mu.Unlock()

	if m.defineFunc != nil {
		return m.defineFunc(xml)
	}

	var spec libvirtxml.Domain
	if err := spec.Unmarshal(xml); err != nil {
		return libvirt.Domain{}, fmt.Errorf("invalid domain xml: %w", err)
	}
	dom := libvirt.Domain{Name: spec.Name, UUID: spec.UUID}
	m.addDomain(spec.Name, spec.UUID, false)
	return dom, nil
}

func (m *mockHypervisor) Start(dom libvirt.Domain) error {
	m.mu.Lock()
	m.startCalls = append(m.startCalls, dom)
	m.mu.Unlock()

	if m.startFunc != nil {
		return m.startFunc(dom)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[dom.UUID] = true
	return nil
}

func (m *mockHypervisor) LookupByUUID(uuid string) (libvirt.Domain, error) {
	m.mu.Lock()
	m.lookupCalls = append(m.lookupCalls, uuid)
	m.mu.Unlock()

	if m.lookupFunc != nil {
		return m.lookupFunc(uuid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	dom, ok := m.domains[uuid]
	if !ok {
		return libvirt.Domain{}, fmt.Errorf("%w: %s", libvirt.ErrDomainNotFound, uuid)
	}
	return dom, nil
}

func (m *mockHypervisor) IsActive(dom libvirt.Domain) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[dom.UUID], nil
}

func (m *mockHypervisor) Stop(dom libvirt.Domain) error {
	m.mu.Lock()
	m.stopCalls = append(m.stopCalls, dom)
	m.mu.Unlock()

	if m.stopFunc != nil {
		return m.stopFunc(dom)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[dom.UUID] = false
	return nil
}

func (m *mockHypervisor) Undefine(dom libvirt.Domain) error {
	m.mu.Lock()
	m.undefineCalls = append(m.undefineCalls, dom)
	m.mu.Unlock()

	if m.undefineFunc != nil {
		return m.undefineFunc(dom)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.domains, dom.UUID)
	delete(m.active, dom.UUID)
	return nil
}

func (m *mockHypervisor) ListAllDomainUUIDs() ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.domains))
	for id := range m.domains {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockHypervisor) StateOf(dom libvirt.Domain) libvirt.DomainState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.domains[dom.UUID]; !ok {
		return libvirt.StateUnknown
	}
	if m.active[dom.UUID] {
		return libvirt.StateRunning
	}
	return libvirt.StateShutoff
}

func (m *mockHypervisor) NameOf(dom libvirt.Domain) string {
	return dom.Name
}

// mockDiskManager is a mock implementation of the DiskManager interface for testing.
type mockDiskManager struct {
	mu sync.Mutex

	images map[string]string
	disks  map[string]bool

	// Configurable behavior
	createDiskFunc func(vmName, sourcePath string) (string, error)
	deleteErr      error

	// Call tracking
	validateCalls   []string
	createDiskCalls []string
	deleteCalls     []string
}

func newMockDiskManager() *mockDiskManager {
	return &mockDiskManager{
		images: map[string]string{
			"Ubuntu-Base-22.04": "/var/lib/libvirt/images/ubuntu-test.qcow2",
		},
		disks: make(map[string]bool),
	}
}

func (m *mockDiskManager) diskPath(vmName string) string {
	return "/var/lib/libvirt/images/" + vmName + ".qcow2"
}

func (m *mockDiskManager) sideEffects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.createDiskCalls) + len(m.deleteCalls)
}

func (m *mockDiskManager) ValidateAndLocate(_ context.Context, imageName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validateCalls = append(m.validateCalls, imageName)
	path, ok := m.images[imageName]
	if !ok {
		return "", fmt.Errorf("%w: %s", disk.ErrImageNotFound, imageName)
	}
	return path, nil
}

func (m *mockDiskManager) CreateDisk(_ context.Context, vmName, sourcePath string) (string, error) {
	m.mu.Lock()
	m.createDiskCalls = append(m.createDiskCalls, vmName)
	m.mu.Unlock()

	if m.createDiskFunc != nil {
		return m.createDiskFunc(vmName, sourcePath)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	path := m.diskPath(vmName)
	if m.disks[path] {
		return "", fmt.Errorf("%w: %s", disk.ErrDiskExists, path)
	}
	m.disks[path] = true
	return path, nil
}

func (m *mockDiskManager) DeleteDisk(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, path)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.disks, path)
	return nil
}

func (m *mockDiskManager) DeleteDiskByName(vmName string) error {
	return m.DeleteDisk(m.diskPath(vmName))
}

// mockVMStore is an in-memory VMStore enforcing the same uniqueness rules
// as the database schema.
type mockVMStore struct {
	mu     sync.Mutex
	nextID uint
	rows   []store.VM

	// Configurable behavior
	createErr error
	deleteErr error

	// Call tracking
	createCalls int
	deleteCalls int
}

func newMockVMStore() *mockVMStore {
	return &mockVMStore{nextID: 1}
}

func (m *mockVMStore) FindByNameInProject(_ context.Context, name string, projectID uint) (*store.VM, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].Name == name && m.rows[i].ProjectID == projectID {
			vm := m.rows[i]
			return &vm, nil
		}
	}
	return nil, fmt.Errorf("vm %s: %w", name, store.ErrNotFound)
}

func (m *mockVMStore) ListByProject(_ context.Context, projectID uint) ([]store.VM, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.VM
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].ProjectID == projectID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *mockVMStore) ListAllUUIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.UUID)
	}
	return out, nil
}

func (m *mockVMStore) Create(_ context.Context, vm *store.VM) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	for _, r := range m.rows {
		if (r.Name == vm.Name && r.ProjectID == vm.ProjectID) || r.UUID == vm.UUID {
			return fmt.Errorf("failed to create vm %s: %w", vm.Name, store.ErrDuplicate)
		}
	}
	vm.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, *vm)
	return nil
}

func (m *mockVMStore) Delete(_ context.Context, vm *store.VM) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i := range m.rows {
		if m.rows[i].ID == vm.ID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("vm %s: %w", vm.Name, store.ErrNotFound)
}

// seed inserts a row directly, bypassing the orchestrator.
func (m *mockVMStore) seed(vm store.VM) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vm.ID = m.nextID
	m.nextID++
	m.rows = append(m.rows, vm)
}
