package libvirt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
)

// fakeAPI implements domainAPI with configurable behaviour.
type fakeAPI struct {
	mu sync.Mutex

	domains  map[libvirt.UUID]libvirt.Domain
	active   map[libvirt.UUID]bool
	states   map[libvirt.UUID]int32
	defineFn func(xml string) (libvirt.Domain, error)
	createFn func(dom libvirt.Domain) error
	listErr  error
	stateErr error
	block    chan struct{}

	undefineFlagsCalls int
	undefineCalls      int
	undefineFlagsErr   error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		domains: make(map[libvirt.UUID]libvirt.Domain),
		active:  make(map[libvirt.UUID]bool),
		states:  make(map[libvirt.UUID]int32),
	}
}

func (f *fakeAPI) add(name string, id uuid.UUID, state int32) libvirt.Domain {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := libvirt.Domain{Name: name, UUID: libvirt.UUID(id)}
	f.domains[d.UUID] = d
	f.states[d.UUID] = state
	f.active[d.UUID] = state == 1
	return d
}

func (f *fakeAPI) DomainDefineXML(xml string) (libvirt.Domain, error) {
	if f.defineFn != nil {
		return f.defineFn(xml)
	}
	return f.add("defined", uuid.New(), 5), nil
}

func (f *fakeAPI) DomainCreate(dom libvirt.Domain) error {
	if f.createFn != nil {
		return f.createFn(dom)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[dom.UUID] = true
	f.states[dom.UUID] = 1
	return nil
}

func (f *fakeAPI) DomainLookupByUUID(id libvirt.UUID) (libvirt.Domain, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.domains[id]
	if !ok {
		return libvirt.Domain{}, errors.New("Domain not found: no domain with matching uuid")
	}
	return d, nil
}

func (f *fakeAPI) DomainIsActive(dom libvirt.Domain) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[dom.UUID] {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeAPI) DomainGetState(dom libvirt.Domain, _ uint32) (int32, int32, error) {
	if f.stateErr != nil {
		return 0, 0, f.stateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[dom.UUID], 0, nil
}

func (f *fakeAPI) DomainDestroy(dom libvirt.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[dom.UUID] = false
	f.states[dom.UUID] = 5
	return nil
}

func (f *fakeAPI) DomainUndefineFlags(dom libvirt.Domain, _ libvirt.DomainUndefineFlagsValues) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.undefineFlagsCalls++
	if f.undefineFlagsErr != nil {
		return f.undefineFlagsErr
	}
	delete(f.domains, dom.UUID)
	return nil
}

func (f *fakeAPI) DomainUndefine(dom libvirt.Domain) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.undefineCalls++
	delete(f.domains, dom.UUID)
	return nil
}

func (f *fakeAPI) ConnectListAllDomains(_ int32, _ libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]libvirt.Domain, 0, len(f.domains))
	for _, d := range f.domains {
		out = append(out, d)
	}
	return out, uint32(len(out)), nil
}

func (f *fakeAPI) ConnectGetLibVersion() (uint64, error) {
	return 10000000, nil
}

// TestConnect tests basic connection functionality.
// This is an integration test that requires libvirt to be running.
func TestConnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	c, err := Connect(Options{})
	if err != nil {
		t.Skipf("libvirt not available: %v", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

// TestConnect_InvalidSocket tests connection failure with invalid socket.
func TestConnect_InvalidSocket(t *testing.T) {
	_, err := Connect(Options{SocketPath: "/nonexistent/socket", ConnectTimeout: 100 * time.Millisecond})
	if err == nil {
		t.Fatal("expected error connecting to nonexistent socket, got nil")
	}
	if !errors.Is(err, ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
}

// TestConnectWithContext_Cancellation tests context cancellation.
func TestConnectWithContext_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConnectWithContext(ctx, Options{SocketPath: "/nonexistent/socket"})
	if err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestClient_DefineStartLookup(t *testing.T) {
	api := newFakeAPI()
	id := uuid.New()
	api.defineFn = func(string) (libvirt.Domain, error) {
		return api.add("web-1", id, 5), nil
	}
	c := newClient(api, time.Second)

	dom, err := c.Define("<domain/>")
	if err != nil {
		t.Fatalf("Define() error = %v", err)
	}
	if dom.UUID != id.String() {
		t.Errorf("Define() uuid = %s, want %s", dom.UUID, id)
	}
	if c.NameOf(dom) != "web-1" {
		t.Errorf("NameOf() = %s, want web-1", c.NameOf(dom))
	}

	if err := c.Start(dom); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	found, err := c.LookupByUUID(id.String())
	if err != nil {
		t.Fatalf("LookupByUUID() error = %v", err)
	}
	active, err := c.IsActive(found)
	if err != nil || !active {
		t.Errorf("IsActive() = %v, %v; want true, nil", active, err)
	}
	if got := c.StateOf(found); got != StateRunning {
		t.Errorf("StateOf() = %s, want RUNNING", got)
	}
}

func TestClient_StartFailure(t *testing.T) {
	api := newFakeAPI()
	api.createFn = func(libvirt.Domain) error { return errors.New("insufficient memory") }
	c := newClient(api, time.Second)

	dom := fromRaw(api.add("web-1", uuid.New(), 5))
	err := c.Start(dom)
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("Start() error = %v, want ErrStartFailed", err)
	}
}

func TestClient_LookupByUUID_Missing(t *testing.T) {
	c := newClient(newFakeAPI(), time.Second)

	if _, err := c.LookupByUUID(uuid.New().String()); err == nil {
		t.Fatal("expected error for missing domain")
	}

	_, err := c.LookupByUUID("not-a-uuid")
	if !errors.Is(err, ErrDomainNotFound) {
		t.Errorf("LookupByUUID(invalid) error = %v, want ErrDomainNotFound", err)
	}
}

func TestClient_StateOf_ErrorIsUnknown(t *testing.T) {
	api := newFakeAPI()
	api.stateErr = errors.New("rpc failure")
	c := newClient(api, time.Second)

	dom := fromRaw(api.add("web-1", uuid.New(), 1))
	if got := c.StateOf(dom); got != StateUnknown {
		t.Errorf("StateOf() = %s, want UNKNOWN", got)
	}
}

func TestClient_StopAndUndefine(t *testing.T) {
	api := newFakeAPI()
	c := newClient(api, time.Second)
	dom := fromRaw(api.add("web-1", uuid.New(), 1))

	if err := c.Stop(dom); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if active, _ := c.IsActive(dom); active {
		t.Error("domain still active after Stop()")
	}
	if err := c.Undefine(dom); err != nil {
		t.Fatalf("Undefine() error = %v", err)
	}
	if api.undefineFlagsCalls != 1 || api.undefineCalls != 0 {
		t.Errorf("undefine calls = %d flags, %d plain; want 1, 0", api.undefineFlagsCalls, api.undefineCalls)
	}
}

func TestClient_UndefineFallsBack(t *testing.T) {
	api := newFakeAPI()
	api.undefineFlagsErr = errors.New("nvram flag unsupported")
	c := newClient(api, time.Second)
	dom := fromRaw(api.add("web-1", uuid.New(), 5))

	if err := c.Undefine(dom); err != nil {
		t.Fatalf("Undefine() error = %v", err)
	}
	if api.undefineCalls != 1 {
		t.Errorf("expected fallback DomainUndefine call, got %d", api.undefineCalls)
	}
}

func TestClient_ListAllDomainUUIDs(t *testing.T) {
	api := newFakeAPI()
	a, b := uuid.New(), uuid.New()
	api.add("a", a, 1)
	api.add("b", b, 5)
	c := newClient(api, time.Second)

	got, err := c.ListAllDomainUUIDs()
	if err != nil {
		t.Fatalf("ListAllDomainUUIDs() error = %v", err)
	}
	seen := map[string]bool{}
	for _, u := range got {
		seen[u] = true
	}
	if len(got) != 2 || !seen[a.String()] || !seen[b.String()] {
		t.Errorf("ListAllDomainUUIDs() = %v, want [%s %s]", got, a, b)
	}

	api.listErr = errors.New("connection reset")
	if _, err := c.ListAllDomainUUIDs(); err == nil {
		t.Error("expected error when listing fails")
	}
}

func TestClient_CallTimeout(t *testing.T) {
	api := newFakeAPI()
	api.block = make(chan struct{})
	defer close(api.block)
	c := newClient(api, 20*time.Millisecond)

	_, err := c.LookupByUUID(uuid.New().String())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("LookupByUUID() error = %v, want ErrTimeout", err)
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := newClient(nil, time.Second)

	if err := c.Ping(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Ping() error = %v, want ErrNotConnected", err)
	}
	if got := c.StateOf(Domain{}); got != StateUnknown {
		t.Errorf("StateOf() = %s, want UNKNOWN", got)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
