package libvirt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
	"github.com/google/uuid"
)

const (
	// DefaultSocketPath is the qemu:///system UNIX socket.
	DefaultSocketPath = "/var/run/libvirt/libvirt-sock"

	// DefaultConnectTimeout bounds dialing the socket.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultCallTimeout bounds each RPC on an open connection.
	DefaultCallTimeout = 30 * time.Second
)

// domainAPI is the subset of *libvirt.Libvirt used by Client.
type domainAPI interface {
	DomainDefineXML(xml string) (libvirt.Domain, error)
	DomainCreate(dom libvirt.Domain) error
	DomainLookupByUUID(id libvirt.UUID) (libvirt.Domain, error)
	DomainIsActive(dom libvirt.Domain) (int32, error)
	DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error)
	DomainDestroy(dom libvirt.Domain) error
	DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
	DomainUndefine(dom libvirt.Domain) error
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	ConnectGetLibVersion() (uint64, error)
}

// Domain identifies a defined domain on the hypervisor.
type Domain struct {
	Name string
	UUID string

	raw libvirt.Domain
}

// Client is a single shared hypervisor connection.
type Client struct {
	mu          sync.Mutex
	conn        domainAPI
	lv          *libvirt.Libvirt
	callTimeout time.Duration
}

// Options configures Connect.
type Options struct {
	SocketPath     string
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
}

// Connect establishes a connection to the local libvirt daemon.
// The returned Client must be closed via Close when done.
//
// Zero values in opts fall back to DefaultSocketPath, DefaultConnectTimeout
// and DefaultCallTimeout.
func Connect(opts Options) (*Client, error) {
	if opts.SocketPath == "" {
		opts.SocketPath = DefaultSocketPath
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.CallTimeout == 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	dialer := dialers.NewLocal(
		dialers.WithSocket(opts.SocketPath),
		dialers.WithLocalTimeout(opts.ConnectTimeout),
	)

	l := libvirt.NewWithDialer(dialer)
	if err := l.Connect(); err != nil {
		return nil, fmt.Errorf("%w: failed to connect to libvirt at %s: %v", ErrConnection, opts.SocketPath, err)
	}

	return &Client{conn: l, lv: l, callTimeout: opts.CallTimeout}, nil
}

// ConnectWithContext establishes a connection with context support for cancellation.
func ConnectWithContext(ctx context.Context, opts Options) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(opts)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: connection cancelled: %v", ErrConnection, ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// newClient wraps an existing API implementation. Used by tests.
func newClient(conn domainAPI, callTimeout time.Duration) *Client {
	return &Client{conn: conn, callTimeout: callTimeout}
}

// Close closes the libvirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lv == nil {
		c.conn = nil
		return nil
	}

	err := c.lv.Disconnect()
	c.lv = nil
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Ping verifies the connection is still alive.
func (c *Client) Ping() error {
	err := c.call("ping", func(api domainAPI) error {
		_, err := api.ConnectGetLibVersion()
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			return err
		}
		return fmt.Errorf("%w: libvirt connection is dead: %v", ErrConnection, err)
	}
	return nil
}

// Define registers a domain from XML without starting it.
func (c *Client) Define(xml string) (Domain, error) {
	var raw libvirt.Domain
	err := c.call("define", func(api domainAPI) error {
		var err error
		raw, err = api.DomainDefineXML(xml)
		return err
	})
	if err != nil {
		return Domain{}, fmt.Errorf("failed to define domain: %w", err)
	}
	return fromRaw(raw), nil
}

// Start boots a defined domain.
func (c *Client) Start(dom Domain) error {
	err := c.call("start", func(api domainAPI) error {
		return api.DomainCreate(dom.raw)
	})
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrStartFailed, dom.Name, err)
	}
	return nil
}

// LookupByUUID finds a domain by its UUID string.
// It returns an error wrapping ErrDomainNotFound when no such domain exists.
func (c *Client) LookupByUUID(id string) (Domain, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Domain{}, fmt.Errorf("%w: invalid uuid %q: %v", ErrDomainNotFound, id, err)
	}

	var raw libvirt.Domain
	err = c.call("lookup", func(api domainAPI) error {
		var err error
		raw, err = api.DomainLookupByUUID(libvirt.UUID(parsed))
		return err
	})
	if err != nil {
		if libvirt.IsNotFound(err) {
			return Domain{}, fmt.Errorf("%w: %s", ErrDomainNotFound, id)
		}
		return Domain{}, fmt.Errorf("failed to lookup domain %s: %w", id, err)
	}
	return fromRaw(raw), nil
}

// IsActive reports whether the domain is running.
func (c *Client) IsActive(dom Domain) (bool, error) {
	var active int32
	err := c.call("is-active", func(api domainAPI) error {
		var err error
		active, err = api.DomainIsActive(dom.raw)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to query domain %s: %w", dom.Name, err)
	}
	return active == 1, nil
}

// Stop forcibly powers off the domain.
func (c *Client) Stop(dom Domain) error {
	err := c.call("destroy", func(api domainAPI) error {
		return api.DomainDestroy(dom.raw)
	})
	if err != nil {
		return fmt.Errorf("failed to stop domain %s: %w", dom.Name, err)
	}
	return nil
}

// Undefine removes the domain definition, including any NVRAM file.
// Falls back to a plain undefine for domains without firmware state.
func (c *Client) Undefine(dom Domain) error {
	err := c.call("undefine", func(api domainAPI) error {
		if err := api.DomainUndefineFlags(dom.raw, libvirt.DomainUndefineNvram); err == nil {
			return nil
		}
		return api.DomainUndefine(dom.raw)
	})
	if err != nil {
		return fmt.Errorf("failed to undefine domain %s: %w", dom.Name, err)
	}
	return nil
}

// ListAllDomainUUIDs returns the UUIDs of every defined domain, active or not.
func (c *Client) ListAllDomainUUIDs() ([]string, error) {
	var domains []libvirt.Domain
	err := c.call("list", func(api domainAPI) error {
		var err error
		domains, _, err = api.ConnectListAllDomains(1, 0)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	uuids := make([]string, 0, len(domains))
	for _, d := range domains {
		uuids = append(uuids, uuid.UUID(d.UUID).String())
	}
	return uuids, nil
}

// StateOf returns the live state of a domain. It never fails: any error
// querying the hypervisor yields StateUnknown.
func (c *Client) StateOf(dom Domain) DomainState {
	var code int32
	err := c.call("state", func(api domainAPI) error {
		var err error
		code, _, err = api.DomainGetState(dom.raw, 0)
		return err
	})
	if err != nil {
		return StateUnknown
	}
	return StateFromCode(code)
}

// NameOf returns the hypervisor-side name of a domain.
func (c *Client) NameOf(dom Domain) string {
	return dom.Name
}

// call runs fn against the connection while holding the client mutex.
// The timer covers both waiting for the mutex and the RPC itself; a call that
// times out keeps running in the background and releases the mutex when done.
func (c *Client) call(op string, fn func(api domainAPI) error) error {
	done := make(chan error, 1)
	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.conn == nil {
			done <- ErrNotConnected
			return
		}
		done <- fn(c.conn)
	}()

	if c.callTimeout <= 0 {
		return <-done
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%s: %w after %s", op, ErrTimeout, c.callTimeout)
	}
}

func fromRaw(raw libvirt.Domain) Domain {
	return Domain{
		Name: raw.Name,
		UUID: uuid.UUID(raw.UUID).String(),
		raw:  raw,
	}
}
