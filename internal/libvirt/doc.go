// Package libvirt is the hypervisor client used by the compute orchestrator.
//
// It wraps github.com/digitalocean/go-libvirt with:
//   - Connection management over the local UNIX socket (connect, ping, close)
//   - Domain operations keyed by UUID (define, start, stop, undefine, lookup)
//   - Live state mapping from libvirt state codes to DomainState
//   - Domain XML rendering via libvirt.org/go/libvirtxml
//
// A single connection is shared by all callers. Every RPC through it is
// serialized by a mutex and bounded by the configured call timeout:
//
//	client, err := libvirt.Connect(libvirt.Options{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	xml, err := libvirt.GenerateDomainXML(libvirt.DomainSpec{
//	    Name:      "web-1",
//	    UUID:      id,
//	    VCPUs:     2,
//	    MemoryMiB: 2048,
//	    DiskPath:  "/var/lib/libvirt/images/web-1.qcow2",
//	})
//	dom, err := client.Define(xml)
//
// Consumer-Side Interfaces:
//
// This package does not define interfaces for its callers. internal/vm
// declares the subset of *Client it needs, which keeps the orchestrator
// testable without a running libvirtd.
package libvirt
