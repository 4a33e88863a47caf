package libvirt

import (
	"fmt"

	"libvirt.org/go/libvirtxml"
)

// DomainSpec describes the domain rendered by GenerateDomainXML.
type DomainSpec struct {
	Name      string
	UUID      string
	VCPUs     uint
	MemoryMiB uint

	// DiskPath is the file-backed boot disk.
	DiskPath string

	// DiskFormat defaults to qcow2.
	DiskFormat string

	// Network is an optional libvirt network to attach a virtio NIC to.
	Network string
}

// GenerateDomainXML renders a KVM domain definition for spec.
// Memory is expressed in KiB.
func GenerateDomainXML(spec DomainSpec) (string, error) {
	if spec.Name == "" {
		return "", fmt.Errorf("domain name is required")
	}
	if spec.UUID == "" {
		return "", fmt.Errorf("domain uuid is required")
	}
	if spec.DiskPath == "" {
		return "", fmt.Errorf("disk path is required")
	}

	format := spec.DiskFormat
	if format == "" {
		format = "qcow2"
	}

	memKiB := spec.MemoryMiB * 1024
	port := uint(0)

	domain := &libvirtxml.Domain{
		Type: "kvm",
		Name: spec.Name,
		UUID: spec.UUID,
		Memory: &libvirtxml.DomainMemory{
			Value: memKiB,
			Unit:  "KiB",
		},
		CurrentMemory: &libvirtxml.DomainCurrentMemory{
			Value: memKiB,
			Unit:  "KiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Placement: "static",
			Value:     spec.VCPUs,
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch: "x86_64",
				Type: "hvm",
			},
			BootDevices: []libvirtxml.DomainBootDevice{
				{Dev: "hd"},
			},
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
		},
		CPU: &libvirtxml.DomainCPU{
			Mode: "host-model",
		},
		Clock: &libvirtxml.DomainClock{
			Offset: "utc",
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "destroy",
		Devices: &libvirtxml.DomainDeviceList{
			Disks: []libvirtxml.DomainDisk{
				{
					Device: "disk",
					Driver: &libvirtxml.DomainDiskDriver{
						Name: "qemu",
						Type: format,
					},
					Source: &libvirtxml.DomainDiskSource{
						File: &libvirtxml.DomainDiskSourceFile{
							File: spec.DiskPath,
						},
					},
					Target: &libvirtxml.DomainDiskTarget{
						Dev: "vda",
						Bus: "virtio",
					},
				},
			},
			Serials: []libvirtxml.DomainSerial{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
					Target: &libvirtxml.DomainSerialTarget{
						Port: &port,
					},
				},
			},
			Consoles: []libvirtxml.DomainConsole{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
					Target: &libvirtxml.DomainConsoleTarget{
						Type: "serial",
						Port: &port,
					},
				},
			},
			MemBalloon: &libvirtxml.DomainMemBalloon{
				Model: "virtio",
			},
		},
	}

	if spec.Network != "" {
		domain.Devices.Interfaces = []libvirtxml.DomainInterface{
			{
				Source: &libvirtxml.DomainInterfaceSource{
					Network: &libvirtxml.DomainInterfaceSourceNetwork{
						Network: spec.Network,
					},
				},
				Model: &libvirtxml.DomainInterfaceModel{
					Type: "virtio",
				},
			},
		}
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain XML: %w", err)
	}

	return xml, nil
}
