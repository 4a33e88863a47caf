package vm

import (
	"context"
	"fmt"
	"time"

	"github.com/jbweber/hearth/internal/libvirt"
)

// VMView is a VM record overlaid with its live hypervisor state.
type VMView struct {
	Name      string    `json:"name" yaml:"name"`
	UUID      string    `json:"uuid" yaml:"uuid"`
	CPUCount  int       `json:"cpu_count" yaml:"cpu_count"`
	RAMMB     int       `json:"ram_mb" yaml:"ram_mb"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	State     string    `json:"state" yaml:"state"`
}

// ListVMs returns the project's VMs, newest first, with live state.
// A VM whose domain cannot be found is reported as UNKNOWN.
func (o *Orchestrator) ListVMs(ctx context.Context, projectID uint) ([]VMView, error) {
	records, err := o.vms.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vms: %w", err)
	}

	views := make([]VMView, 0, len(records))
	for _, r := range records {
		state := libvirt.StateUnknown
		if dom, err := o.hv.LookupByUUID(r.UUID); err == nil {
			state = o.hv.StateOf(dom)
		} else {
			o.logger.Debug("domain lookup failed", "vm", r.Name, "uuid", r.UUID, "error", err)
		}

		views = append(views, VMView{
			Name:      r.Name,
			UUID:      r.UUID,
			CPUCount:  r.CPUCount,
			RAMMB:     r.RAMMB,
			CreatedAt: r.CreatedAt.UTC(),
			State:     state.String(),
		})
	}

	return views, nil
}
