package vm

import (
	"context"
	"fmt"

	"github.com/jbweber/hearth/internal/reconcile"
)

// ReconcileVMs reports hypervisor domains with no metadata record. These are
// VMs created out-of-band, or created here whose record was never written.
func (o *Orchestrator) ReconcileVMs(ctx context.Context) ([]reconcile.GhostVM, error) {
	hvUUIDs, err := o.hv.ListAllDomainUUIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list hypervisor domains: %w", err)
	}

	storeUUIDs, err := o.vms.ListAllUUIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vm records: %w", err)
	}

	ghosts := reconcile.Report(reconcile.Diff(hvUUIDs, storeUUIDs), func(id string) (string, string, error) {
		dom, err := o.hv.LookupByUUID(id)
		if err != nil {
			return "", "", err
		}
		return o.hv.NameOf(dom), o.hv.StateOf(dom).String(), nil
	}, o.logger)

	o.metrics.GhostVMs(len(ghosts))
	if len(ghosts) > 0 {
		o.logger.Warn("found ghost vms", "count", len(ghosts))
	}

	return ghosts, nil
}
