package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jbweber/hearth/internal/libvirt"
	"github.com/jbweber/hearth/internal/metrics"
	"github.com/jbweber/hearth/internal/naming"
	"github.com/jbweber/hearth/internal/store"
)

// DestroyResult reports a completed destroy.
type DestroyResult struct {
	Name string
	UUID string

	// Warnings lists cleanup steps that failed. The VM record is gone
	// regardless; leaked domains or disks show up in reconciliation.
	Warnings []string
}

// DestroyVM destroys a VM by name.
//
// This orchestrates the entire VM destruction process:
//  1. Look up the VM record; a missing record ends the operation
//  2. Stop the domain if active, then undefine it
//  3. Delete the VM's disk
//  4. Delete the VM record
//
// Steps 2-3 are best-effort: failures are logged and collected in the
// result. Step 4 always runs and its error is the only one returned.
func (o *Orchestrator) DestroyVM(ctx context.Context, projectID uint, name string) (res *DestroyResult, err error) {
	defer func() {
		switch {
		case err == nil:
			o.metrics.VMDestroyed(metrics.ResultSuccess)
		case errors.Is(err, ErrVMNotFound), errors.Is(err, ErrInvalidRequest):
			o.metrics.VMDestroyed(metrics.ResultRejected)
		default:
			o.metrics.VMDestroyed(metrics.ResultFailure)
		}
	}()

	if !naming.IsPathSafe(name) {
		return nil, fmt.Errorf("%w: invalid characters in vm name %q", ErrInvalidRequest, name)
	}

	record, err := o.vms.FindByNameInProject(ctx, name, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVMNotFound, name)
		}
		return nil, fmt.Errorf("failed to look up vm %s: %w", name, err)
	}

	ctx = context.WithoutCancel(ctx)
	log := o.logger.With("vm", record.Name, "uuid", record.UUID, "project_id", projectID)
	res = &DestroyResult{Name: record.Name, UUID: record.UUID}

	warn := func(step string, err error) {
		log.Warn("cleanup step failed", "step", step, "error", err)
		o.metrics.CleanupWarning(step)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", step, err))
	}

	defer func() {
		if delErr := o.vms.Delete(ctx, record); delErr != nil {
			log.Error("failed to delete vm record", "error", delErr)
			res = nil
			err = fmt.Errorf("failed to delete vm record %s: %w", record.Name, delErr)
			return
		}
		log.Info("vm destroyed", "warnings", len(res.Warnings))
	}()

	dom, lookupErr := o.hv.LookupByUUID(record.UUID)
	switch {
	case lookupErr == nil:
		if err := o.removeDomain(log, dom); err != nil {
			warn("undefine", err)
		}
	case errors.Is(lookupErr, libvirt.ErrDomainNotFound):
		log.Info("domain already gone")
	default:
		warn("lookup", lookupErr)
	}

	if err := o.disks.DeleteDiskByName(record.Name); err != nil {
		warn("delete-disk", err)
	}

	return res, nil
}

// removeDomain force-stops dom if it is running and undefines it.
// A failed stop is logged; undefine is attempted regardless.
func (o *Orchestrator) removeDomain(log *slog.Logger, dom libvirt.Domain) error {
	active, err := o.hv.IsActive(dom)
	if err != nil {
		log.Warn("failed to query domain state", "error", err)
	}
	if active {
		if err := o.hv.Stop(dom); err != nil {
			log.Warn("failed to stop domain", "error", err)
		}
	}
	return o.hv.Undefine(dom)
}
