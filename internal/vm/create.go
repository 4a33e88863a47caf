package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jbweber/hearth/internal/disk"
	"github.com/jbweber/hearth/internal/libvirt"
	"github.com/jbweber/hearth/internal/metrics"
	"github.com/jbweber/hearth/internal/naming"
	"github.com/jbweber/hearth/internal/saga"
	"github.com/jbweber/hearth/internal/store"
)

// CreateRequest describes a VM to create in a project.
type CreateRequest struct {
	ProjectID uint
	Name      string
	CPUCount  int
	RAMMB     int
	ImageName string
}

// CreateResult identifies a created VM.
type CreateResult struct {
	Name string
	UUID string
}

func (r CreateRequest) validate() error {
	if err := naming.ValidateVMName(r.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.CPUCount <= 0 {
		return fmt.Errorf("%w: cpu must be positive", ErrInvalidRequest)
	}
	if r.RAMMB <= 0 {
		return fmt.Errorf("%w: ram must be positive", ErrInvalidRequest)
	}
	if r.ImageName == "" {
		return fmt.Errorf("%w: image_name is required", ErrInvalidRequest)
	}
	return nil
}

// CreateVM creates and starts a VM.
//
// This orchestrates the entire VM creation process:
//  1. Validate the request and resolve the image
//  2. Check the name is free in the project
//  3. Clone the base image into the VM's disk
//  4. Render the domain XML
//  5. Define the domain
//  6. Start the domain
//  7. Persist the VM record
//
// Steps 1-2 have no side effects. If any of steps 3-7 fails, completed steps
// are undone in reverse order and a *CreationError is returned. A name
// collision detected by the store at step 7 is reported as ErrVMAlreadyExists
// after the rollback.
func (o *Orchestrator) CreateVM(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	start := o.now()

	result, err := o.createVM(ctx, req)

	outcome := metrics.ResultSuccess
	switch {
	case err == nil:
	case errors.Is(err, ErrVMCreation):
		outcome = metrics.ResultFailure
	default:
		outcome = metrics.ResultRejected
	}
	o.metrics.VMCreated(outcome, o.now().Sub(start).Seconds())

	return result, err
}

func (o *Orchestrator) createVM(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	log := o.logger.With("vm", req.Name, "project_id", req.ProjectID)

	sourcePath, err := o.disks.ValidateAndLocate(ctx, req.ImageName)
	if err != nil {
		if errors.Is(err, disk.ErrImageNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, req.ImageName)
		}
		return nil, fmt.Errorf("failed to resolve image %s: %w", req.ImageName, err)
	}

	_, err = o.vms.FindByNameInProject(ctx, req.Name, req.ProjectID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrVMAlreadyExists, req.Name)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to check vm name: %w", err)
	}

	id := o.newUUID()
	log = log.With("uuid", id)

	// Side effects from here on run to completion or full rollback even if
	// the caller goes away.
	ctx = context.WithoutCancel(ctx)

	var (
		diskPath  string
		domainXML string
		dom       libvirt.Domain
	)

	steps := []saga.Step{
		{
			Name: "create-disk",
			Do: func(ctx context.Context) error {
				log.Info("creating disk", "image", req.ImageName)
				p, err := o.disks.CreateDisk(ctx, req.Name, sourcePath)
				if err != nil {
					return err
				}
				diskPath = p
				return nil
			},
			Undo: func(context.Context) error {
				return o.disks.DeleteDisk(diskPath)
			},
		},
		{
			Name: "render-xml",
			Do: func(context.Context) error {
				x, err := libvirt.GenerateDomainXML(libvirt.DomainSpec{
					Name:      req.Name,
					UUID:      id,
					VCPUs:     uint(req.CPUCount),
					MemoryMiB: uint(req.RAMMB),
					DiskPath:  diskPath,
					Network:   o.network,
				})
				if err != nil {
					return err
				}
				domainXML = x
				return nil
			},
		},
		{
			Name: "define-domain",
			Do: func(context.Context) error {
				log.Info("defining domain")
				d, err := o.hv.Define(domainXML)
				if err != nil {
					if errors.Is(err, libvirt.ErrTimeout) {
						o.reapDefined(log, id)
					}
					return err
				}
				dom = d
				return nil
			},
			Undo: func(context.Context) error {
				return o.removeDomain(log, dom)
			},
		},
		{
			Name: "start-domain",
			Do: func(context.Context) error {
				log.Info("starting domain")
				return o.hv.Start(dom)
			},
		},
		{
			Name: "persist-record",
			Do: func(ctx context.Context) error {
				return o.vms.Create(ctx, &store.VM{
					Name:      req.Name,
					UUID:      id,
					State:     StateRunning,
					CPUCount:  req.CPUCount,
					RAMMB:     req.RAMMB,
					ProjectID: req.ProjectID,
				})
			},
		},
	}

	if err := saga.Run(ctx, log, steps...); err != nil {
		// The disk step is first, so a pre-existing disk means nothing was
		// created and nothing was undone.
		if errors.Is(err, disk.ErrDiskExists) {
			log.Warn("disk path already in use on this host, rejecting create", "error", err)
			return nil, fmt.Errorf("%w: %s is in use on this host", ErrVMAlreadyExists, req.Name)
		}

		o.metrics.Compensated()

		cause := err
		var warnings []string
		if sagaErr, ok := saga.AsError(err); ok {
			cause = sagaErr.Cause
			for _, ce := range sagaErr.CompensationErrors {
				o.metrics.CleanupWarning(ce.Step)
				warnings = append(warnings, ce.Error())
			}
		}

		if errors.Is(cause, store.ErrDuplicate) {
			log.Warn("name taken by a concurrent create, rolled back")
			return nil, fmt.Errorf("%w: %s", ErrVMAlreadyExists, req.Name)
		}

		log.Error("vm creation failed, rolled back", "error", cause, "rollback_warnings", len(warnings))
		return nil, &CreationError{Name: req.Name, Cause: cause, Warnings: warnings}
	}

	log.Info("vm created")
	return &CreateResult{Name: req.Name, UUID: id}, nil
}

// reapDefined removes a domain whose define call timed out on our side but
// may have completed on the hypervisor. The disk it references is about to be
// deleted, so leaving it would strand a domain with no backing disk. If the
// lookup itself fails the domain is left for reconcile to report.
func (o *Orchestrator) reapDefined(log *slog.Logger, id string) {
	dom, err := o.hv.LookupByUUID(id)
	switch {
	case errors.Is(err, libvirt.ErrDomainNotFound):
		return
	case err != nil:
		o.metrics.CleanupWarning("define-domain")
		log.Warn("define timed out and domain state is unknown, reconcile will report it if defined", "error", err)
		return
	}

	log.Warn("define timed out but domain exists, removing it")
	if err := o.removeDomain(log, dom); err != nil {
		o.metrics.CleanupWarning("define-domain")
		log.Warn("failed to remove domain after define timeout", "error", err)
	}
}
