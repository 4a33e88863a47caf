// Package vm provides the compute orchestrator: VM create, list, destroy
// and reconciliation across the metadata store, the hypervisor and the
// disk image directory.
//
// The main operations are:
//   - CreateVM: clone a disk, define and start a domain, persist the record
//   - ListVMs: list a project's VMs with live hypervisor state
//   - DestroyVM: tear down a VM and always remove its record
//   - ReconcileVMs: report hypervisor domains the store has no record of
//
// Error Handling:
//
// CreateVM runs its side effects as a saga. If any step fails, every step
// that already completed is undone in reverse order and a single
// *CreationError wrapping the original cause is returned, so callers never
// observe a half-created VM.
//
// DestroyVM is best-effort toward the hypervisor and the disk: failures there
// are logged and returned as warnings. Deleting the metadata record always
// runs and is the only failure that propagates.
//
// Context Support:
//
// Operations accept a context.Context, but an in-flight create or destroy is
// not abandoned when the caller's context is cancelled. Rolling back halfway
// would leave more debris than finishing.
package vm
