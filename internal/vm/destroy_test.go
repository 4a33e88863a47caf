package vm

import (
	"context"
	"errors"
	"testing"

	"github.com/jbweber/hearth/internal/libvirt"
	"github.com/jbweber/hearth/internal/store"
)

const testUUID = "6f1c2a7e-0d3b-4c55-9a8e-2b7f9e1d4c30"

func seedRunningVM(d *testDeps) {
	d.vms.seed(store.VM{Name: "web-01", UUID: testUUID, ProjectID: testProject, CPUCount: 2, RAMMB: 2048, State: StateRunning})
	d.hv.addDomain("web-01", testUUID, true)
	d.disks.disks[d.disks.diskPath("web-01")] = true
}

// TestDestroyVM_Success tests the happy path
func TestDestroyVM_Success(t *testing.T) {
	d := newTestDeps()
	seedRunningVM(d)

	res, err := d.orch.DestroyVM(context.Background(), testProject, "web-01")
	if err != nil {
		t.Fatalf("DestroyVM() error = %v", err)
	}
	if res.UUID != testUUID {
		t.Errorf("UUID = %q, want %q", res.UUID, testUUID)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}

	if len(d.hv.stopCalls) != 1 {
		t.Errorf("Stop called %d times, want 1", len(d.hv.stopCalls))
	}
	if len(d.hv.undefineCalls) != 1 {
		t.Errorf("Undefine called %d times, want 1", len(d.hv.undefineCalls))
	}
	if len(d.disks.disks) != 0 {
		t.Errorf("disk not deleted: %v", d.disks.disks)
	}
	if len(d.vms.rows) != 0 {
		t.Errorf("record not deleted: %v", d.vms.rows)
	}
}

// TestDestroyVM_ShutOffDomain tests that an inactive domain is not stopped
func TestDestroyVM_ShutOffDomain(t *testing.T) {
	d := newTestDeps()
	seedRunningVM(d)
	d.hv.active[testUUID] = false

	if _, err := d.orch.DestroyVM(context.Background(), testProject, "web-01"); err != nil {
		t.Fatalf("DestroyVM() error = %v", err)
	}
	if len(d.hv.stopCalls) != 0 {
		t.Errorf("Stop called %d times, want 0", len(d.hv.stopCalls))
	}
	if len(d.hv.undefineCalls) != 1 {
		t.Errorf("Undefine called %d times, want 1", len(d.hv.undefineCalls))
	}
}

// TestDestroyVM_NotFound tests that a missing record touches nothing
func TestDestroyVM_NotFound(t *testing.T) {
	tests := []struct {
		name      string
		projectID uint
		vmName    string
	}{
		{"unknown name", testProject, "nope"},
		{"other project", 42, "web-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			seedRunningVM(d)

			_, err := d.orch.DestroyVM(context.Background(), tt.projectID, tt.vmName)
			if !errors.Is(err, ErrVMNotFound) {
				t.Fatalf("DestroyVM() error = %v, want ErrVMNotFound", err)
			}
			if d.hv.callCount() != 0 {
				t.Errorf("hypervisor touched %d times", d.hv.callCount())
			}
			if d.disks.sideEffects() != 0 {
				t.Errorf("disk manager touched %d times", d.disks.sideEffects())
			}
			if d.vms.deleteCalls != 0 {
				t.Errorf("store Delete called %d times", d.vms.deleteCalls)
			}
		})
	}
}

// TestDestroyVM_InvalidName tests that unsafe names are refused
func TestDestroyVM_InvalidName(t *testing.T) {
	d := newTestDeps()

	_, err := d.orch.DestroyVM(context.Background(), testProject, "../../etc/passwd")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("DestroyVM() error = %v, want ErrInvalidRequest", err)
	}
	if d.disks.sideEffects() != 0 {
		t.Errorf("disk manager touched %d times", d.disks.sideEffects())
	}
}

// TestDestroyVM_DomainAlreadyGone tests that a vanished domain still removes
// the disk and the record
func TestDestroyVM_DomainAlreadyGone(t *testing.T) {
	d := newTestDeps()
	seedRunningVM(d)
	delete(d.hv.domains, testUUID)

	res, err := d.orch.DestroyVM(context.Background(), testProject, "web-01")
	if err != nil {
		t.Fatalf("DestroyVM() error = %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none for a missing domain", res.Warnings)
	}
	if len(d.hv.undefineCalls) != 0 {
		t.Errorf("Undefine called %d times, want 0", len(d.hv.undefineCalls))
	}
	if len(d.disks.deleteCalls) != 1 {
		t.Errorf("DeleteDisk called %d times, want 1", len(d.disks.deleteCalls))
	}
	if len(d.vms.rows) != 0 {
		t.Errorf("record not deleted: %v", d.vms.rows)
	}
}

// TestDestroyVM_BestEffortCleanup tests that cleanup failures are warnings
func TestDestroyVM_BestEffortCleanup(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(d *testDeps)
		wantWarnings int
	}{
		{
			name: "undefine fails",
			setup: func(d *testDeps) {
				d.hv.undefineFunc = func(libvirt.Domain) error { return errors.New("busy") }
			},
			wantWarnings: 1,
		},
		{
			name: "lookup fails",
			setup: func(d *testDeps) {
				d.hv.lookupFunc = func(string) (libvirt.Domain, error) {
					return libvirt.Domain{}, libvirt.ErrTimeout
				}
			},
			wantWarnings: 1,
		},
		{
			name: "disk delete fails",
			setup: func(d *testDeps) {
				d.disks.deleteErr = errors.New("permission denied")
			},
			wantWarnings: 1,
		},
		{
			name: "everything fails",
			setup: func(d *testDeps) {
				d.hv.undefineFunc = func(libvirt.Domain) error { return errors.New("busy") }
				d.disks.deleteErr = errors.New("permission denied")
			},
			wantWarnings: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps()
			seedRunningVM(d)
			tt.setup(d)

			res, err := d.orch.DestroyVM(context.Background(), testProject, "web-01")
			if err != nil {
				t.Fatalf("DestroyVM() error = %v", err)
			}
			if len(res.Warnings) != tt.wantWarnings {
				t.Errorf("Warnings = %v, want %d", res.Warnings, tt.wantWarnings)
			}
			if len(d.vms.rows) != 0 {
				t.Errorf("record not deleted: %v", d.vms.rows)
			}
		})
	}
}

// TestDestroyVM_RecordDeleteFails tests that the record deletion error is returned
func TestDestroyVM_RecordDeleteFails(t *testing.T) {
	d := newTestDeps()
	seedRunningVM(d)
	d.vms.deleteErr = errors.New("database is locked")

	res, err := d.orch.DestroyVM(context.Background(), testProject, "web-01")
	if err == nil {
		t.Fatal("DestroyVM() expected error")
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	// Hypervisor and disk cleanup still ran.
	if len(d.hv.undefineCalls) != 1 {
		t.Errorf("Undefine called %d times, want 1", len(d.hv.undefineCalls))
	}
	if len(d.disks.deleteCalls) != 1 {
		t.Errorf("DeleteDisk called %d times, want 1", len(d.disks.deleteCalls))
	}
}

// TestCreateThenDestroy tests that a created VM can be fully removed
func TestCreateThenDestroy(t *testing.T) {
	d := newTestDeps()

	created, err := d.orch.CreateVM(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("CreateVM() error = %v", err)
	}

	res, err := d.orch.DestroyVM(context.Background(), testProject, "web-01")
	if err != nil {
		t.Fatalf("DestroyVM() error = %v", err)
	}
	if res.UUID != created.UUID {
		t.Errorf("destroyed UUID = %q, want %q", res.UUID, created.UUID)
	}
	if len(d.hv.domains) != 0 || len(d.disks.disks) != 0 || len(d.vms.rows) != 0 {
		t.Errorf("resources left: domains=%d disks=%d rows=%d", len(d.hv.domains), len(d.disks.disks), len(d.vms.rows))
	}
}
