package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// VMRepository persists VM metadata.
type VMRepository struct {
	db *gorm.DB
}

// NewVMRepository creates a VM repository.
func NewVMRepository(db *gorm.DB) *VMRepository {
	return &VMRepository{db: db}
}

// FindByNameInProject returns the VM named name in projectID.
// It returns an error wrapping ErrNotFound if there is none.
func (r *VMRepository) FindByNameInProject(ctx context.Context, name string, projectID uint) (*VM, error) {
	var vm VM
	err := r.db.WithContext(ctx).
		Where("name = ? AND project_id = ?", name, projectID).
		First(&vm).Error
	if err != nil {
		return nil, fmt.Errorf("vm %s in project %d: %w", name, projectID, translate(err))
	}
	return &vm, nil
}

// ListByProject returns the project's VMs, newest first.
func (r *VMRepository) ListByProject(ctx context.Context, projectID uint) ([]VM, error) {
	var vms []VM
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&vms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list vms: %w", err)
	}
	return vms, nil
}

// ListAllUUIDs returns the UUID of every VM in every project.
func (r *VMRepository) ListAllUUIDs(ctx context.Context) ([]string, error) {
	var uuids []string
	if err := r.db.WithContext(ctx).Model(&VM{}).Pluck("uuid", &uuids).Error; err != nil {
		return nil, fmt.Errorf("failed to list vm uuids: %w", err)
	}
	return uuids, nil
}

// Create inserts vm, assigning its ID and CreatedAt. A name already used in
// the project, or a reused UUID, yields an error wrapping ErrDuplicate.
func (r *VMRepository) Create(ctx context.Context, vm *VM) error {
	if err := r.db.WithContext(ctx).Create(vm).Error; err != nil {
		return fmt.Errorf("failed to create vm %s: %w", vm.Name, translate(err))
	}
	return nil
}

// Delete removes the VM row.
func (r *VMRepository) Delete(ctx context.Context, vm *VM) error {
	result := r.db.WithContext(ctx).Delete(&VM{}, vm.ID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete vm %s: %w", vm.Name, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("vm %s: %w", vm.Name, ErrNotFound)
	}
	return nil
}

// CountByProject returns the number of VMs in a project.
func (r *VMRepository) CountByProject(ctx context.Context, projectID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&VM{}).Where("project_id = ?", projectID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count vms: %w", err)
	}
	return n, nil
}
