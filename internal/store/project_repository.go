package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ProjectRepository persists projects.
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *Project) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create project %s: %w", p.Name, translate(err))
	}
	return nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id uint) (*Project, error) {
	var p Project
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("project with ID %d: %w", id, translate(err))
	}
	return &p, nil
}

func (r *ProjectRepository) FindByName(ctx context.Context, name string) (*Project, error) {
	var p Project
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error; err != nil {
		return nil, fmt.Errorf("project %s: %w", name, translate(err))
	}
	return &p, nil
}

// List returns all projects ordered by name.
func (r *ProjectRepository) List(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := r.db.WithContext(ctx).Order("name").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Delete removes a project and its role bindings in one transaction.
// It fails with ErrInUse while any VM still belongs to the project.
func (r *ProjectRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Project
		if err := tx.First(&p, id).Error; err != nil {
			return fmt.Errorf("project with ID %d: %w", id, translate(err))
		}

		vms, err := NewVMRepository(tx).CountByProject(ctx, id)
		if err != nil {
			return err
		}
		if vms > 0 {
			return fmt.Errorf("project %s has %d vms: %w", p.Name, vms, ErrInUse)
		}

		if err := tx.Where("project_id = ?", id).Delete(&UserProjectRole{}).Error; err != nil {
			return fmt.Errorf("failed to delete role bindings: %w", err)
		}
		if err := tx.Delete(&p).Error; err != nil {
			return fmt.Errorf("failed to delete project %s: %w", p.Name, err)
		}
		return nil
	})
}
