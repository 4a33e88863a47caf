package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Member is a user's role in a project.
type Member struct {
	UserID   uint
	Username string
	Role     string
}

// RoleRepository persists roles and user/project/role bindings.
type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, fmt.Errorf("role %s: %w", name, translate(err))
	}
	return &role, nil
}

// Bind grants roleID to userID in projectID. Binding twice is a no-op.
func (r *RoleRepository) Bind(ctx context.Context, userID, projectID, roleID uint) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&UserProjectRole{UserID: userID, ProjectID: projectID, RoleID: roleID}).Error
	if err != nil {
		return fmt.Errorf("failed to bind role: %w", translate(err))
	}
	return nil
}

// Unbind removes a binding. It returns ErrNotFound if none existed.
func (r *RoleRepository) Unbind(ctx context.Context, userID, projectID, roleID uint) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ? AND role_id = ?", userID, projectID, roleID).
		Delete(&UserProjectRole{})
	if result.Error != nil {
		return fmt.Errorf("failed to unbind role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("role binding: %w", ErrNotFound)
	}
	return nil
}

// RolesInProject returns the names of the roles userID holds in projectID.
func (r *RoleRepository) RolesInProject(ctx context.Context, userID, projectID uint) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&Role{}).
		Joins("JOIN user_project_roles upr ON upr.role_id = roles.id").
		Where("upr.user_id = ? AND upr.project_id = ?", userID, projectID).
		Order("roles.name").
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	return names, nil
}

// Members lists every user bound to projectID, one entry per role.
func (r *RoleRepository) Members(ctx context.Context, projectID uint) ([]Member, error) {
	var members []Member
	err := r.db.WithContext(ctx).
		Table("user_project_roles upr").
		Select("users.id AS user_id, users.username AS username, roles.name AS role").
		Joins("JOIN users ON users.id = upr.user_id").
		Joins("JOIN roles ON roles.id = upr.role_id").
		Where("upr.project_id = ?", projectID).
		Order("users.username, roles.name").
		Scan(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}
