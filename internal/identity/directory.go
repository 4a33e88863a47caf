package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/jbweber/hearth/internal/store"
)

// Directory manages projects, users and their role bindings.
type Directory struct {
	projects   *store.ProjectRepository
	users      *store.UserRepository
	roles      *store.RoleRepository
	bcryptCost int
	logger     *slog.Logger
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithBcryptCost overrides bcrypt.DefaultCost for new password hashes.
func WithBcryptCost(cost int) DirectoryOption {
	return func(d *Directory) {
		d.bcryptCost = cost
	}
}

// NewDirectory creates a Directory over db.
func NewDirectory(db *gorm.DB, logger *slog.Logger, opts ...DirectoryOption) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{
		projects:   store.NewProjectRepository(db),
		users:      store.NewUserRepository(db),
		roles:      store.NewRoleRepository(db),
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CreateProject creates a project with a unique name.
func (d *Directory) CreateProject(ctx context.Context, name string) (*store.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}

	p := &store.Project{Name: name}
	if err := d.projects.Create(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrProjectExists, name)
		}
		return nil, err
	}

	d.logger.Info("project created", "project_id", p.ID, "project", p.Name)
	return p, nil
}

// ListProjects returns all projects ordered by name.
func (d *Directory) ListProjects(ctx context.Context) ([]store.Project, error) {
	return d.projects.List(ctx)
}

func (d *Directory) GetProject(ctx context.Context, id uint) (*store.Project, error) {
	p, err := d.projects.FindByID(ctx, id)
	if err != nil {
		return nil, projectErr(err, id)
	}
	return p, nil
}

// DeleteProject removes an empty project and its role bindings.
func (d *Directory) DeleteProject(ctx context.Context, id uint) error {
	if err := d.projects.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			return fmt.Errorf("%w: %v", ErrProjectNotEmpty, err)
		}
		return projectErr(err, id)
	}
	d.logger.Info("project deleted", "project_id", id)
	return nil
}

// CreateUser creates a user with a bcrypt-hashed password.
func (d *Directory) CreateUser(ctx context.Context, username, password string) (*store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &store.User{Username: username, PasswordHash: string(hash)}
	if err := d.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return nil, err
	}

	d.logger.Info("user created", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// ListUsers returns all users ordered by username.
func (d *Directory) ListUsers(ctx context.Context) ([]store.User, error) {
	return d.users.List(ctx)
}

func (d *Directory) GetUser(ctx context.Context, id uint) (*store.User, error) {
	u, err := d.users.FindByID(ctx, id)
	if err != nil {
		return nil, userErr(err, id)
	}
	return u, nil
}

// DeleteUser removes a user and all of its role bindings.
func (d *Directory) DeleteUser(ctx context.Context, id uint) error {
	if err := d.users.Delete(ctx, id); err != nil {
		return userErr(err, id)
	}
	d.logger.Info("user deleted", "user_id", id)
	return nil
}

// AssignRole grants roleName to a user in a project. Assigning a role the
// user already holds is a no-op.
func (d *Directory) AssignRole(ctx context.Context, userID, projectID uint, roleName string) error {
	role, err := d.resolveBinding(ctx, userID, projectID, roleName)
	if err != nil {
		return err
	}
	if err := d.roles.Bind(ctx, userID, projectID, role.ID); err != nil {
		return err
	}
	d.logger.Info("role assigned", "user_id", userID, "project_id", projectID, "role", roleName)
	return nil
}

// RevokeRole removes roleName from a user in a project. Revoking a role the
// user does not hold is a no-op.
func (d *Directory) RevokeRole(ctx context.Context, userID, projectID uint, roleName string) error {
	role, err := d.resolveBinding(ctx, userID, projectID, roleName)
	if err != nil {
		return err
	}
	if err := d.roles.Unbind(ctx, userID, projectID, role.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	d.logger.Info("role revoked", "user_id", userID, "project_id", projectID, "role", roleName)
	return nil
}

// ListProjectMembers lists the users bound to a project, one entry per role.
func (d *Directory) ListProjectMembers(ctx context.Context, projectID uint) ([]store.Member, error) {
	if _, err := d.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	members, err := d.roles.Members(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []store.Member{}
	}
	return members, nil
}

func (d *Directory) resolveBinding(ctx context.Context, userID, projectID uint, roleName string) (*store.Role, error) {
	if _, err := d.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := d.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	role, err := d.roles.FindByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, roleName)
		}
		return nil, err
	}
	return role, nil
}

func projectErr(err error, id uint) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrProjectNotFound, id)
	}
	return err
}

func userErr(err error, id uint) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	return err
}
