package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// UserRepository persists users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.Username, translate(err))
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, fmt.Errorf("user with ID %d: %w", id, translate(err))
	}
	return &u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, fmt.Errorf("user %s: %w", username, translate(err))
	}
	return &u, nil
}

// List returns all users ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.db.WithContext(ctx).Order("username").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Delete removes a user and all of its role bindings.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u User
		if err := tx.First(&u, id).Error; err != nil {
			return fmt.Errorf("user with ID %d: %w", id, translate(err))
		}
		if err := tx.Where("user_id = ?", id).Delete(&UserProjectRole{}).Error; err != nil {
			return fmt.Errorf("failed to delete role bindings: %w", err)
		}
		if err := tx.Delete(&u).Error; err != nil {
			return fmt.Errorf("failed to delete user %s: %w", u.Username, err)
		}
		return nil
	})
}
