package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// DefaultRoles are created by Seed.
var DefaultRoles = []string{RoleAdmin, RoleMember}

// Seed inserts the default roles and the given images. Existing rows are left untouched.
func Seed(ctx context.Context, db *gorm.DB, images []Image) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range DefaultRoles {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&Role{Name: name}).Error
			if err != nil {
				return fmt.Errorf("failed to seed role %s: %w", name, err)
			}
		}

		for i := range images {
			img := images[i]
			img.ID = 0
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&img).Error
			if err != nil {
				return fmt.Errorf("failed to seed image %s: %w", img.Name, err)
			}
		}

		return nil
	})
}
