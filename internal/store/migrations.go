package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Migration is a versioned schema change.
type Migration struct {
	Version int64
	Name    string
	Up      func(tx *gorm.DB) error
}

// Migrator applies pending migrations in version order and records them
// in schema_migrations.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator creates a migrator preloaded with the hearth schema.
func NewMigrator(db *gorm.DB) *Migrator {
	m := &Migrator{db: db}
	for _, mig := range schemaMigrations() {
		m.AddMigration(mig)
	}
	return m
}

// AddMigration registers a migration, keeping the list sorted by version.
func (m *Migrator) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// Migrations returns the registered migrations.
func (m *Migrator) Migrations() []Migration {
	return m.migrations
}

// CurrentVersion returns the highest applied migration version, or 0.
func (m *Migrator) CurrentVersion(ctx context.Context) (int64, error) {
	var version int64
	err := m.db.WithContext(ctx).Model(&SchemaMigration{}).
		Select("COALESCE(MAX(version), 0)").Scan(&version).Error
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Run applies every migration newer than the current version. Each migration
// runs in its own transaction together with its schema_migrations record.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   mig.Version,
				Name:      mig.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}

	return nil
}

func schemaMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_identity_tables",
			Up: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Project{}, &User{}, &Role{}, &UserProjectRole{})
			},
		},
		{
			Version: 2,
			Name:    "create_compute_tables",
			Up: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Image{}, &VM{})
			},
		},
	}
}
