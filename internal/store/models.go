package store

import "time"

// Project is a tenant. VMs and role bindings are scoped to a project.
type Project struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
}

// User is an account that authenticates with a password.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"not null;uniqueIndex"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// Role is a named permission set such as "admin" or "member".
type Role struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"not null;uniqueIndex"`
}

// UserProjectRole binds a user to a project with a role.
type UserProjectRole struct {
	UserID    uint `gorm:"primaryKey"`
	ProjectID uint `gorm:"primaryKey;index"`
	RoleID    uint `gorm:"primaryKey"`

	User    *User    `gorm:"constraint:OnDelete:CASCADE"`
	Project *Project `gorm:"constraint:OnDelete:CASCADE"`
	Role    *Role    `gorm:"constraint:OnDelete:CASCADE"`
}

// Image is a base disk image that VM disks are cloned from.
type Image struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	Filepath  string    `gorm:"not null"`
	MinDiskGB int       `gorm:"column:min_disk_gb"`
	MinRAMMB  int       `gorm:"column:min_ram_mb"`
	CreatedAt time.Time `gorm:"not null"`
}

// VM is the persisted metadata of a virtual machine.
//
// Name is unique within a project and UUID is globally unique; both are
// enforced by the schema.
type VM struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex:idx_vms_project_name,priority:2"`
	UUID      string    `gorm:"column:uuid;not null;uniqueIndex"`
	State     string    `gorm:"not null"`
	CPUCount  int       `gorm:"column:cpu_count;not null"`
	RAMMB     int       `gorm:"column:ram_mb;not null"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_vms_project_name,priority:1"`
	CreatedAt time.Time `gorm:"not null;index"`

	Project *Project `gorm:"constraint:OnDelete:RESTRICT"`
}

// SchemaMigration records an applied migration.
type SchemaMigration struct {
	Version   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"not null"`
	AppliedAt time.Time
}
