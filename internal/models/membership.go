package models

import (
	"time"

	"gorm.io/gorm"
)

// Role of a member within one Group. Stored on the Membership row, which is
// the sole authorization fact in the system.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ValidRole reports whether r is one of the two accepted role strings.
func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleMember
}

// Membership joins one User to one Group with a role. Unique per (user, group).
type Membership struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID  uint `gorm:"index;uniqueIndex:idx_user_group,where:deleted_at IS NULL" json:"user_id"`
	GroupID uint `gorm:"index;uniqueIndex:idx_user_group,where:deleted_at IS NULL" json:"group_id"`
	Role    Role `gorm:"type:varchar(20);default:'member'" json:"role"`

	// Relationships
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Group Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// IsAdmin reports whether this membership grants admin capability.
func (m Membership) IsAdmin() bool {
	return m.Role == RoleAdmin
}
