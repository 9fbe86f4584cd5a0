package models

import (
	"time"

	"gorm.io/gorm"
)

// CycleStatus is written verbatim by admins; there is no state machine and
// completed cycles may be reopened.
type CycleStatus string

const (
	CycleStatusActive    CycleStatus = "active"
	CycleStatusCompleted CycleStatus = "completed"
)

// Cycle is one iteration of the rotating payout for a Group. The Index is
// caller-supplied and deliberately unvalidated: two cycles may share an index.
type Cycle struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	GroupID uint `gorm:"index" json:"group_id"`
	// Index is the 1-based position the caller assigns to this cycle.
	Index     int        `gorm:"column:cycle_index" json:"cycle_index"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	// RecipientUserID, when set, must hold a Membership in GroupID.
	RecipientUserID *uint       `gorm:"index" json:"recipient_user_id,omitempty"`
	Status          CycleStatus `gorm:"type:varchar(20);default:'active'" json:"status"`

	// Relationships
	Group     Group     `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Recipient *User     `gorm:"foreignKey:RecipientUserID" json:"recipient,omitempty"`
	Payments  []Payment `gorm:"foreignKey:CycleID" json:"payments,omitempty"`
}
