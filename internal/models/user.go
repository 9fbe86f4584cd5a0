package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. Authorization over a Group is never
// derived from the User itself; it always comes from a Membership row.
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name         string `gorm:"type:varchar(255)" json:"name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	PasswordHash string `gorm:"type:varchar(255)" json:"-"`
	Phone        string `gorm:"type:varchar(50)" json:"phone,omitempty"`
	// PushToken is the FCM registration token of the user's current device.
	// Empty means no push-capable device is registered.
	PushToken string `gorm:"type:varchar(512)" json:"push_token,omitempty"`

	// Relationships
	Memberships []Membership  `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
	Payments    []Payment     `gorm:"foreignKey:UserID" json:"payments,omitempty"`
	Settings    *UserSettings `gorm:"foreignKey:UserID" json:"settings,omitempty"`
}

// UserSettings holds per-user notification preferences read by the reminder
// worker. A missing row means defaults: both channels on, 3 lead days.
type UserSettings struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID uint `gorm:"uniqueIndex" json:"user_id"`

	EmailReminders   bool `gorm:"default:true" json:"email_reminders"`
	PushReminders    bool `gorm:"default:true" json:"push_reminders"`
	ReminderLeadDays int  `gorm:"default:3" json:"reminder_lead_days"`
}

// DefaultUserSettings returns the settings applied when a user never saved any.
func DefaultUserSettings(userID uint) UserSettings {
	return UserSettings{
		UserID:           userID,
		EmailReminders:   true,
		PushReminders:    true,
		ReminderLeadDays: 3,
	}
}
