package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// PaymentGateway identifies how a Payment got settled.
type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// Payment is one member's obligation for one Cycle. Amount is fixed at
// fan-out time from the group's contribution and never recomputed.
// (cycle_id, user_id) is expected-unique but not enforced by the schema.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	CycleID uint    `gorm:"index" json:"cycle_id"`
	UserID  uint    `gorm:"index" json:"user_id"`
	Amount  float64 `gorm:"type:decimal(15,2)" json:"amount"`
	Paid    bool    `gorm:"default:false" json:"paid"`
	PaidAt  *time.Time `json:"paid_at,omitempty"`
	// Gateway records which path settled the payment; empty while unpaid.
	Gateway PaymentGateway `gorm:"type:varchar(50)" json:"gateway,omitempty"`
	// UUID is the public reference used in reminder deep links and checkout
	// order ids; assigned once at fan-out.
	UUID string `gorm:"type:varchar(100);index" json:"uuid"`

	// Relationships
	Cycle Cycle `gorm:"foreignKey:CycleID" json:"cycle,omitempty"`
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// PaymentSession tracks one attempt to settle a Payment through an online
// gateway. At most one session per payment is active at a time; stale ones
// are swept by the worker.
type PaymentSession struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	PaymentID uint           `gorm:"index" json:"payment_id"`
	UserID    uint           `json:"user_id"`
	Gateway   PaymentGateway `gorm:"type:varchar(50);not null" json:"gateway"`
	OrderID   string         `gorm:"type:varchar(100);index" json:"order_id"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`

	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata"`

	// Relationships
	Payment Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}

// PaymentCallbackHistory archives every raw gateway webhook payload.
type PaymentCallbackHistory struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Gateway  PaymentGateway  `gorm:"type:varchar(50);not null" json:"gateway"`
	Metadata json.RawMessage `gorm:"type:jsonb" json:"metadata"`
}
