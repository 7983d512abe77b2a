package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusApproved  = "approved"
	OrderStatusRejected  = "rejected"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

type RedemptionOrder struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`

	Quantity   int     `gorm:"not null;column:quantity" json:"quantity"`
	TotalValue float64 `gorm:"not null;column:total_value" json:"total_value"`
	Status     string  `gorm:"not null;default:'pending';column:status" json:"status"`

	DecidedAt   *time.Time `gorm:"column:decided_at" json:"decided_at,omitempty"`
	DeliveredAt *time.Time `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (RedemptionOrder) TableName() string { return "redemption_order" }
