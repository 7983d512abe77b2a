package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	PrizeStatusAvailable = "available"
	PrizeStatusRedeemed  = "redeemed"
	PrizeStatusExpired   = "expired"
)

type ConqueredPrize struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	GoalID uuid.UUID `gorm:"type:uuid;index;not null" json:"goal_id"`
	Goal   *Goal     `gorm:"constraint:OnDelete:CASCADE;foreignKey:GoalID;references:ID" json:"goal,omitempty"`

	Quantity           int     `gorm:"not null;column:quantity" json:"quantity"`
	EstimatedUnitValue float64 `gorm:"not null;column:estimated_unit_value" json:"estimated_unit_value"`
	Status             string  `gorm:"not null;default:'available';column:status" json:"status"`

	// Set when the prize is consumed by a redemption order.
	RedemptionOrderID *uuid.UUID `gorm:"type:uuid;column:redemption_order_id" json:"redemption_order_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ConqueredPrize) TableName() string { return "conquered_prize" }
