package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	PolicyTypeAuto        = "auto"
	PolicyTypeResidential = "residential"
	PolicyTypeAny         = "any" // criterion wildcard, never stored on a policy
)

const (
	ContractTypeNew     = "new"
	ContractTypeRenewal = "renewal"
	ContractTypeEither  = "either" // criterion wildcard
)

const (
	PolicyStatusActive    = "active"
	PolicyStatusCancelled = "cancelled"
)

type Policy struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index:idx_policy_user_number,unique,priority:1" json:"user_id"`
	User         *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Number       string    `gorm:"not null;index:idx_policy_user_number,unique,priority:2;column:number" json:"number"`
	Type         string    `gorm:"not null;column:type" json:"type"`                   // auto|residential
	ContractType string    `gorm:"not null;column:contract_type" json:"contract_type"` // new|renewal
	PremiumValue float64   `gorm:"not null;column:premium_value" json:"premium_value"`
	Status       string    `gorm:"not null;default:'active';column:status" json:"status"`
	IssuedAt     time.Time `gorm:"not null;column:issued_at" json:"issued_at"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Policy) TableName() string { return "policy" }
