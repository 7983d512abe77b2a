package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Campaign mode.
const (
	GoalModeSimple    = "simple"
	GoalModeComposite = "composite"
)

// Target kind, for both goals and criteria.
const (
	TargetKindValue = "value"
	TargetKindCount = "count"
)

// Acceptance is set once by the broker.
const (
	GoalAcceptancePending  = "pending"
	GoalAcceptanceAccepted = "accepted"
	GoalAcceptanceRejected = "rejected"
)

// Lifecycle status, written only by the progress evaluator.
const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
)

type Goal struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User        *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Title       string    `gorm:"not null;column:title" json:"title"`
	Description string    `gorm:"column:description" json:"description,omitempty"`

	Mode        string  `gorm:"not null;column:mode" json:"mode"` // simple|composite
	TargetKind  string  `gorm:"not null;column:target_kind" json:"target_kind"`
	TargetValue float64 `gorm:"not null;column:target_value" json:"target_value"`

	// Ordered criteria array for composite mode, immutable after creation.
	Criteria datatypes.JSON `gorm:"column:criteria" json:"criteria,omitempty"`

	Acceptance string     `gorm:"not null;default:'pending';column:acceptance" json:"acceptance"`
	AcceptedAt *time.Time `gorm:"column:accepted_at" json:"accepted_at,omitempty"`

	Status      string     `gorm:"not null;default:'active';column:status" json:"status"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CurrentValue      float64    `gorm:"not null;default:0;column:current_value" json:"current_value"`
	ProgressPercent   float64    `gorm:"not null;default:0;column:progress_percent" json:"progress_percent"`
	ProgressUpdatedAt *time.Time `gorm:"column:progress_updated_at" json:"progress_updated_at,omitempty"`

	PrizeQuantity  int     `gorm:"not null;default:0;column:prize_quantity" json:"prize_quantity"`
	PrizeUnitValue float64 `gorm:"not null;default:0;column:prize_unit_value" json:"prize_unit_value"`

	StartsAt *time.Time `gorm:"column:starts_at" json:"starts_at,omitempty"`
	EndsAt   *time.Time `gorm:"column:ends_at" json:"ends_at,omitempty"`

	IsActive bool `gorm:"not null;default:true;column:is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Goal) TableName() string { return "goal" }

// GoalCriterion is one sub-target of a composite goal, stored inside the
// goal's criteria JSON column. There is no update path once created.
type GoalCriterion struct {
	Name           string  `json:"name,omitempty"`
	PolicyType     string  `json:"policy_type"`   // auto|residential|any
	ContractType   string  `json:"contract_type"` // new|renewal|either
	MinimumPremium float64 `json:"minimum_premium,omitempty"`
	TargetKind     string  `json:"target_kind"` // value|count
	TargetValue    float64 `json:"target_value"`
}
