package types

import (
	"time"

	"github.com/google/uuid"
)

// PolicyGoalLink records the outcome of evaluating one policy against one
// goal. Rows are created for matches and non-matches alike and are never
// deleted, so the evaluation history stays auditable.
type PolicyGoalLink struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PolicyID uuid.UUID `gorm:"type:uuid;not null;index:idx_policy_goal_link,unique,priority:1" json:"policy_id"`
	Policy   *Policy   `gorm:"constraint:OnDelete:CASCADE;foreignKey:PolicyID;references:ID" json:"policy,omitempty"`
	GoalID   uuid.UUID `gorm:"type:uuid;not null;index:idx_policy_goal_link,unique,priority:2" json:"goal_id"`
	Goal     *Goal     `gorm:"constraint:OnDelete:CASCADE;foreignKey:GoalID;references:ID" json:"-"`

	IsActive             bool     `gorm:"not null;default:false;column:is_active" json:"is_active"`
	ConfidenceScore      *float64 `gorm:"column:confidence_score" json:"confidence_score,omitempty"`
	Justification        string   `gorm:"column:justification" json:"justification,omitempty"`
	MatchedAutomatically bool     `gorm:"not null;default:true;column:matched_automatically" json:"matched_automatically"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PolicyGoalLink) TableName() string { return "policy_goal_link" }
