package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgentAssignment links a user to an agent they may be billed for. A user holds
// zero or more assignments; at most one carries IsPrimary=true (enforced upstream
// by the assignment directory, not by this subsystem).
type AgentAssignment struct {
	ID      uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID  uint `gorm:"not null;index:idx_assignments_user" json:"user_id"`
	AgentID uint `gorm:"not null;index" json:"agent_id"`

	// Denormalized from Agent so rate selection needs no join
	TelephonyAgentID string          `gorm:"type:varchar(255);not null;index" json:"telephony_agent_id"`
	RatePerMinute    decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"rate_per_minute"`

	IsPrimary  bool      `gorm:"not null;default:false" json:"is_primary"`
	AssignedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"assigned_at"`

	Agent Agent `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"agent,omitempty"`
}

// TableName specifies the table name for GORM
func (AgentAssignment) TableName() string {
	return "agent_assignments"
}

// AgentAssignmentFilter represents filter criteria for assignment queries
type AgentAssignmentFilter struct {
	ID               *uint   `json:"id,omitempty"`
	UserID           *uint   `json:"user_id,omitempty"`
	AgentID          *uint   `json:"agent_id,omitempty"`
	TelephonyAgentID *string `json:"telephony_agent_id,omitempty"`
	IsPrimary        *bool   `json:"is_primary,omitempty"`
}
