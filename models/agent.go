package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Agent represents a billable voice agent configured on the telephony provider
type Agent struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Name string    `gorm:"type:varchar(255);not null" json:"name"`

	// Provider-side identifier used to match incoming call events
	TelephonyAgentID string `gorm:"type:varchar(255);uniqueIndex;not null" json:"telephony_agent_id"`

	// Billing rate in account currency per minute of call time
	RatePerMinute decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"rate_per_minute"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// BeforeCreate ensures UUID is set
func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for GORM
func (Agent) TableName() string {
	return "agents"
}

// AgentFilter represents filter criteria for agent queries
type AgentFilter struct {
	ID               *uint      `json:"id,omitempty"`
	UUID             *uuid.UUID `json:"uuid,omitempty"`
	TelephonyAgentID *string    `json:"telephony_agent_id,omitempty"`
}
