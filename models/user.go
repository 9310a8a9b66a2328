package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the minimal account record the billing core needs: an identity to key
// balances and ledgers by, plus contact points for low-balance alerts. Account
// management itself (signup, sessions, profile) lives in the upstream platform.
type User struct {
	ID    uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID  uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Email string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`

	Mobile   *string `gorm:"type:varchar(20)" json:"mobile,omitempty"`
	FullName string  `gorm:"type:varchar(255)" json:"full_name"`
	IsActive bool    `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Balance      *Balance          `gorm:"foreignKey:UserID" json:"balance,omitempty"`
	Transactions []Transaction     `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
	Assignments  []AgentAssignment `gorm:"foreignKey:UserID" json:"assignments,omitempty"`
}

// BeforeCreate ensures UUID is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	Email    *string    `json:"email,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
