package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceStatus classifies a balance against its alert thresholds
type BalanceStatus string

const (
	BalanceStatusHealthy  BalanceStatus = "healthy"
	BalanceStatusWarning  BalanceStatus = "warning"
	BalanceStatusCritical BalanceStatus = "critical"
	BalanceStatusEmpty    BalanceStatus = "empty"
)

// Severity orders statuses from healthy (0) to empty (3). A transition to a
// strictly higher severity is an alert-worthy crossing.
func (s BalanceStatus) Severity() int {
	switch s {
	case BalanceStatusWarning:
		return 1
	case BalanceStatusCritical:
		return 2
	case BalanceStatusEmpty:
		return 3
	default:
		return 0
	}
}

// Balance holds a user's prepaid credit. Exactly one row per user. The row is
// mutated only by the ledger, and only through relative-adjustment updates
// (balance = balance + delta), never read-modify-write.
type Balance struct {
	ID     uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	CurrentBalance    decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0" json:"current_balance"`
	WarningThreshold  decimal.Decimal `gorm:"type:numeric(18,4);not null;default:10" json:"warning_threshold"`
	CriticalThreshold decimal.Decimal `gorm:"type:numeric(18,4);not null;default:5" json:"critical_threshold"`

	IsBlocked bool `gorm:"not null;default:false" json:"is_blocked"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// BeforeCreate keeps the threshold ordering sane at insert time
func (b *Balance) BeforeCreate(tx *gorm.DB) error {
	if b.CriticalThreshold.GreaterThan(b.WarningThreshold) {
		return gorm.ErrInvalidData
	}
	return nil
}

// Status classifies the current balance against the row's own thresholds
func (b *Balance) Status() BalanceStatus {
	return ClassifyBalance(b.CurrentBalance, b.WarningThreshold, b.CriticalThreshold)
}

// ClassifyBalance buckets a balance given critical_threshold < warning_threshold
func ClassifyBalance(balance, warning, critical decimal.Decimal) BalanceStatus {
	switch {
	case balance.LessThanOrEqual(decimal.Zero):
		return BalanceStatusEmpty
	case balance.LessThanOrEqual(critical):
		return BalanceStatusCritical
	case balance.LessThanOrEqual(warning):
		return BalanceStatusWarning
	default:
		return BalanceStatusHealthy
	}
}

// TableName specifies the table name for GORM
func (Balance) TableName() string {
	return "balances"
}

// BalanceFilter represents filter criteria for balance queries
type BalanceFilter struct {
	ID        *uint `json:"id,omitempty"`
	UserID    *uint `json:"user_id,omitempty"`
	IsBlocked *bool `json:"is_blocked,omitempty"`
}
