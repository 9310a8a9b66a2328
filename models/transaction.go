package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType represents the type of ledger entry
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"    // Balance top-up via payment provider
	TransactionTypeDeduction  TransactionType = "deduction"  // Automatic charge for a billed call
	TransactionTypeAdjustment TransactionType = "adjustment" // Manual admin credit/debit with a reason
)

// Signed returns the balance delta this entry contributed: deductions are
// negative, everything else positive. Amount itself is an unsigned magnitude.
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == TransactionTypeDeduction {
		return amount.Neg()
	}
	return amount
}

// Transaction is one immutable entry in a user's billing ledger. Rows are
// created once by the ledger and never updated or deleted.
//
// The partial unique index on CallIDRef (deduction rows only) is the durable
// idempotency authority: a second deduction for the same call cannot commit,
// regardless of how many pollers race on it. In-memory dedup caches are an
// optimization layered on top, never the source of truth.
type Transaction struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	UserID uint `gorm:"not null;index:idx_transactions_user_time" json:"user_id"`

	Type        TransactionType `gorm:"type:varchar(20);not null;index" json:"type"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"amount"` // unsigned magnitude
	Description string          `gorm:"type:text" json:"description"`

	// Set only on deduction rows; nil elsewhere so the partial unique index
	// ignores deposits and adjustments
	CallIDRef *string `gorm:"type:varchar(255);uniqueIndex:uniq_deduction_call,where:type = 'deduction'" json:"call_id_ref,omitempty"`

	// Balance immediately after this entry committed
	BalanceAfter decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"balance_after"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_transactions_user_time" json:"created_at"`
}

// BeforeCreate ensures UUID is set
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for GORM
func (Transaction) TableName() string {
	return "transactions"
}

// TransactionFilter represents filter criteria for transaction queries
type TransactionFilter struct {
	ID            *uint            `json:"id,omitempty"`
	UUID          *uuid.UUID       `json:"uuid,omitempty"`
	UserID        *uint            `json:"user_id,omitempty"`
	Type          *TransactionType `json:"type,omitempty"`
	CallIDRef     *string          `json:"call_id_ref,omitempty"`
	CreatedAfter  *time.Time       `json:"created_after,omitempty"`
	CreatedBefore *time.Time       `json:"created_before,omitempty"`
}
