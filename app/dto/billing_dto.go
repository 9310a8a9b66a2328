package dto

import (
	"time"
)

// GetBalanceStatsRequest represents the request to retrieve balance statistics
type GetBalanceStatsRequest struct {
	UserID uint `json:"user_id" validate:"required"` // User ID (from authenticated context)
}

// BalanceStatsResponse represents the balance statistics for a user
type BalanceStatsResponse struct {
	CurrentBalance        string `json:"current_balance"`         // Current prepaid balance
	Currency              string `json:"currency"`                // Currency (usually USD)
	WarningThreshold      string `json:"warning_threshold"`       // Warning alert threshold
	CriticalThreshold     string `json:"critical_threshold"`      // Critical alert threshold
	IsBlocked             bool   `json:"is_blocked"`              // Whether call admission is blocked
	BalanceStatus         string `json:"balance_status"`          // healthy, warning, critical or empty
	RecentTransactions24h int64  `json:"recent_transactions_24h"` // Transactions committed in the last 24 hours
	TotalSpentToday       string `json:"total_spent_today"`       // Deductions committed since UTC midnight
}

// GetRecentTransactionsRequest represents the request to list a user's latest transactions
type GetRecentTransactionsRequest struct {
	UserID uint `json:"user_id" validate:"required"`
	Limit  int  `json:"limit" validate:"min=1,max=100"`
}

// TransactionItem represents a single ledger entry in API responses
type TransactionItem struct {
	UUID         string    `json:"uuid"`                  // Transaction UUID
	Type         string    `json:"type"`                  // deposit, deduction or adjustment
	Amount       string    `json:"amount"`                // Unsigned magnitude
	SignedAmount string    `json:"signed_amount"`         // Magnitude with ledger sign applied
	Description  string    `json:"description"`           // Human-readable description
	CallIDRef    *string   `json:"call_id_ref,omitempty"` // Billed call, for deductions
	BalanceAfter string    `json:"balance_after"`         // Balance immediately after this entry
	CreatedAt    time.Time `json:"created_at"`            // When the entry was committed
}

// RecentTransactionsResponse represents the newest-first transaction listing
type RecentTransactionsResponse struct {
	Items []TransactionItem `json:"items"`
	Total int64             `json:"total"`
}

// CanMakeCallRequest represents an admission-control check before a call starts
type CanMakeCallRequest struct {
	UserID        uint   `json:"user_id" validate:"required"`
	EstimatedCost string `json:"estimated_cost" validate:"required"` // Decimal string, e.g. "0.75"
}

// CanMakeCallResponse represents the admission-control decision
type CanMakeCallResponse struct {
	CanCall bool   `json:"can_call"` // Whether the call should be admitted
	Balance string `json:"balance"`  // Current balance at decision time
	Message string `json:"message"`  // Operator-facing reason when denied
}

// DepositRequest represents a credit applied to a user's balance
type DepositRequest struct {
	UserID      uint   `json:"user_id" validate:"required"`
	Amount      string `json:"amount" validate:"required"` // Decimal string, must be positive
	Description string `json:"description,omitempty"`
}

// AdminAdjustRequest represents a signed manual correction to a user's balance
type AdminAdjustRequest struct {
	UserID uint   `json:"user_id" validate:"required"`
	Amount string `json:"amount" validate:"required"` // Signed decimal string, e.g. "+50" or "-2.50"
	Reason string `json:"reason" validate:"required"` // Mandatory audit reason
}

// LedgerMutationResponse represents the outcome of a deposit or adjustment
type LedgerMutationResponse struct {
	TransactionUUID string `json:"transaction_uuid"`
	BalanceAfter    string `json:"balance_after"`
}

// UpdateThresholdsRequest represents a change to a user's alert thresholds
type UpdateThresholdsRequest struct {
	UserID            uint   `json:"user_id" validate:"required"`
	WarningThreshold  string `json:"warning_threshold" validate:"required"`
	CriticalThreshold string `json:"critical_threshold" validate:"required"`
}

// GetCallHistoryRequest represents the request to list a user's recent call events
type GetCallHistoryRequest struct {
	UserID uint `json:"user_id" validate:"required"`
	Limit  int  `json:"limit" validate:"min=1,max=100"`
}

// CallHistoryItem represents one call event with its billing outcome
type CallHistoryItem struct {
	CallID           string    `json:"call_id"`
	TelephonyAgentID string    `json:"telephony_agent_id"`
	AgentName        *string   `json:"agent_name,omitempty"`
	DurationSec      int       `json:"duration_sec"`
	CallStatus       string    `json:"call_status"`
	Timestamp        time.Time `json:"timestamp"`
	Billed           bool      `json:"billed"`          // Whether a deduction exists for this call
	Cost             *string   `json:"cost,omitempty"`  // Deduction magnitude when billed
	RecordingURL     *string   `json:"recording_url,omitempty"`
}

// CallHistoryResponse represents the call history listing
type CallHistoryResponse struct {
	Items []CallHistoryItem `json:"items"`
}
