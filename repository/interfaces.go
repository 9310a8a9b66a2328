// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vocalix/vocalix/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for user accounts
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByUUID(ctx context.Context, uuid string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ListActive(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// BalanceRepository defines operations for per-user prepaid balances
type BalanceRepository interface {
	Repository[models.Balance, models.BalanceFilter]
	ByUserID(ctx context.Context, userID uint) (*models.Balance, error)
	// EnsureForUser creates a zero balance row if none exists and returns the row
	EnsureForUser(ctx context.Context, userID uint) (*models.Balance, error)
	// ApplyDelta adjusts current_balance by the signed delta in a single
	// relative-adjustment statement and returns the resulting balance
	ApplyDelta(ctx context.Context, userID uint, delta decimal.Decimal) (decimal.Decimal, error)
	UpdateThresholds(ctx context.Context, userID uint, warning, critical decimal.Decimal) error
	SetBlocked(ctx context.Context, userID uint, blocked bool) error
}

// TransactionRepository defines operations for the append-only ledger
type TransactionRepository interface {
	Repository[models.Transaction, models.TransactionFilter]
	ByCallIDRef(ctx context.Context, callID string) (*models.Transaction, error)
	// BilledCallIDs returns the call IDs among the given set that already carry
	// a deduction transaction
	BilledCallIDs(ctx context.Context, userID uint, callIDs []string) (map[string]bool, error)
	ListRecent(ctx context.Context, userID uint, limit int) ([]*models.Transaction, error)
	CountSince(ctx context.Context, userID uint, since time.Time) (int64, error)
	// SumDeductionsSince totals deduction magnitudes committed at or after the
	// given instant (spend aggregation for balance stats)
	SumDeductionsSince(ctx context.Context, userID uint, since time.Time) (decimal.Decimal, error)
}

// CallEventRepository defines read-only access to the externally owned call feed
type CallEventRepository interface {
	ByCallID(ctx context.Context, callID string) (*models.CallEvent, error)
	ListRecentByUser(ctx context.Context, userID uint, since time.Time, limit int) ([]*models.CallEvent, error)
	Count(ctx context.Context, filter models.CallEventFilter) (int64, error)
}

// AgentAssignmentRepository defines operations for the agent assignment directory
type AgentAssignmentRepository interface {
	Repository[models.AgentAssignment, models.AgentAssignmentFilter]
	// ListByUser returns all of a user's assignments ordered by assigned_at
	// descending, so the first most-recent fallback candidate leads
	ListByUser(ctx context.Context, userID uint) ([]*models.AgentAssignment, error)
}

// AgentRepository defines operations for agents
type AgentRepository interface {
	Repository[models.Agent, models.AgentFilter]
	ByTelephonyAgentID(ctx context.Context, telephonyAgentID string) (*models.Agent, error)
}
