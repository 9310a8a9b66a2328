// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/vocalix/vocalix/app/dto"
	"github.com/vocalix/vocalix/models"
	"github.com/vocalix/vocalix/repository"
	"github.com/vocalix/vocalix/utils"
	"gorm.io/gorm"
)

// LedgerFlow handles the complete balance ledger business logic
type LedgerFlow interface {
	// ApplyTransaction mutates the balance and appends the matching ledger
	// entry. For deductions carrying a call reference the write is idempotent
	// per call: a second attempt returns the previously committed entry.
	ApplyTransaction(ctx context.Context, userID uint, amount decimal.Decimal, txType models.TransactionType, description string, callIDRef *string) (*models.Transaction, error)
	// HasSufficientBalance is a read-only admission pre-check; it never gates
	// post-call billing
	HasSufficientBalance(ctx context.Context, userID uint, amount decimal.Decimal) (bool, decimal.Decimal, error)
	GetBalanceStats(ctx context.Context, req *dto.GetBalanceStatsRequest, metadata *ClientMetadata) (*dto.BalanceStatsResponse, error)
	GetRecentTransactions(ctx context.Context, req *dto.GetRecentTransactionsRequest, metadata *ClientMetadata) (*dto.RecentTransactionsResponse, error)
	CanMakeCall(ctx context.Context, req *dto.CanMakeCallRequest, metadata *ClientMetadata) (*dto.CanMakeCallResponse, error)
	Deposit(ctx context.Context, req *dto.DepositRequest, metadata *ClientMetadata) (*dto.LedgerMutationResponse, error)
	AdminAdjust(ctx context.Context, req *dto.AdminAdjustRequest, metadata *ClientMetadata) (*dto.LedgerMutationResponse, error)
	UpdateThresholds(ctx context.Context, req *dto.UpdateThresholdsRequest, metadata *ClientMetadata) error
}

// LedgerFlowImpl implements the balance ledger business flow
type LedgerFlowImpl struct {
	userRepo        repository.UserRepository
	balanceRepo     repository.BalanceRepository
	transactionRepo repository.TransactionRepository
	db              *gorm.DB
	logger          *log.Logger
}

// NewLedgerFlow creates a new ledger flow instance
func NewLedgerFlow(
	userRepo repository.UserRepository,
	balanceRepo repository.BalanceRepository,
	transactionRepo repository.TransactionRepository,
	db *gorm.DB,
	logger *log.Logger,
) LedgerFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &LedgerFlowImpl{
		userRepo:        userRepo,
		balanceRepo:     balanceRepo,
		transactionRepo: transactionRepo,
		db:              db,
		logger:          logger,
	}
}

// ApplyTransaction implements the ledger write path.
//
// The balance delta is applied first as a relative adjustment, then the
// ledger entry is inserted. The partial unique index on call_id_ref is the
// idempotency authority for deductions: a violation there means a concurrent
// or earlier run already billed the call, so the delta is compensated and the
// existing entry is returned. Any other insert failure also compensates the
// delta and surfaces a retryable error. A compensation failure leaves the
// balance out of sync with the ledger and is reported as fatal, never
// retried automatically.
func (l *LedgerFlowImpl) ApplyTransaction(ctx context.Context, userID uint, amount decimal.Decimal, txType models.TransactionType, description string, callIDRef *string) (*models.Transaction, error) {
	if amount.IsNegative() {
		return nil, ErrAmountNotPositive
	}

	if _, err := l.balanceRepo.EnsureForUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure balance row: %w", err)
	}

	delta := txType.Signed(amount)

	balanceAfter, err := l.balanceRepo.ApplyDelta(ctx, userID, delta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerRetryable, err)
	}

	transaction := &models.Transaction{
		UserID:       userID,
		Type:         txType,
		Amount:       amount,
		Description:  description,
		CallIDRef:    callIDRef,
		BalanceAfter: balanceAfter,
		CreatedAt:    utils.UTCNow(),
	}

	if err := l.transactionRepo.Save(ctx, transaction); err != nil {
		if isDuplicateDeduction(err, txType, callIDRef) {
			return l.resolveAlreadyBilled(ctx, userID, delta, *callIDRef)
		}
		return nil, l.compensate(ctx, userID, delta, err)
	}

	ledgerTransactionsTotal.WithLabelValues(string(txType)).Inc()
	return transaction, nil
}

// resolveAlreadyBilled reverts the duplicate delta and returns the entry the
// earlier attempt committed
func (l *LedgerFlowImpl) resolveAlreadyBilled(ctx context.Context, userID uint, delta decimal.Decimal, callID string) (*models.Transaction, error) {
	if _, err := l.balanceRepo.ApplyDelta(ctx, userID, delta.Neg()); err != nil {
		ledgerInconsistenciesTotal.Inc()
		l.logger.Printf("FATAL ledger inconsistency: duplicate deduction for call %s, compensation of %s failed for user %d: %v", callID, delta.Neg(), userID, err)
		return nil, fmt.Errorf("%w: user %d call %s delta %s", ErrLedgerInconsistent, userID, callID, delta.Neg())
	}

	ledgerIdempotentHitsTotal.Inc()
	existing, err := l.transactionRepo.ByCallIDRef(ctx, callID)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// compensate reverts the balance delta after a failed insert and wraps the
// original error as retryable
func (l *LedgerFlowImpl) compensate(ctx context.Context, userID uint, delta decimal.Decimal, cause error) error {
	if _, err := l.balanceRepo.ApplyDelta(ctx, userID, delta.Neg()); err != nil {
		ledgerInconsistenciesTotal.Inc()
		l.logger.Printf("FATAL ledger inconsistency: compensation of %s failed for user %d after insert error (%v): %v", delta.Neg(), userID, cause, err)
		return fmt.Errorf("%w: user %d delta %s", ErrLedgerInconsistent, userID, delta.Neg())
	}
	return fmt.Errorf("%w: %v", ErrLedgerRetryable, cause)
}

// isDuplicateDeduction reports whether the insert failed on the deduction
// call_id uniqueness constraint. The connection is opened with TranslateError
// so the driver violation usually arrives as gorm.ErrDuplicatedKey; the raw
// pgconn SQLSTATE check covers writes that bypass translation.
func isDuplicateDeduction(err error, txType models.TransactionType, callIDRef *string) bool {
	if txType != models.TransactionTypeDeduction || callIDRef == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// HasSufficientBalance checks whether the balance covers the given amount
func (l *LedgerFlowImpl) HasSufficientBalance(ctx context.Context, userID uint, amount decimal.Decimal) (bool, decimal.Decimal, error) {
	balance, err := l.balanceRepo.ByUserID(ctx, userID)
	if err != nil {
		return false, decimal.Zero, err
	}
	if balance == nil {
		return false, decimal.Zero, ErrBalanceNotFound
	}
	if balance.IsBlocked {
		return false, balance.CurrentBalance, nil
	}
	return balance.CurrentBalance.GreaterThanOrEqual(amount), balance.CurrentBalance, nil
}

// GetBalanceStats returns the balance dashboard numbers for a user
func (l *LedgerFlowImpl) GetBalanceStats(ctx context.Context, req *dto.GetBalanceStatsRequest, metadata *ClientMetadata) (*dto.BalanceStatsResponse, error) {
	if _, err := getUser(ctx, l.userRepo, req.UserID); err != nil {
		return nil, NewBusinessError("BALANCE_STATS_FAILED", "Balance stats failed", err)
	}

	balance, err := l.balanceRepo.EnsureForUser(ctx, req.UserID)
	if err != nil {
		return nil, NewBusinessError("BALANCE_STATS_FAILED", "Balance stats failed", err)
	}

	dayAgo := utils.UTCNow().Add(-24 * time.Hour)
	midnight := utils.UTCMidnight()

	recentCount, err := l.transactionRepo.CountSince(ctx, req.UserID, dayAgo)
	if err != nil {
		return nil, NewBusinessError("BALANCE_STATS_FAILED", "Balance stats failed", err)
	}

	spentToday, err := l.transactionRepo.SumDeductionsSince(ctx, req.UserID, midnight)
	if err != nil {
		return nil, NewBusinessError("BALANCE_STATS_FAILED", "Balance stats failed", err)
	}

	return &dto.BalanceStatsResponse{
		CurrentBalance:        balance.CurrentBalance.String(),
		Currency:              utils.USDCurrency,
		WarningThreshold:      balance.WarningThreshold.String(),
		CriticalThreshold:     balance.CriticalThreshold.String(),
		IsBlocked:             balance.IsBlocked,
		BalanceStatus:         string(balance.Status()),
		RecentTransactions24h: recentCount,
		TotalSpentToday:       spentToday.String(),
	}, nil
}

// GetRecentTransactions returns the user's ledger entries newest first
func (l *LedgerFlowImpl) GetRecentTransactions(ctx context.Context, req *dto.GetRecentTransactionsRequest, metadata *ClientMetadata) (*dto.RecentTransactionsResponse, error) {
	if _, err := getUser(ctx, l.userRepo, req.UserID); err != nil {
		return nil, NewBusinessError("RECENT_TRANSACTIONS_FAILED", "Recent transactions failed", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	transactions, err := l.transactionRepo.ListRecent(ctx, req.UserID, limit)
	if err != nil {
		return nil, NewBusinessError("RECENT_TRANSACTIONS_FAILED", "Recent transactions failed", err)
	}

	total, err := l.transactionRepo.Count(ctx, models.TransactionFilter{UserID: utils.ToPtr(req.UserID)})
	if err != nil {
		return nil, NewBusinessError("RECENT_TRANSACTIONS_FAILED", "Recent transactions failed", err)
	}

	items := make([]dto.TransactionItem, 0, len(transactions))
	for _, transaction := range transactions {
		items = append(items, ToTransactionItemDTO(*transaction))
	}

	return &dto.RecentTransactionsResponse{Items: items, Total: total}, nil
}

// CanMakeCall decides whether a new call should be admitted for the user
func (l *LedgerFlowImpl) CanMakeCall(ctx context.Context, req *dto.CanMakeCallRequest, metadata *ClientMetadata) (*dto.CanMakeCallResponse, error) {
	if _, err := getUser(ctx, l.userRepo, req.UserID); err != nil {
		return nil, NewBusinessError("CAN_MAKE_CALL_FAILED", "Call admission check failed", err)
	}

	estimated, err := decimal.NewFromString(req.EstimatedCost)
	if err != nil || estimated.IsNegative() {
		return nil, NewBusinessError("CAN_MAKE_CALL_FAILED", "Call admission check failed", ErrAmountNotPositive)
	}

	balance, err := l.balanceRepo.EnsureForUser(ctx, req.UserID)
	if err != nil {
		return nil, NewBusinessError("CAN_MAKE_CALL_FAILED", "Call admission check failed", err)
	}

	if balance.IsBlocked {
		return &dto.CanMakeCallResponse{
			CanCall: false,
			Balance: balance.CurrentBalance.String(),
			Message: "account is blocked",
		}, nil
	}

	if balance.CurrentBalance.LessThan(estimated) {
		return &dto.CanMakeCallResponse{
			CanCall: false,
			Balance: balance.CurrentBalance.String(),
			Message: fmt.Sprintf("balance %s does not cover estimated cost %s", balance.CurrentBalance, estimated),
		}, nil
	}

	return &dto.CanMakeCallResponse{
		CanCall: true,
		Balance: balance.CurrentBalance.String(),
		Message: "ok",
	}, nil
}

// Deposit credits the user's balance
func (l *LedgerFlowImpl) Deposit(ctx context.Context, req *dto.DepositRequest, metadata *ClientMetadata) (*dto.LedgerMutationResponse, error) {
	if _, err := getUser(ctx, l.userRepo, req.UserID); err != nil {
		return nil, NewBusinessError("DEPOSIT_FAILED", "Deposit failed", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, NewBusinessError("DEPOSIT_FAILED", "Deposit failed", ErrAmountNotPositive)
	}

	description := req.Description
	if description == "" {
		description = "balance deposit"
	}

	transaction, err := l.ApplyTransaction(ctx, req.UserID, amount, models.TransactionTypeDeposit, description, nil)
	if err != nil {
		return nil, NewBusinessError("DEPOSIT_FAILED", "Deposit failed", err)
	}

	return &dto.LedgerMutationResponse{
		TransactionUUID: transaction.UUID.String(),
		BalanceAfter:    transaction.BalanceAfter.String(),
	}, nil
}

// AdminAdjust applies a signed manual correction with a mandatory reason
func (l *LedgerFlowImpl) AdminAdjust(ctx context.Context, req *dto.AdminAdjustRequest, metadata *ClientMetadata) (*dto.LedgerMutationResponse, error) {
	if req.Reason == "" {
		return nil, NewBusinessError("ADJUSTMENT_FAILED", "Adjustment failed", ErrReasonRequired)
	}

	if _, err := getUser(ctx, l.userRepo, req.UserID); err != nil {
		return nil, NewBusinessError("ADJUSTMENT_FAILED", "Adjustment failed", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsZero() {
		return nil, NewBusinessError("ADJUSTMENT_FAILED", "Adjustment failed", ErrAmountNotPositive)
	}

	// Adjustments carry their sign in the amount itself; the ledger stores the
	// signed value so conservation holds over replays
	transaction, err := l.applySignedAdjustment(ctx, req.UserID, amount, fmt.Sprintf("manual adjustment: %s", req.Reason))
	if err != nil {
		return nil, NewBusinessError("ADJUSTMENT_FAILED", "Adjustment failed", err)
	}

	return &dto.LedgerMutationResponse{
		TransactionUUID: transaction.UUID.String(),
		BalanceAfter:    transaction.BalanceAfter.String(),
	}, nil
}

// applySignedAdjustment is ApplyTransaction for signed adjustment amounts
func (l *LedgerFlowImpl) applySignedAdjustment(ctx context.Context, userID uint, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if _, err := l.balanceRepo.EnsureForUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure balance row: %w", err)
	}

	balanceAfter, err := l.balanceRepo.ApplyDelta(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerRetryable, err)
	}

	transaction := &models.Transaction{
		UserID:       userID,
		Type:         models.TransactionTypeAdjustment,
		Amount:       amount,
		Description:  description,
		BalanceAfter: balanceAfter,
		CreatedAt:    utils.UTCNow(),
	}

	if err := l.transactionRepo.Save(ctx, transaction); err != nil {
		return nil, l.compensate(ctx, userID, amount, err)
	}

	ledgerTransactionsTotal.WithLabelValues(string(models.TransactionTypeAdjustment)).Inc()
	return transaction, nil
}

// UpdateThresholds changes the user's alert thresholds
func (l *LedgerFlowImpl) UpdateThresholds(ctx context.Context, req *dto.UpdateThresholdsRequest, metadata *ClientMetadata) error {
	if _, err := getUser(ctx, l.userRepo, req.UserID); err != nil {
		return NewBusinessError("UPDATE_THRESHOLDS_FAILED", "Update thresholds failed", err)
	}

	warning, err := decimal.NewFromString(req.WarningThreshold)
	if err != nil {
		return NewBusinessError("UPDATE_THRESHOLDS_FAILED", "Update thresholds failed", ErrAmountNotPositive)
	}
	critical, err := decimal.NewFromString(req.CriticalThreshold)
	if err != nil {
		return NewBusinessError("UPDATE_THRESHOLDS_FAILED", "Update thresholds failed", ErrAmountNotPositive)
	}
	if critical.GreaterThan(warning) {
		return NewBusinessError("UPDATE_THRESHOLDS_FAILED", "Update thresholds failed", ErrThresholdsInverted)
	}

	if _, err := l.balanceRepo.EnsureForUser(ctx, req.UserID); err != nil {
		return NewBusinessError("UPDATE_THRESHOLDS_FAILED", "Update thresholds failed", err)
	}

	if err := l.balanceRepo.UpdateThresholds(ctx, req.UserID, warning, critical); err != nil {
		return NewBusinessError("UPDATE_THRESHOLDS_FAILED", "Update thresholds failed", err)
	}
	return nil
}
