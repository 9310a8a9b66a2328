package businessflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vocalix/vocalix/models"
	"github.com/vocalix/vocalix/repository"
)

// stubBalanceRepo tracks the balance in memory and can be told to start
// failing deltas after a number of calls, which is how the compensation
// arms of the write path are reached
type stubBalanceRepo struct {
	repository.BalanceRepository
	balance      decimal.Decimal
	deltaCalls   int
	failDeltasAt int // 1-based call number at which ApplyDelta starts failing, 0 = never
}

func (s *stubBalanceRepo) EnsureForUser(ctx context.Context, userID uint) (*models.Balance, error) {
	return &models.Balance{UserID: userID, CurrentBalance: s.balance}, nil
}

func (s *stubBalanceRepo) ApplyDelta(ctx context.Context, userID uint, delta decimal.Decimal) (decimal.Decimal, error) {
	s.deltaCalls++
	if s.failDeltasAt > 0 && s.deltaCalls >= s.failDeltasAt {
		return decimal.Zero, errors.New("write: connection reset by peer")
	}
	s.balance = s.balance.Add(delta)
	return s.balance, nil
}

// stubTransactionRepo fails every insert with a fixed error and serves a
// canned entry for the already-billed lookup
type stubTransactionRepo struct {
	repository.TransactionRepository
	saveErr  error
	existing *models.Transaction
}

func (s *stubTransactionRepo) Save(ctx context.Context, transaction *models.Transaction) error {
	return s.saveErr
}

func (s *stubTransactionRepo) ByCallIDRef(ctx context.Context, callID string) (*models.Transaction, error) {
	return s.existing, nil
}

// wrapInsertError mirrors how the repository layer wraps a failed insert
func wrapInsertError(err error) error {
	return fmt.Errorf("failed to save entity: %w", err)
}

func newStubLedgerFlow(balanceRepo repository.BalanceRepository, transactionRepo repository.TransactionRepository) LedgerFlow {
	return NewLedgerFlow(nil, balanceRepo, transactionRepo, nil, log.New(io.Discard, "", 0))
}

func TestApplyTransactionDuplicateDeductionDetection(t *testing.T) {
	callID := "call-dup-1"
	existing := &models.Transaction{
		UUID:      uuid.New(),
		UserID:    1,
		Type:      models.TransactionTypeDeduction,
		Amount:    decimal.RequireFromString("0.75"),
		CallIDRef: &callID,
	}

	duplicateErrors := map[string]error{
		"translated by gorm":  gorm.ErrDuplicatedKey,
		"raw pgx driver code": &pgconn.PgError{Code: "23505", ConstraintName: "uniq_deduction_call"},
	}

	for name, driverErr := range duplicateErrors {
		t.Run(name, func(t *testing.T) {
			balanceRepo := &stubBalanceRepo{balance: decimal.NewFromInt(10)}
			flow := newStubLedgerFlow(balanceRepo, &stubTransactionRepo{
				saveErr:  wrapInsertError(driverErr),
				existing: existing,
			})

			entry, err := flow.ApplyTransaction(context.Background(), 1,
				decimal.RequireFromString("0.75"), models.TransactionTypeDeduction, "call billing", &callID)

			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, existing.UUID, entry.UUID)

			// the duplicate's delta must be compensated, not left applied
			assert.Equal(t, 2, balanceRepo.deltaCalls)
			assert.True(t, balanceRepo.balance.Equal(decimal.NewFromInt(10)),
				"balance should be back to 10, got %s", balanceRepo.balance)
		})
	}
}

func TestApplyTransactionDuplicateIgnoredForOtherTypes(t *testing.T) {
	callID := "call-dup-2"
	balanceRepo := &stubBalanceRepo{balance: decimal.NewFromInt(10)}
	flow := newStubLedgerFlow(balanceRepo, &stubTransactionRepo{
		saveErr: wrapInsertError(&pgconn.PgError{Code: "23505"}),
	})

	// a unique violation on a non-deduction insert is a plain failure
	_, err := flow.ApplyTransaction(context.Background(), 1,
		decimal.NewFromInt(5), models.TransactionTypeDeposit, "deposit", &callID)

	require.Error(t, err)
	assert.True(t, IsLedgerRetryable(err))
	assert.True(t, balanceRepo.balance.Equal(decimal.NewFromInt(10)))
}

func TestApplyTransactionCompensatesFailedInsert(t *testing.T) {
	callID := "call-fail-1"
	balanceRepo := &stubBalanceRepo{balance: decimal.NewFromInt(10)}
	flow := newStubLedgerFlow(balanceRepo, &stubTransactionRepo{
		saveErr: wrapInsertError(errors.New("deadlock detected")),
	})

	_, err := flow.ApplyTransaction(context.Background(), 1,
		decimal.RequireFromString("2.50"), models.TransactionTypeDeduction, "call billing", &callID)

	require.Error(t, err)
	assert.True(t, IsLedgerRetryable(err))
	assert.False(t, IsLedgerInconsistent(err))

	// deduction delta applied then reverted
	assert.Equal(t, 2, balanceRepo.deltaCalls)
	assert.True(t, balanceRepo.balance.Equal(decimal.NewFromInt(10)),
		"balance should be restored to 10, got %s", balanceRepo.balance)
}

func TestApplyTransactionFatalWhenCompensationFails(t *testing.T) {
	callID := "call-fail-2"

	t.Run("AfterPlainInsertFailure", func(t *testing.T) {
		balanceRepo := &stubBalanceRepo{balance: decimal.NewFromInt(10), failDeltasAt: 2}
		flow := newStubLedgerFlow(balanceRepo, &stubTransactionRepo{
			saveErr: wrapInsertError(errors.New("deadlock detected")),
		})

		_, err := flow.ApplyTransaction(context.Background(), 1,
			decimal.NewFromInt(1), models.TransactionTypeDeduction, "call billing", &callID)

		require.Error(t, err)
		assert.True(t, IsLedgerInconsistent(err))
		assert.False(t, IsLedgerRetryable(err), "an unreconciled balance must never be retried")
	})

	t.Run("AfterDuplicateDeduction", func(t *testing.T) {
		balanceRepo := &stubBalanceRepo{balance: decimal.NewFromInt(10), failDeltasAt: 2}
		flow := newStubLedgerFlow(balanceRepo, &stubTransactionRepo{
			saveErr: wrapInsertError(&pgconn.PgError{Code: "23505", ConstraintName: "uniq_deduction_call"}),
		})

		_, err := flow.ApplyTransaction(context.Background(), 1,
			decimal.NewFromInt(1), models.TransactionTypeDeduction, "call billing", &callID)

		require.Error(t, err)
		assert.True(t, IsLedgerInconsistent(err))
	})
}
