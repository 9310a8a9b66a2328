package tests

import (
	"log"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vocalix/vocalix/app/dto"
	businessflow "github.com/vocalix/vocalix/business_flow"
	"github.com/vocalix/vocalix/models"
	"github.com/vocalix/vocalix/repository"
	testingutil "github.com/vocalix/vocalix/testing"
	"github.com/vocalix/vocalix/utils"
)

func newLedgerFlow(testDB *testingutil.TestDB) businessflow.LedgerFlow {
	return businessflow.NewLedgerFlow(
		repository.NewUserRepository(testDB.DB),
		repository.NewBalanceRepository(testDB.DB),
		repository.NewTransactionRepository(testDB.DB),
		testDB.DB,
		log.Default(),
	)
}

func TestLedgerApplyTransaction(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newLedgerFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		balanceRepo := repository.NewBalanceRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		t.Run("DepositCreditsAndRecords", func(t *testing.T) {
			txn, err := flow.ApplyTransaction(ctx, user.ID, decimal.NewFromInt(20), models.TransactionTypeDeposit, "initial deposit", nil)
			require.NoError(t, err)
			assert.True(t, txn.BalanceAfter.Equal(decimal.NewFromInt(20)))

			balance, err := balanceRepo.ByUserID(ctx, user.ID)
			require.NoError(t, err)
			assert.True(t, balance.CurrentBalance.Equal(decimal.NewFromInt(20)))
		})

		t.Run("DeductionDebits", func(t *testing.T) {
			txn, err := flow.ApplyTransaction(ctx, user.ID, decimal.NewFromFloat(0.75), models.TransactionTypeDeduction, "call charge", utils.ToPtr("call-1"))
			require.NoError(t, err)
			assert.True(t, txn.BalanceAfter.Equal(decimal.NewFromFloat(19.25)))
		})

		t.Run("DuplicateDeductionReturnsExistingEntry", func(t *testing.T) {
			first, err := flow.ApplyTransaction(ctx, user.ID, decimal.NewFromFloat(0.50), models.TransactionTypeDeduction, "call charge", utils.ToPtr("call-2"))
			require.NoError(t, err)

			second, err := flow.ApplyTransaction(ctx, user.ID, decimal.NewFromFloat(0.50), models.TransactionTypeDeduction, "call charge", utils.ToPtr("call-2"))
			require.NoError(t, err)
			assert.Equal(t, first.UUID, second.UUID)

			// balance charged exactly once: 19.25 - 0.50
			balance, err := balanceRepo.ByUserID(ctx, user.ID)
			require.NoError(t, err)
			assert.True(t, balance.CurrentBalance.Equal(decimal.NewFromFloat(18.75)),
				"got %s", balance.CurrentBalance)
		})

		t.Run("ConcurrentDeductionsOfSameCallChargeOnce", func(t *testing.T) {
			var wg sync.WaitGroup
			results := make(chan *models.Transaction, 10)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					txn, err := flow.ApplyTransaction(ctx, user.ID, decimal.NewFromFloat(1.25), models.TransactionTypeDeduction, "call charge", utils.ToPtr("call-race"))
					assert.NoError(t, err)
					results <- txn
				}()
			}
			wg.Wait()
			close(results)

			var uuids = make(map[string]bool)
			for txn := range results {
				require.NotNil(t, txn)
				uuids[txn.UUID.String()] = true
			}
			assert.Len(t, uuids, 1, "all callers must observe the same entry")

			// 18.75 - 1.25, charged exactly once
			balance, err := balanceRepo.ByUserID(ctx, user.ID)
			require.NoError(t, err)
			assert.True(t, balance.CurrentBalance.Equal(decimal.NewFromFloat(17.50)),
				"got %s", balance.CurrentBalance)
		})

		t.Run("DeductionMayDriveBalanceNegative", func(t *testing.T) {
			// Post-call billing never refuses a charge for lack of funds
			txn, err := flow.ApplyTransaction(ctx, user.ID, decimal.NewFromInt(100), models.TransactionTypeDeduction, "long call", utils.ToPtr("call-3"))
			require.NoError(t, err)
			assert.True(t, txn.BalanceAfter.IsNegative())
		})

		t.Run("NegativeAmountRejected", func(t *testing.T) {
			_, err := flow.ApplyTransaction(ctx, user.ID, decimal.NewFromInt(-5), models.TransactionTypeDeposit, "bad", nil)
			assert.ErrorIs(t, err, businessflow.ErrAmountNotPositive)
		})

		t.Run("BalanceMatchesLedgerReplay", func(t *testing.T) {
			transactionRepo := repository.NewTransactionRepository(testDB.DB)
			entries, err := transactionRepo.ListRecent(ctx, user.ID, 1000)
			require.NoError(t, err)

			replayed := decimal.Zero
			for _, entry := range entries {
				if entry.Type == models.TransactionTypeAdjustment {
					replayed = replayed.Add(entry.Amount)
				} else {
					replayed = replayed.Add(entry.Type.Signed(entry.Amount))
				}
			}

			balance, err := balanceRepo.ByUserID(ctx, user.ID)
			require.NoError(t, err)
			assert.True(t, balance.CurrentBalance.Equal(replayed),
				"balance %s diverged from ledger replay %s", balance.CurrentBalance, replayed)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLedgerDepositAndAdjust(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newLedgerFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		t.Run("Deposit", func(t *testing.T) {
			resp, err := flow.Deposit(ctx, &dto.DepositRequest{
				UserID: user.ID,
				Amount: "30",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "30", resp.BalanceAfter)
			assert.NotEmpty(t, resp.TransactionUUID)
		})

		t.Run("DepositRejectsNonPositive", func(t *testing.T) {
			_, err := flow.Deposit(ctx, &dto.DepositRequest{UserID: user.ID, Amount: "0"}, metadata)
			assert.True(t, businessflow.IsAmountNotPositive(err))

			_, err = flow.Deposit(ctx, &dto.DepositRequest{UserID: user.ID, Amount: "-10"}, metadata)
			assert.True(t, businessflow.IsAmountNotPositive(err))

			_, err = flow.Deposit(ctx, &dto.DepositRequest{UserID: user.ID, Amount: "abc"}, metadata)
			assert.True(t, businessflow.IsAmountNotPositive(err))
		})

		t.Run("DepositUnknownUser", func(t *testing.T) {
			_, err := flow.Deposit(ctx, &dto.DepositRequest{UserID: 999999, Amount: "10"}, metadata)
			assert.True(t, businessflow.IsUserNotFound(err))
		})

		t.Run("AdjustmentCredits", func(t *testing.T) {
			resp, err := flow.AdminAdjust(ctx, &dto.AdminAdjustRequest{
				UserID: user.ID,
				Amount: "50",
				Reason: "service credit for outage",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "80", resp.BalanceAfter)
		})

		t.Run("AdjustmentDebits", func(t *testing.T) {
			resp, err := flow.AdminAdjust(ctx, &dto.AdminAdjustRequest{
				UserID: user.ID,
				Amount: "-2.50",
				Reason: "correct double credit",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "77.5", resp.BalanceAfter)
		})

		t.Run("AdjustmentRequiresReason", func(t *testing.T) {
			_, err := flow.AdminAdjust(ctx, &dto.AdminAdjustRequest{
				UserID: user.ID,
				Amount: "5",
			}, metadata)
			assert.True(t, businessflow.IsReasonRequired(err))
		})

		t.Run("AdjustmentRejectsZero", func(t *testing.T) {
			_, err := flow.AdminAdjust(ctx, &dto.AdminAdjustRequest{
				UserID: user.ID,
				Amount: "0",
				Reason: "noop",
			}, metadata)
			assert.True(t, businessflow.IsAmountNotPositive(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLedgerReads(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newLedgerFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		_, err = flow.Deposit(ctx, &dto.DepositRequest{UserID: user.ID, Amount: "12"}, metadata)
		require.NoError(t, err)
		_, err = flow.ApplyTransaction(ctx, user.ID, decimal.NewFromFloat(0.75), models.TransactionTypeDeduction, "call charge", utils.ToPtr("call-r1"))
		require.NoError(t, err)

		t.Run("GetBalanceStats", func(t *testing.T) {
			stats, err := flow.GetBalanceStats(ctx, &dto.GetBalanceStatsRequest{UserID: user.ID}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "11.25", stats.CurrentBalance)
			assert.Equal(t, utils.USDCurrency, stats.Currency)
			assert.Equal(t, string(models.BalanceStatusHealthy), stats.BalanceStatus)
			assert.Equal(t, int64(2), stats.RecentTransactions24h)
			assert.Equal(t, "0.75", stats.TotalSpentToday)
		})

		t.Run("GetRecentTransactionsNewestFirst", func(t *testing.T) {
			resp, err := flow.GetRecentTransactions(ctx, &dto.GetRecentTransactionsRequest{UserID: user.ID, Limit: 10}, metadata)
			require.NoError(t, err)
			require.Len(t, resp.Items, 2)
			assert.Equal(t, int64(2), resp.Total)
			assert.Equal(t, string(models.TransactionTypeDeduction), resp.Items[0].Type)
			assert.Equal(t, "-0.75", resp.Items[0].SignedAmount)
			assert.Equal(t, string(models.TransactionTypeDeposit), resp.Items[1].Type)
		})

		t.Run("CanMakeCallAdmits", func(t *testing.T) {
			resp, err := flow.CanMakeCall(ctx, &dto.CanMakeCallRequest{UserID: user.ID, EstimatedCost: "1.00"}, metadata)
			require.NoError(t, err)
			assert.True(t, resp.CanCall)
		})

		t.Run("CanMakeCallDeniesOnShortfall", func(t *testing.T) {
			resp, err := flow.CanMakeCall(ctx, &dto.CanMakeCallRequest{UserID: user.ID, EstimatedCost: "500"}, metadata)
			require.NoError(t, err)
			assert.False(t, resp.CanCall)
			assert.NotEmpty(t, resp.Message)
		})

		t.Run("CanMakeCallDeniesWhenBlocked", func(t *testing.T) {
			balanceRepo := repository.NewBalanceRepository(testDB.DB)
			require.NoError(t, balanceRepo.SetBlocked(ctx, user.ID, true))
			defer func() {
				require.NoError(t, balanceRepo.SetBlocked(ctx, user.ID, false))
			}()

			resp, err := flow.CanMakeCall(ctx, &dto.CanMakeCallRequest{UserID: user.ID, EstimatedCost: "0.01"}, metadata)
			require.NoError(t, err)
			assert.False(t, resp.CanCall)
			assert.Equal(t, "account is blocked", resp.Message)
		})

		t.Run("UpdateThresholds", func(t *testing.T) {
			err := flow.UpdateThresholds(ctx, &dto.UpdateThresholdsRequest{
				UserID:            user.ID,
				WarningThreshold:  "15",
				CriticalThreshold: "6",
			}, metadata)
			require.NoError(t, err)

			stats, err := flow.GetBalanceStats(ctx, &dto.GetBalanceStatsRequest{UserID: user.ID}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "15", stats.WarningThreshold)
			assert.Equal(t, "6", stats.CriticalThreshold)
		})

		t.Run("UpdateThresholdsRejectsInverted", func(t *testing.T) {
			err := flow.UpdateThresholds(ctx, &dto.UpdateThresholdsRequest{
				UserID:            user.ID,
				WarningThreshold:  "5",
				CriticalThreshold: "10",
			}, metadata)
			assert.True(t, businessflow.IsThresholdsInverted(err))
		})

		t.Run("InactiveUserRejected", func(t *testing.T) {
			inactive, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(&models.User{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

			_, err = flow.GetBalanceStats(ctx, &dto.GetBalanceStatsRequest{UserID: inactive.ID}, metadata)
			assert.True(t, businessflow.IsAccountInactive(err))
		})

		return nil
	})
	require.NoError(t, err)
}
