package tests

import (
	"log"
	"testing"
	"time"

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

func newProcessorFlow(testDB *testingutil.TestDB) businessflow.BillingProcessorFlow {
	ledger := newLedgerFlow(testDB)
	return businessflow.NewBillingProcessorFlow(
		repository.NewCallEventRepository(testDB.DB),
		repository.NewAgentAssignmentRepository(testDB.DB),
		repository.NewTransactionRepository(testDB.DB),
		ledger,
		nil,
		2*time.Hour,
		500,
		log.Default(),
	)
}

func TestBillingProcessorPass(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		balanceRepo := repository.NewBalanceRepository(testDB.DB)
		transactionRepo := repository.NewTransactionRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		_, err = fixtures.CreateTestBalance(user.ID, 50)
		require.NoError(t, err)

		agent, err := fixtures.CreateTestAgent("agent-main", 0.50)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAssignment(user.ID, agent, true, utils.UTCNow().Add(-24*time.Hour))
		require.NoError(t, err)

		now := utils.UTCNow()
		eventA, err := fixtures.CreateTestCallEvent(user.ID, "agent-main", 90, now.Add(-30*time.Minute))
		require.NoError(t, err)
		eventB, err := fixtures.CreateTestCallEvent(user.ID, "agent-main", 300, now.Add(-20*time.Minute))
		require.NoError(t, err)
		// zero-duration with no recording url settles at zero cost
		zeroEvent, err := fixtures.CreateTestCallEvent(user.ID, "agent-main", 0, now.Add(-10*time.Minute))
		require.NoError(t, err)

		processor := newProcessorFlow(testDB)

		t.Run("FirstPassBillsEverything", func(t *testing.T) {
			result, err := processor.ProcessRecentCalls(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, result.Fetched)
			assert.Equal(t, 2, result.Billed)
			assert.Equal(t, 1, result.ZeroCost)
			assert.Zero(t, result.Failed)

			// 90s at 0.50/min = 0.75, 300s at 0.50/min = 2.50
			balance, err := balanceRepo.ByUserID(ctx, user.ID)
			require.NoError(t, err)
			assert.True(t, balance.CurrentBalance.Equal(decimal.NewFromFloat(46.75)),
				"got %s", balance.CurrentBalance)

			entryA, err := transactionRepo.ByCallIDRef(ctx, eventA.CallID)
			require.NoError(t, err)
			require.NotNil(t, entryA)
			assert.True(t, entryA.Amount.Equal(decimal.NewFromFloat(0.75)))

			entryB, err := transactionRepo.ByCallIDRef(ctx, eventB.CallID)
			require.NoError(t, err)
			require.NotNil(t, entryB)
			assert.True(t, entryB.Amount.Equal(decimal.NewFromFloat(2.5)))

			entryZero, err := transactionRepo.ByCallIDRef(ctx, zeroEvent.CallID)
			require.NoError(t, err)
			assert.Nil(t, entryZero, "zero-cost calls leave no ledger entry")
		})

		t.Run("SecondPassChargesNothing", func(t *testing.T) {
			result, err := processor.ProcessRecentCalls(ctx, user.ID)
			require.NoError(t, err)
			assert.Zero(t, result.Billed)
			assert.Zero(t, result.Failed)

			balance, err := balanceRepo.ByUserID(ctx, user.ID)
			require.NoError(t, err)
			assert.True(t, balance.CurrentBalance.Equal(decimal.NewFromFloat(46.75)))
		})

		t.Run("RestartedProcessorStillChargesNothing", func(t *testing.T) {
			// A fresh instance has an empty session cache, so only the
			// database state protects against double billing
			fresh := newProcessorFlow(testDB)
			result, err := fresh.ProcessRecentCalls(ctx, user.ID)
			require.NoError(t, err)
			assert.Zero(t, result.Billed)
			assert.Equal(t, 2, result.AlreadyBilled)

			balance, err := balanceRepo.ByUserID(ctx, user.ID)
			require.NoError(t, err)
			assert.True(t, balance.CurrentBalance.Equal(decimal.NewFromFloat(46.75)))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestBillingProcessorHoldsWithoutAssignments(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		balanceRepo := repository.NewBalanceRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		_, err = fixtures.CreateTestBalance(user.ID, 50)
		require.NoError(t, err)

		event, err := fixtures.CreateTestCallEvent(user.ID, "agent-unknown", 120, utils.UTCNow().Add(-5*time.Minute))
		require.NoError(t, err)

		processor := newProcessorFlow(testDB)

		result, err := processor.ProcessRecentCalls(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Held)
		assert.Zero(t, result.Billed)

		// nothing charged, event stays pending
		balance, err := balanceRepo.ByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, balance.CurrentBalance.Equal(decimal.NewFromInt(50)))

		// once an operator assigns an agent the held call gets billed
		agent, err := fixtures.CreateTestAgent("agent-late", 1.00)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAssignment(user.ID, agent, true, utils.UTCNow())
		require.NoError(t, err)

		result, err = processor.ProcessRecentCalls(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Billed)

		transactionRepo := repository.NewTransactionRepository(testDB.DB)
		entry, err := transactionRepo.ByCallIDRef(ctx, event.CallID)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.True(t, entry.Amount.Equal(decimal.NewFromInt(2)), "120s at 1.00/min")

		return nil
	})
	require.NoError(t, err)
}

func TestBillingProcessorSkipsUnbillableStatuses(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent("agent-x", 0.50)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAssignment(user.ID, agent, true, utils.UTCNow())
		require.NoError(t, err)

		failed := &models.CallEvent{
			CallID:           "call-failed-1",
			UserID:           user.ID,
			TelephonyAgentID: "agent-x",
			DurationSec:      60,
			CallStatus:       models.CallStatus("failed"),
			Timestamp:        utils.UTCNow().Add(-time.Minute),
		}
		require.NoError(t, testDB.DB.Create(failed).Error)

		processor := newProcessorFlow(testDB)
		result, err := processor.ProcessRecentCalls(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Fetched)
		assert.Zero(t, result.Billed)

		transactionRepo := repository.NewTransactionRepository(testDB.DB)
		entry, err := transactionRepo.ByCallIDRef(ctx, "call-failed-1")
		require.NoError(t, err)
		assert.Nil(t, entry)

		return nil
	})
	require.NoError(t, err)
}

func TestCallHistoryFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		_, err = fixtures.CreateTestBalance(user.ID, 20)
		require.NoError(t, err)
		agent, err := fixtures.CreateTestAgent("agent-h", 0.50)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAssignment(user.ID, agent, true, utils.UTCNow().Add(-time.Hour))
		require.NoError(t, err)

		billedEvent, err := fixtures.CreateTestCallEvent(user.ID, "agent-h", 60, utils.UTCNow().Add(-15*time.Minute))
		require.NoError(t, err)
		pendingEvent, err := fixtures.CreateTestCallEvent(user.ID, "agent-h", 0, utils.UTCNow().Add(-5*time.Minute))
		require.NoError(t, err)

		// bill the first call through the processor
		processor := newProcessorFlow(testDB)
		_, err = processor.ProcessRecentCalls(ctx, user.ID)
		require.NoError(t, err)

		historyFlow := businessflow.NewCallHistoryFlow(
			repository.NewUserRepository(testDB.DB),
			repository.NewCallEventRepository(testDB.DB),
			repository.NewTransactionRepository(testDB.DB),
			repository.NewAgentRepository(testDB.DB),
			2*time.Hour,
		)

		resp, err := historyFlow.GetCallHistory(ctx, &dto.GetCallHistoryRequest{UserID: user.ID, Limit: 50}, metadata)
		require.NoError(t, err)
		require.Len(t, resp.Items, 2)

		byCallID := make(map[string]dto.CallHistoryItem)
		for _, item := range resp.Items {
			byCallID[item.CallID] = item
		}

		billedItem := byCallID[billedEvent.CallID]
		assert.True(t, billedItem.Billed)
		require.NotNil(t, billedItem.Cost)
		assert.Equal(t, "0.5", *billedItem.Cost)
		require.NotNil(t, billedItem.AgentName)
		assert.Equal(t, "Agent agent-h", *billedItem.AgentName)

		pendingItem := byCallID[pendingEvent.CallID]
		assert.False(t, pendingItem.Billed)
		assert.Nil(t, pendingItem.Cost)

		return nil
	})
	require.NoError(t, err)
}
