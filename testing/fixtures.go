// Package testing provides test utilities and database setup for testing the billing system
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vocalix/vocalix/models"
	"github.com/vocalix/vocalix/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user with a unique email
func (tf *TestFixtures) CreateTestUser() (*models.User, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	user := &models.User{
		UUID:     uuid.New(),
		Email:    fmt.Sprintf("jane.doe.%s@example.com", randomDigits),
		Mobile:   utils.ToPtr(fmt.Sprintf("+1415%s", randomDigits[:7])),
		FullName: "Jane Doe",
		IsActive: true,
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestBalance creates a balance row for the user with default thresholds
func (tf *TestFixtures) CreateTestBalance(userID uint, current float64) (*models.Balance, error) {
	balance := &models.Balance{
		UserID:            userID,
		CurrentBalance:    decimal.NewFromFloat(current),
		WarningThreshold:  decimal.NewFromFloat(utils.DefaultWarningThreshold),
		CriticalThreshold: decimal.NewFromFloat(utils.DefaultCriticalThreshold),
	}

	if err := tf.DB.DB.Create(balance).Error; err != nil {
		return nil, fmt.Errorf("failed to create test balance: %w", err)
	}

	return balance, nil
}

// CreateTestAgent creates an agent with the given provider identifier and per-minute rate
func (tf *TestFixtures) CreateTestAgent(telephonyAgentID string, ratePerMinute float64) (*models.Agent, error) {
	agent := &models.Agent{
		UUID:             uuid.New(),
		Name:             fmt.Sprintf("Agent %s", telephonyAgentID),
		TelephonyAgentID: telephonyAgentID,
		RatePerMinute:    decimal.NewFromFloat(ratePerMinute),
	}

	if err := tf.DB.DB.Create(agent).Error; err != nil {
		return nil, fmt.Errorf("failed to create test agent: %w", err)
	}

	return agent, nil
}

// CreateTestAssignment links a user to an agent with a denormalized rate
func (tf *TestFixtures) CreateTestAssignment(userID uint, agent *models.Agent, isPrimary bool, assignedAt time.Time) (*models.AgentAssignment, error) {
	assignment := &models.AgentAssignment{
		UserID:           userID,
		AgentID:          agent.ID,
		TelephonyAgentID: agent.TelephonyAgentID,
		RatePerMinute:    agent.RatePerMinute,
		IsPrimary:        isPrimary,
		AssignedAt:       assignedAt,
	}

	if err := tf.DB.DB.Create(assignment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test assignment: %w", err)
	}

	return assignment, nil
}

// CreateTestCallEvent creates a completed call event for the user
func (tf *TestFixtures) CreateTestCallEvent(userID uint, telephonyAgentID string, durationSec int, timestamp time.Time) (*models.CallEvent, error) {
	event := &models.CallEvent{
		CallID:           fmt.Sprintf("call-%s", uuid.NewString()),
		UserID:           userID,
		TelephonyAgentID: telephonyAgentID,
		DurationSec:      durationSec,
		CallStatus:       models.CallStatusCompleted,
		Timestamp:        timestamp,
	}

	if err := tf.DB.DB.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create test call event: %w", err)
	}

	return event, nil
}

// CreateTestDeposit records a deposit entry directly, bypassing the ledger flow
func (tf *TestFixtures) CreateTestDeposit(userID uint, amount float64, balanceAfter float64) (*models.Transaction, error) {
	txn := &models.Transaction{
		UUID:         uuid.New(),
		UserID:       userID,
		Type:         models.TransactionTypeDeposit,
		Amount:       decimal.NewFromFloat(amount),
		Description:  "test deposit",
		BalanceAfter: decimal.NewFromFloat(balanceAfter),
	}

	if err := tf.DB.DB.Create(txn).Error; err != nil {
		return nil, fmt.Errorf("failed to create test deposit: %w", err)
	}

	return txn, nil
}
