package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vocalix/vocalix/models"
)

type recordedAlert struct {
	userID  uint
	status  models.BalanceStatus
	balance decimal.Decimal
}

type fakeSink struct {
	alerts []recordedAlert
}

func (f *fakeSink) NotifyLowBalance(ctx context.Context, user models.User, status models.BalanceStatus, balance decimal.Decimal) error {
	f.alerts = append(f.alerts, recordedAlert{userID: user.ID, status: status, balance: balance})
	return nil
}

func testBalance(amount string) models.Balance {
	return models.Balance{
		UserID:            1,
		CurrentBalance:    decimal.RequireFromString(amount),
		WarningThreshold:  decimal.RequireFromString("10"),
		CriticalThreshold: decimal.RequireFromString("5"),
	}
}

func TestBalanceNotifierFiresOnWorseningTransition(t *testing.T) {
	sink := &fakeSink{}
	notifier := NewBalanceNotifierFlow(sink, nil, "test:", 30*time.Minute, nil)
	user := models.User{ID: 1}
	ctx := context.Background()

	// Healthy baseline
	require.NoError(t, notifier.Observe(ctx, user, testBalance("12")))
	assert.Empty(t, sink.alerts)

	// Crossing into warning fires once
	require.NoError(t, notifier.Observe(ctx, user, testBalance("9")))
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, models.BalanceStatusWarning, sink.alerts[0].status)

	// Still warning, no repeat
	require.NoError(t, notifier.Observe(ctx, user, testBalance("8.99")))
	assert.Len(t, sink.alerts, 1)

	// Crossing into critical fires again
	require.NoError(t, notifier.Observe(ctx, user, testBalance("4")))
	require.Len(t, sink.alerts, 2)
	assert.Equal(t, models.BalanceStatusCritical, sink.alerts[1].status)

	// Hitting zero fires the empty alert
	require.NoError(t, notifier.Observe(ctx, user, testBalance("0")))
	require.Len(t, sink.alerts, 3)
	assert.Equal(t, models.BalanceStatusEmpty, sink.alerts[2].status)
}

func TestBalanceNotifierDoesNotFireOnRecovery(t *testing.T) {
	sink := &fakeSink{}
	notifier := NewBalanceNotifierFlow(sink, nil, "test:", 30*time.Minute, nil)
	user := models.User{ID: 1}
	ctx := context.Background()

	require.NoError(t, notifier.Observe(ctx, user, testBalance("4")))
	require.Len(t, sink.alerts, 1)

	// Top-up back to healthy, then nothing on the way up
	require.NoError(t, notifier.Observe(ctx, user, testBalance("50")))
	assert.Len(t, sink.alerts, 1)
}

func TestBalanceNotifierDebouncesRepeatCrossings(t *testing.T) {
	sink := &fakeSink{}
	notifier := NewBalanceNotifierFlow(sink, nil, "test:", time.Hour, nil)
	user := models.User{ID: 1}
	ctx := context.Background()

	// warning, recover, warning again inside the debounce window
	require.NoError(t, notifier.Observe(ctx, user, testBalance("9")))
	require.NoError(t, notifier.Observe(ctx, user, testBalance("20")))
	require.NoError(t, notifier.Observe(ctx, user, testBalance("9")))

	assert.Len(t, sink.alerts, 1)
}

func TestBalanceNotifierFirstObservationInBadBucketAlerts(t *testing.T) {
	sink := &fakeSink{}
	notifier := NewBalanceNotifierFlow(sink, nil, "test:", 30*time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, notifier.Observe(ctx, models.User{ID: 7}, models.Balance{
		UserID:            7,
		CurrentBalance:    decimal.RequireFromString("2"),
		WarningThreshold:  decimal.RequireFromString("10"),
		CriticalThreshold: decimal.RequireFromString("5"),
	}))
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, uint(7), sink.alerts[0].userID)
	assert.Equal(t, models.BalanceStatusCritical, sink.alerts[0].status)
}

func TestBalanceNotifierTracksUsersIndependently(t *testing.T) {
	sink := &fakeSink{}
	notifier := NewBalanceNotifierFlow(sink, nil, "test:", 30*time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, notifier.Observe(ctx, models.User{ID: 1}, testBalance("9")))
	b2 := testBalance("9")
	b2.UserID = 2
	require.NoError(t, notifier.Observe(ctx, models.User{ID: 2}, b2))

	assert.Len(t, sink.alerts, 2)
}

func TestClassifyBalance(t *testing.T) {
	warning := decimal.RequireFromString("10")
	critical := decimal.RequireFromString("5")

	tests := []struct {
		balance  string
		expected models.BalanceStatus
	}{
		{"25", models.BalanceStatusHealthy},
		{"10.01", models.BalanceStatusHealthy},
		{"10", models.BalanceStatusWarning},
		{"5.01", models.BalanceStatusWarning},
		{"5", models.BalanceStatusCritical},
		{"0.01", models.BalanceStatusCritical},
		{"0", models.BalanceStatusEmpty},
		{"-3", models.BalanceStatusEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.balance, func(t *testing.T) {
			got := models.ClassifyBalance(decimal.RequireFromString(tt.balance), warning, critical)
			assert.Equal(t, tt.expected, got)
		})
	}
}
