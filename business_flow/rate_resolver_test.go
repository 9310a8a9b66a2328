package businessflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vocalix/vocalix/models"
)

func testAssignment(id uint, telephonyAgentID string, primary bool, assignedAt time.Time, rate string) *models.AgentAssignment {
	return &models.AgentAssignment{
		ID:               id,
		UserID:           1,
		AgentID:          id,
		TelephonyAgentID: telephonyAgentID,
		RatePerMinute:    decimal.RequireFromString(rate),
		IsPrimary:        primary,
		AssignedAt:       assignedAt,
	}
}

func TestSelectAgentForCall(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := models.CallEvent{
		CallID:           "call-1",
		UserID:           1,
		TelephonyAgentID: "tel-agent-b",
		DurationSec:      90,
		CallStatus:       models.CallStatusCompleted,
		Timestamp:        base,
	}

	tests := []struct {
		name        string
		assignments []*models.AgentAssignment
		expectedID  uint
		expectError bool
	}{
		{
			name:        "no assignments",
			assignments: nil,
			expectError: true,
		},
		{
			name: "exact telephony agent match wins over primary",
			assignments: []*models.AgentAssignment{
				testAssignment(1, "tel-agent-a", true, base.Add(-time.Hour), "0.50"),
				testAssignment(2, "tel-agent-b", false, base.Add(-2*time.Hour), "0.30"),
			},
			expectedID: 2,
		},
		{
			name: "primary wins when no exact match",
			assignments: []*models.AgentAssignment{
				testAssignment(1, "tel-agent-x", false, base.Add(-time.Hour), "0.50"),
				testAssignment(2, "tel-agent-y", true, base.Add(-3*time.Hour), "0.30"),
			},
			expectedID: 2,
		},
		{
			name: "most recent assignment when neither matches nor primary",
			assignments: []*models.AgentAssignment{
				testAssignment(1, "tel-agent-x", false, base.Add(-time.Hour), "0.50"),
				testAssignment(2, "tel-agent-y", false, base.Add(-30*time.Minute), "0.20"),
			},
			expectedID: 2,
		},
		{
			name: "single assignment",
			assignments: []*models.AgentAssignment{
				testAssignment(7, "tel-agent-z", false, base, "1.00"),
			},
			expectedID: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, err := SelectAgentForCall(event, tt.assignments)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, IsNoAgentAssignments(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, selected)
			assert.Equal(t, tt.expectedID, selected.ID)
		})
	}
}

func TestSelectAgentForCallIsDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := models.CallEvent{
		CallID:           "call-2",
		UserID:           1,
		TelephonyAgentID: "tel-agent-none",
		DurationSec:      60,
		CallStatus:       models.CallStatusCompleted,
		Timestamp:        base,
	}

	forward := []*models.AgentAssignment{
		testAssignment(1, "tel-agent-x", false, base.Add(-time.Hour), "0.50"),
		testAssignment(2, "tel-agent-y", false, base.Add(-30*time.Minute), "0.20"),
		testAssignment(3, "tel-agent-z", false, base.Add(-2*time.Hour), "0.80"),
	}
	reversed := []*models.AgentAssignment{forward[2], forward[1], forward[0]}

	first, err := SelectAgentForCall(event, forward)
	require.NoError(t, err)
	second, err := SelectAgentForCall(event, reversed)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, uint(2), first.ID)

	// Caller's slice must not be reordered
	assert.Equal(t, uint(1), forward[0].ID)
	assert.Equal(t, uint(3), forward[2].ID)
}

func TestSelectAgentForCallTieBreaksOnID(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := models.CallEvent{
		CallID:           "call-3",
		UserID:           1,
		TelephonyAgentID: "tel-agent-none",
		CallStatus:       models.CallStatusCompleted,
		Timestamp:        base,
	}

	assignments := []*models.AgentAssignment{
		testAssignment(4, "tel-agent-x", false, base, "0.50"),
		testAssignment(9, "tel-agent-y", false, base, "0.20"),
	}

	selected, err := SelectAgentForCall(event, assignments)
	require.NoError(t, err)
	assert.Equal(t, uint(9), selected.ID)
}
