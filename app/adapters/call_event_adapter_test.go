package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vocalix/vocalix/models"
)

func TestNormalizeCallEvent(t *testing.T) {
	tests := []struct {
		name             string
		raw              map[string]any
		expectedCallID   string
		expectedAgentID  string
		expectedDuration int
		expectedStatus   models.CallStatus
		expectError      bool
	}{
		{
			name: "canonical shape",
			raw: map[string]any{
				"call_id":      "call-1",
				"agent_id":     "agent-a",
				"duration_sec": float64(90),
				"call_status":  "completed",
			},
			expectedCallID:   "call-1",
			expectedAgentID:  "agent-a",
			expectedDuration: 90,
			expectedStatus:   models.CallStatusCompleted,
		},
		{
			name: "camel case ids and millisecond duration",
			raw: map[string]any{
				"callId":      "call-2",
				"agentId":     "agent-b",
				"duration_ms": float64(90000),
				"status":      "ended",
			},
			expectedCallID:   "call-2",
			expectedAgentID:  "agent-b",
			expectedDuration: 90,
			expectedStatus:   models.CallStatusEnded,
		},
		{
			name: "duration as numeric string",
			raw: map[string]any{
				"call_uuid": "call-3",
				"agent_id":  "agent-c",
				"duration":  "45",
				"state":     "finished",
			},
			expectedCallID:   "call-3",
			expectedAgentID:  "agent-c",
			expectedDuration: 45,
			expectedStatus:   models.CallStatusFinished,
		},
		{
			name: "assistant id variant",
			raw: map[string]any{
				"id":               "call-4",
				"assistant_id":     "agent-d",
				"duration_seconds": float64(12),
				"call_status":      "in_progress",
			},
			expectedCallID:   "call-4",
			expectedAgentID:  "agent-d",
			expectedDuration: 12,
			expectedStatus:   models.CallStatusInProgress,
		},
		{
			name: "missing duration defaults to zero",
			raw: map[string]any{
				"call_id":     "call-5",
				"agent_id":    "agent-e",
				"call_status": "completed",
			},
			expectedCallID:   "call-5",
			expectedAgentID:  "agent-e",
			expectedDuration: 0,
			expectedStatus:   models.CallStatusCompleted,
		},
		{
			name: "negative duration ignored",
			raw: map[string]any{
				"call_id":      "call-6",
				"agent_id":     "agent-f",
				"duration_sec": float64(-10),
				"call_status":  "completed",
			},
			expectedCallID:   "call-6",
			expectedAgentID:  "agent-f",
			expectedDuration: 0,
			expectedStatus:   models.CallStatusCompleted,
		},
		{
			name:        "missing call id rejected",
			raw:         map[string]any{"agent_id": "agent-g", "duration_sec": float64(30)},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := NormalizeCallEvent(tt.raw, 42)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCallID, event.CallID)
			assert.Equal(t, uint(42), event.UserID)
			assert.Equal(t, tt.expectedAgentID, event.TelephonyAgentID)
			assert.Equal(t, tt.expectedDuration, event.DurationSec)
			assert.Equal(t, tt.expectedStatus, event.CallStatus)
		})
	}
}

func TestNormalizeCallEventTimestamps(t *testing.T) {
	expected := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  map[string]any
	}{
		{
			name: "rfc3339 string",
			raw:  map[string]any{"call_id": "c", "timestamp": "2026-03-01T12:30:00Z"},
		},
		{
			name: "started_at variant",
			raw:  map[string]any{"call_id": "c", "started_at": "2026-03-01T12:30:00Z"},
		},
		{
			name: "unix seconds",
			raw:  map[string]any{"call_id": "c", "timestamp": float64(expected.Unix())},
		},
		{
			name: "unix milliseconds",
			raw:  map[string]any{"call_id": "c", "timestamp": float64(expected.UnixMilli())},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := NormalizeCallEvent(tt.raw, 1)
			require.NoError(t, err)
			assert.True(t, event.Timestamp.Equal(expected), "got %s", event.Timestamp)
		})
	}
}

func TestNormalizeCallEventJSON(t *testing.T) {
	payload := []byte(`{"call_id":"call-9","agent_id":"agent-z","duration_ms":150000,"call_status":"terminated","recording_url":"https://cdn.example.com/rec/call-9.wav"}`)

	event, err := NormalizeCallEventJSON(payload, 7)
	require.NoError(t, err)
	assert.Equal(t, "call-9", event.CallID)
	assert.Equal(t, 150, event.DurationSec)
	assert.Equal(t, models.CallStatusTerminated, event.CallStatus)
	require.NotNil(t, event.RecordingURL)
	assert.Equal(t, "https://cdn.example.com/rec/call-9.wav", *event.RecordingURL)

	_, err = NormalizeCallEventJSON([]byte("not json"), 7)
	assert.Error(t, err)
}
