package businessflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallCost(t *testing.T) {
	tests := []struct {
		name          string
		durationSec   int
		ratePerMinute string
		expected      string
	}{
		{
			name:          "90 seconds at 0.50 per minute",
			durationSec:   90,
			ratePerMinute: "0.50",
			expected:      "0.75",
		},
		{
			name:          "300 seconds at 0.20 per minute",
			durationSec:   300,
			ratePerMinute: "0.20",
			expected:      "1",
		},
		{
			name:          "zero duration costs nothing",
			durationSec:   0,
			ratePerMinute: "0.50",
			expected:      "0",
		},
		{
			name:          "negative duration costs nothing",
			durationSec:   -30,
			ratePerMinute: "0.50",
			expected:      "0",
		},
		{
			name:          "sub-minute fraction rounds to four places",
			durationSec:   1,
			ratePerMinute: "0.50",
			expected:      "0.0083",
		},
		{
			name:          "exact minute",
			durationSec:   60,
			ratePerMinute: "1.25",
			expected:      "1.25",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := decimal.RequireFromString(tt.ratePerMinute)
			cost := CallCost(tt.durationSec, rate)
			assert.True(t, cost.Equal(decimal.RequireFromString(tt.expected)),
				"expected %s, got %s", tt.expected, cost)
		})
	}
}

func TestCallCostIsNonDecreasingInDuration(t *testing.T) {
	rate := decimal.RequireFromString("0.37")
	previous := decimal.Zero
	for duration := 0; duration <= 600; duration += 7 {
		cost := CallCost(duration, rate)
		assert.True(t, cost.GreaterThanOrEqual(previous),
			"cost decreased at duration %d: %s < %s", duration, cost, previous)
		previous = cost
	}
}

func TestRecordingProberRecoverDuration(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		expected    int
		expectError bool
	}{
		{
			name: "duration header present",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Recording-Duration", "142")
				w.WriteHeader(http.StatusOK)
			},
			expected: 142,
		},
		{
			name: "fallback content duration header",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Duration", "61.8")
				w.WriteHeader(http.StatusOK)
			},
			expected: 61,
		},
		{
			name: "no duration header",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			expectError: true,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			prober := NewRecordingProber(2 * time.Second)
			duration, err := prober.RecoverDuration(context.Background(), server.URL)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, IsDurationRecovery(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, duration)
		})
	}
}

func TestRecordingProberProbesWithHead(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Header().Set("X-Recording-Duration", "10")
	}))
	defer server.Close()

	prober := NewRecordingProber(time.Second)
	_, err := prober.RecoverDuration(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.MethodHead, method)
}
