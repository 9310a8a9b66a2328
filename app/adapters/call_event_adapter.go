// Package adapters provides adapter functions to bridge different layers of the application
package adapters

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/vocalix/vocalix/models"
)

// Call feeds arrive from more than one provider generation and the payloads
// disagree on field names and units. NormalizeCallEvent maps every known
// variant into the internal CallEvent shape before any billing logic sees it.

// durationFields in priority order; the first present and parsable wins
var durationFields = []struct {
	key   string
	scale float64 // multiplier to seconds
}{
	{"duration_sec", 1},
	{"duration_seconds", 1},
	{"duration", 1},
	{"call_duration", 1},
	{"duration_ms", 0.001},
	{"duration_millis", 0.001},
}

var callIDFields = []string{"call_id", "callId", "id", "call_uuid"}

var agentIDFields = []string{"agent_id", "agentId", "assistant_id", "telephony_agent_id"}

var statusFields = []string{"call_status", "status", "state"}

var timestampFields = []string{"timestamp", "started_at", "created_at", "start_time"}

var recordingFields = []string{"recording_url", "recordingUrl", "recording"}

// NormalizeCallEvent converts one raw provider payload into a CallEvent.
// The user ID comes from the feed subscription, never from the payload.
func NormalizeCallEvent(raw map[string]any, userID uint) (*models.CallEvent, error) {
	callID := firstString(raw, callIDFields)
	if callID == "" {
		return nil, fmt.Errorf("call event payload carries no call id")
	}

	event := &models.CallEvent{
		CallID:           callID,
		UserID:           userID,
		TelephonyAgentID: firstString(raw, agentIDFields),
		DurationSec:      extractDurationSec(raw),
		CallStatus:       models.CallStatus(firstString(raw, statusFields)),
		Timestamp:        extractTimestamp(raw),
	}

	if url := firstString(raw, recordingFields); url != "" {
		event.RecordingURL = &url
	}

	return event, nil
}

// NormalizeCallEventJSON decodes and normalizes a raw JSON payload
func NormalizeCallEventJSON(payload []byte, userID uint) (*models.CallEvent, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode call event payload: %w", err)
	}
	return NormalizeCallEvent(raw, userID)
}

// extractDurationSec resolves the duration across naming and unit variants
func extractDurationSec(raw map[string]any) int {
	for _, field := range durationFields {
		value, ok := raw[field.key]
		if !ok {
			continue
		}
		seconds, ok := toFloat(value)
		if !ok || seconds < 0 {
			continue
		}
		return int(seconds * field.scale)
	}
	return 0
}

// extractTimestamp resolves the event time across naming and format variants
func extractTimestamp(raw map[string]any) time.Time {
	for _, key := range timestampFields {
		value, ok := raw[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
				if ts, err := time.Parse(layout, v); err == nil {
					return ts.UTC()
				}
			}
		case float64:
			// Unix seconds, or milliseconds for post-2001 epoch values
			if v > 1e12 {
				return time.UnixMilli(int64(v)).UTC()
			}
			if v > 0 {
				return time.Unix(int64(v), 0).UTC()
			}
		}
	}
	return time.Time{}
}

// firstString returns the first non-empty string value among the given keys
func firstString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok {
			continue
		}
		if s, ok := value.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// toFloat coerces JSON number and numeric-string variants
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
