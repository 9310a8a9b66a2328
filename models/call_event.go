package models

import (
	"time"
)

// CallStatus is the terminal (or non-terminal) state reported for a call
type CallStatus string

const (
	CallStatusCompleted  CallStatus = "completed"
	CallStatusEnded      CallStatus = "ended"
	CallStatusFinished   CallStatus = "finished"
	CallStatusTerminated CallStatus = "terminated"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusFailed     CallStatus = "failed"
)

// billableStatuses are the terminal statuses after which a call is charged
var billableStatuses = map[CallStatus]bool{
	CallStatusCompleted:  true,
	CallStatusEnded:      true,
	CallStatusFinished:   true,
	CallStatusTerminated: true,
}

// IsBillable reports whether the status is terminal and chargeable
func (s CallStatus) IsBillable() bool {
	return billableStatuses[s]
}

// CallEvent is a read-only record of one telephony/voice-agent call. Rows are
// produced by the provider webhook sync (outside this subsystem) and are never
// mutated by the billing core.
type CallEvent struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// Globally unique, stable identifier assigned by the telephony provider
	CallID string `gorm:"type:varchar(255);uniqueIndex;not null" json:"call_id"`

	UserID uint `gorm:"not null;index:idx_call_events_user_time" json:"user_id"`

	// Provider-side agent identifier; matched against AgentAssignment.TelephonyAgentID
	TelephonyAgentID string `gorm:"type:varchar(255);not null" json:"telephony_agent_id"`

	DurationSec  int        `gorm:"not null;default:0" json:"duration_sec"`
	CallStatus   CallStatus `gorm:"type:varchar(32);not null" json:"call_status"`
	Timestamp    time.Time  `gorm:"not null;index:idx_call_events_user_time" json:"timestamp"`
	RecordingURL *string    `gorm:"type:text" json:"recording_url,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName specifies the table name for GORM
func (CallEvent) TableName() string {
	return "call_events"
}

// CallEventFilter represents filter criteria for call event queries
type CallEventFilter struct {
	CallID          *string     `json:"call_id,omitempty"`
	UserID          *uint       `json:"user_id,omitempty"`
	CallStatus      *CallStatus `json:"call_status,omitempty"`
	TimestampAfter  *time.Time  `json:"timestamp_after,omitempty"`
	TimestampBefore *time.Time  `json:"timestamp_before,omitempty"`
}
