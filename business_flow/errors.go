// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound    = errors.New("user not found")
	ErrAccountInactive = errors.New("account is inactive")
	ErrAccountBlocked  = errors.New("account is blocked")

	// Balance-related errors
	ErrBalanceNotFound    = errors.New("balance not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAmountNotPositive  = errors.New("amount must be positive")
	ErrReasonRequired     = errors.New("adjustment reason is required")
	ErrThresholdsInverted = errors.New("critical threshold cannot exceed warning threshold")

	// Ledger errors
	ErrLedgerInconsistent = errors.New("ledger inconsistent: compensation failed after transaction insert")
	ErrLedgerRetryable    = errors.New("ledger write failed, safe to retry")

	// Agent resolution errors
	ErrNoAgentAssignments = errors.New("no agent assignments for user")
	ErrAgentNotFound      = errors.New("agent not found")

	// Call event errors
	ErrCallNotFound      = errors.New("call event not found")
	ErrCallNotBillable   = errors.New("call status is not billable")
	ErrDurationNegative  = errors.New("call duration cannot be negative")
	ErrCallIDRequired    = errors.New("call ID is required")
	ErrDurationRecovery  = errors.New("call duration could not be recovered")
	ErrCacheNotAvailable = errors.New("cache not available")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsAccountBlocked(err error) bool {
	return errors.Is(err, ErrAccountBlocked)
}

func IsBalanceNotFound(err error) bool {
	return errors.Is(err, ErrBalanceNotFound)
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsAmountNotPositive(err error) bool {
	return errors.Is(err, ErrAmountNotPositive)
}

func IsReasonRequired(err error) bool {
	return errors.Is(err, ErrReasonRequired)
}

func IsThresholdsInverted(err error) bool {
	return errors.Is(err, ErrThresholdsInverted)
}

func IsLedgerInconsistent(err error) bool {
	return errors.Is(err, ErrLedgerInconsistent)
}

func IsLedgerRetryable(err error) bool {
	return errors.Is(err, ErrLedgerRetryable)
}

func IsNoAgentAssignments(err error) bool {
	return errors.Is(err, ErrNoAgentAssignments)
}

func IsAgentNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound)
}

func IsCallNotFound(err error) bool {
	return errors.Is(err, ErrCallNotFound)
}

func IsCallNotBillable(err error) bool {
	return errors.Is(err, ErrCallNotBillable)
}

func IsDurationRecovery(err error) bool {
	return errors.Is(err, ErrDurationRecovery)
}
