// Package dto defines the request and response shapes of the billing HTTP API
package dto

// APIResponse is the envelope every billing endpoint replies with. Exactly
// one of Data and Error is populated.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail carries the machine-readable error code plus optional field
// level details, such as per-field validation failures
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}
