// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/vocalix/vocalix/app/dto"
	businessflow "github.com/vocalix/vocalix/business_flow"
)

// BillingHandlerInterface defines the contract for billing handlers
type BillingHandlerInterface interface {
	GetBalanceStats(c fiber.Ctx) error
	GetRecentTransactions(c fiber.Ctx) error
	CanMakeCall(c fiber.Ctx) error
	GetCallHistory(c fiber.Ctx) error
	Deposit(c fiber.Ctx) error
	AdminAdjust(c fiber.Ctx) error
	UpdateThresholds(c fiber.Ctx) error
}

// BillingHandler handles billing-related HTTP requests
type BillingHandler struct {
	ledgerFlow  businessflow.LedgerFlow
	historyFlow businessflow.CallHistoryFlow
	validator   *validator.Validate
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(ledgerFlow businessflow.LedgerFlow, historyFlow businessflow.CallHistoryFlow) *BillingHandler {
	return &BillingHandler{
		ledgerFlow:  ledgerFlow,
		historyFlow: historyFlow,
		validator:   validator.New(),
	}
}

func (h *BillingHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *BillingHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *BillingHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *BillingHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "timeout", timeout)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup

	return ctx
}

// userIDFromContext reads the authenticated user ID placed by the identity middleware
func (h *BillingHandler) userIDFromContext(c fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals("user_id").(uint)
	return userID, ok
}

// GetBalanceStats returns the balance dashboard for the authenticated user
func (h *BillingHandler) GetBalanceStats(c fiber.Ctx) error {
	userID, ok := h.userIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	req := &dto.GetBalanceStatsRequest{UserID: userID}

	result, err := h.ledgerFlow.GetBalanceStats(h.createRequestContext(c, "/api/v1/billing/balance"), req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Balance stats retrieval failed", err)
		// Balance reads surface a transient error; callers keep showing the
		// last value they have
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Balance temporarily unavailable", "BALANCE_UNAVAILABLE", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Balance stats retrieved successfully", result)
}

// GetRecentTransactions returns the authenticated user's ledger entries newest first
func (h *BillingHandler) GetRecentTransactions(c fiber.Ctx) error {
	userID, ok := h.userIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	req := &dto.GetRecentTransactionsRequest{UserID: userID, Limit: limit}

	result, err := h.ledgerFlow.GetRecentTransactions(h.createRequestContext(c, "/api/v1/billing/transactions"), req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Recent transactions retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve transactions", "TRANSACTIONS_RETRIEVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Transactions retrieved successfully", result)
}

// CanMakeCall checks whether a new call should be admitted for the authenticated user
func (h *BillingHandler) CanMakeCall(c fiber.Ctx) error {
	userID, ok := h.userIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.CanMakeCallRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UserID = userID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.ledgerFlow.CanMakeCall(h.createRequestContext(c, "/api/v1/billing/can-make-call"), &req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User account is inactive", "ACCOUNT_INACTIVE", nil)
		}
		if businessflow.IsAmountNotPositive(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Estimated cost must be a non-negative amount", "INVALID_AMOUNT", nil)
		}

		log.Println("Call admission check failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Call admission check failed", "CAN_MAKE_CALL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Call admission checked successfully", result)
}

// GetCallHistory returns the authenticated user's recent calls with billing state
func (h *BillingHandler) GetCallHistory(c fiber.Ctx) error {
	userID, ok := h.userIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	req := &dto.GetCallHistoryRequest{UserID: userID, Limit: limit}

	result, err := h.historyFlow.GetCallHistory(h.createRequestContext(c, "/api/v1/billing/calls"), req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Call history retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve call history", "CALL_HISTORY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Call history retrieved successfully", result)
}

// Deposit credits the authenticated user's balance
func (h *BillingHandler) Deposit(c fiber.Ctx) error {
	userID, ok := h.userIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.DepositRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UserID = userID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.ledgerFlow.Deposit(h.createRequestContext(c, "/api/v1/billing/deposit"), &req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User account is inactive", "ACCOUNT_INACTIVE", nil)
		}
		if businessflow.IsAmountNotPositive(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Amount must be positive", "INVALID_AMOUNT", nil)
		}
		if businessflow.IsLedgerRetryable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Deposit temporarily failed, please retry", "DEPOSIT_RETRYABLE", nil)
		}

		log.Println("Deposit failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Deposit failed", "DEPOSIT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Deposit applied successfully", result)
}

// AdminAdjust applies a signed manual correction to a user's balance
func (h *BillingHandler) AdminAdjust(c fiber.Ctx) error {
	if _, ok := c.Locals("admin_id").(uint); !ok {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Admin access required", "ADMIN_REQUIRED", nil)
	}

	var req dto.AdminAdjustRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.ledgerFlow.AdminAdjust(h.createRequestContext(c, "/api/v1/admin/billing/adjust"), &req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsReasonRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Adjustment reason is required", "REASON_REQUIRED", nil)
		}
		if businessflow.IsAmountNotPositive(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Adjustment amount must be a non-zero signed value", "INVALID_AMOUNT", nil)
		}
		if businessflow.IsLedgerRetryable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Adjustment temporarily failed, please retry", "ADJUSTMENT_RETRYABLE", nil)
		}

		log.Println("Adjustment failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Adjustment failed", "ADJUSTMENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Adjustment applied successfully", result)
}

// UpdateThresholds changes the alert thresholds for a user's balance
func (h *BillingHandler) UpdateThresholds(c fiber.Ctx) error {
	userID, ok := h.userIDFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.UpdateThresholdsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UserID = userID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	if err := h.ledgerFlow.UpdateThresholds(h.createRequestContext(c, "/api/v1/billing/thresholds"), &req, metadata); err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "User account is inactive", "ACCOUNT_INACTIVE", nil)
		}
		if businessflow.IsThresholdsInverted(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Critical threshold cannot exceed warning threshold", "THRESHOLDS_INVERTED", nil)
		}

		log.Println("Threshold update failed", err)
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Threshold update failed", "UPDATE_THRESHOLDS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Thresholds updated successfully", nil)
}
