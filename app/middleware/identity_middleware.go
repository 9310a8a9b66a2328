// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/vocalix/vocalix/app/dto"
)

// IdentityMiddleware resolves the caller identity forwarded by the platform
// gateway. The gateway terminates authentication and forwards the resolved
// account in trusted headers, so this service never sees credentials.
type IdentityMiddleware struct {
	userHeader  string
	adminHeader string
}

// NewIdentityMiddleware creates a new identity middleware
func NewIdentityMiddleware() *IdentityMiddleware {
	return &IdentityMiddleware{
		userHeader:  "X-User-ID",
		adminHeader: "X-Admin-ID",
	}
}

// Authenticate requires a forwarded user identity on protected endpoints
func (m *IdentityMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get(m.userHeader)
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "User identity header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_USER_IDENTITY",
				},
			})
		}

		userID, err := strconv.ParseUint(header, 10, 32)
		if err != nil || userID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid user identity header",
				Error: dto.ErrorDetail{
					Code: "INVALID_USER_IDENTITY",
				},
			})
		}

		// Store user information in context for downstream handlers
		c.Locals("user_id", uint(userID))

		// Store RequestID for audit logging
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// AdminAuthenticate requires a forwarded operator identity on admin endpoints
func (m *IdentityMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get(m.adminHeader)
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Admin identity header is required",
				Error:   dto.ErrorDetail{Code: "MISSING_ADMIN_IDENTITY"},
			})
		}

		adminID, err := strconv.ParseUint(header, 10, 32)
		if err != nil || adminID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid admin identity header",
				Error:   dto.ErrorDetail{Code: "INVALID_ADMIN_IDENTITY"},
			})
		}

		c.Locals("admin_id", uint(adminID))

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}
