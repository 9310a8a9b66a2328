// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"

	"github.com/vocalix/vocalix/app/dto"
	"github.com/vocalix/vocalix/models"
	"github.com/vocalix/vocalix/repository"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		DeviceInfo: make(map[string]string),
		Additional: make(map[string]string),
	}
}

// AddDeviceInfo adds device information to the metadata
func (cm *ClientMetadata) AddDeviceInfo(key, value string) {
	if cm.DeviceInfo == nil {
		cm.DeviceInfo = make(map[string]string)
	}
	cm.DeviceInfo[key] = value
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// getUser loads a user by ID and verifies the account is active
func getUser(ctx context.Context, userRepo repository.UserRepository, userID uint) (models.User, error) {
	user, err := userRepo.ByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if user == nil {
		return models.User{}, ErrUserNotFound
	}
	if !user.IsActive {
		return models.User{}, ErrAccountInactive
	}
	return *user, nil
}

// ToTransactionItemDTO converts a ledger entry to its API representation
func ToTransactionItemDTO(transaction models.Transaction) dto.TransactionItem {
	return dto.TransactionItem{
		UUID:         transaction.UUID.String(),
		Type:         string(transaction.Type),
		Amount:       transaction.Amount.String(),
		SignedAmount: transaction.Type.Signed(transaction.Amount).String(),
		Description:  transaction.Description,
		CallIDRef:    transaction.CallIDRef,
		BalanceAfter: transaction.BalanceAfter.String(),
		CreatedAt:    transaction.CreatedAt,
	}
}
