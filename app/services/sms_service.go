// Package services provides external service integrations and technical concerns like notifications
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vocalix/vocalix/config"
	"github.com/vocalix/vocalix/utils"
)

// SMSService handles SMS sending operations
type SMSService interface {
	SendSMS(ctx context.Context, recipient, message string) error
	SendBulk(ctx context.Context, recipients []string, message string) error
}

// SMSServiceImpl implements SMSService against the provider's HTTP gateway
type SMSServiceImpl struct {
	config *config.SMSConfig
	client *http.Client
}

// SMSRequest represents the request payload for the SMS gateway API
type SMSRequest struct {
	SrcNum         string `json:"srcNum"`
	Recipient      string `json:"recipient"`
	Body           string `json:"body"`
	RetryCount     int    `json:"retryCount"`
	Type           int    `json:"type"` // Always 1
	ValidityPeriod int    `json:"validityPeriod"`
}

// SMSResponse represents individual message result from the SMS gateway API
type SMSResponse struct {
	MessageID  int64  `json:"messageId"`
	SrcNum     string `json:"srcNum"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// NewSMSService creates a new SMS service instance
func NewSMSService(cfg *config.SMSConfig) SMSService {
	return &SMSServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SendSMS sends an SMS message
func (s *SMSServiceImpl) SendSMS(ctx context.Context, recipient, message string) error {
	return s.SendBulk(ctx, []string{recipient}, message)
}

// SendBulk sends an SMS message to multiple recipients in a single API call (batch)
func (s *SMSServiceImpl) SendBulk(ctx context.Context, recipients []string, message string) error {
	if len(recipients) == 0 {
		return nil
	}
	requests := make([]SMSRequest, 0, len(recipients))
	for _, r := range recipients {
		requests = append(requests, SMSRequest{
			SrcNum:         s.config.SourceNumber,
			Recipient:      r,
			Body:           message,
			RetryCount:     s.config.RetryCount,
			Type:           1,
			ValidityPeriod: s.config.ValidityPeriod,
		})
	}

	requestBody, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("failed to marshal SMS bulk request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v3.0.1/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS bulk request: %w", err)
	}
	defer resp.Body.Close()

	var results []SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return fmt.Errorf("failed to decode SMS bulk response: %w", err)
	}
	for _, r := range results {
		if r.StatusCode != 200 || r.Status != "ACCEPTED" {
			return fmt.Errorf("SMS delivery failed for %s: %s (%d)", r.Recipient, r.Status, r.StatusCode)
		}
	}
	return nil
}

// GatewaySMSProvider adapts SMSService to the notification SMSProvider interface
type GatewaySMSProvider struct {
	service SMSService
	timeout time.Duration
}

// NewGatewaySMSProvider creates a new gateway-backed SMS provider
func NewGatewaySMSProvider(service SMSService, timeout time.Duration) SMSProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GatewaySMSProvider{service: service, timeout: timeout}
}

// SendSMS sends one message through the gateway with a bounded timeout
func (p *GatewaySMSProvider) SendSMS(mobile, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.service.SendSMS(ctx, mobile, message)
}

// MockSMSService implements SMSService for testing
type MockSMSService struct {
	SentMessages []MockSMSMessage
}

// MockSMSMessage represents a mock SMS message
type MockSMSMessage struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService() *MockSMSService {
	return &MockSMSService{
		SentMessages: make([]MockSMSMessage, 0),
	}
}

// SendSMS sends a mock SMS message
func (m *MockSMSService) SendSMS(ctx context.Context, recipient, message string) error {
	return m.SendBulk(ctx, []string{recipient}, message)
}

func (m *MockSMSService) SendBulk(ctx context.Context, recipients []string, message string) error {
	for _, r := range recipients {
		m.SentMessages = append(m.SentMessages, MockSMSMessage{
			Recipient: r,
			Message:   message,
			SentAt:    utils.UTCNow(),
		})
	}
	return nil
}

// ClearSentMessages clears the sent messages list
func (m *MockSMSService) ClearSentMessages() {
	m.SentMessages = make([]MockSMSMessage, 0)
}
