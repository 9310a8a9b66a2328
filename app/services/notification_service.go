// Package services provides external service integrations and technical concerns like notifications
package services

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vocalix/vocalix/models"
)

// NotificationService handles sending notifications via SMS and email
type NotificationService interface {
	SendSMS(mobile, message string) error
	SendEmail(email, subject, message string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	smsProvider   SMSProvider
	emailProvider EmailProvider
}

// SMSProvider interface for SMS sending
type SMSProvider interface {
	SendSMS(mobile, message string) error
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(email, subject, message string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(smsProvider SMSProvider, emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		smsProvider:   smsProvider,
		emailProvider: emailProvider,
	}
}

// SendSMS sends an SMS message to the specified mobile number
func (s *NotificationServiceImpl) SendSMS(mobile, message string) error {
	if s.smsProvider == nil {
		return fmt.Errorf("SMS provider not configured")
	}

	if len(mobile) < 8 || !strings.HasPrefix(mobile, "+") {
		return fmt.Errorf("invalid mobile number format: %s", mobile)
	}

	return s.smsProvider.SendSMS(mobile, message)
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	// Basic email validation
	if len(email) == 0 || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %s", email)
	}

	return s.emailProvider.SendEmail(email, subject, message)
}

// BalanceAlertSink routes low balance alerts from the notifier flow to the
// configured delivery channels
type BalanceAlertSink struct {
	notifications NotificationService
	enableEmail   bool
	enableSMS     bool
}

// NewBalanceAlertSink creates a new balance alert sink
func NewBalanceAlertSink(notifications NotificationService, enableEmail, enableSMS bool) *BalanceAlertSink {
	return &BalanceAlertSink{
		notifications: notifications,
		enableEmail:   enableEmail,
		enableSMS:     enableSMS,
	}
}

// NotifyLowBalance formats and delivers a low balance alert for the user
func (s *BalanceAlertSink) NotifyLowBalance(ctx context.Context, user models.User, status models.BalanceStatus, balance decimal.Decimal) error {
	subject, message := formatBalanceAlert(status, balance)

	var errs []string
	if s.enableEmail && user.Email != "" {
		if err := s.notifications.SendEmail(user.Email, subject, message); err != nil {
			errs = append(errs, fmt.Sprintf("email: %v", err))
		}
	}
	if s.enableSMS && user.Mobile != nil && *user.Mobile != "" {
		if err := s.notifications.SendSMS(*user.Mobile, message); err != nil {
			errs = append(errs, fmt.Sprintf("sms: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("balance alert delivery failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func formatBalanceAlert(status models.BalanceStatus, balance decimal.Decimal) (subject, message string) {
	switch status {
	case models.BalanceStatusEmpty:
		return "Balance depleted",
			fmt.Sprintf("Your balance is depleted ($%s). Calls can no longer be placed until you top up.", balance)
	case models.BalanceStatusCritical:
		return "Balance critically low",
			fmt.Sprintf("Your balance is critically low ($%s). Top up now to avoid service interruption.", balance)
	default:
		return "Balance running low",
			fmt.Sprintf("Your balance is running low ($%s). Consider topping up soon.", balance)
	}
}

type MockSMSProvider struct{}

func NewMockSMSProvider() SMSProvider {
	return &MockSMSProvider{}
}

func (p *MockSMSProvider) SendSMS(mobile, message string) error {
	log.Printf("SMS sent to %s: %s", mobile, message)
	return nil
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(email, subject, message string) error {
	log.Printf("Email sent to %s [%s]: %s", email, subject, message)
	return nil
}

type SMTPEmailProvider struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

func NewSMTPEmailProvider(host string, port int, username, password, fromEmail string) EmailProvider {
	return &SMTPEmailProvider{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
	}
}

func (p *SMTPEmailProvider) SendEmail(email, subject, message string) error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	auth := smtp.PlainAuth("", p.username, p.password, p.host)

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		p.fromEmail, email, subject, message)

	return smtp.SendMail(addr, auth, p.fromEmail, []string{email}, []byte(body))
}
