package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/gigmarket-api/internal/config"
	"go.uber.org/zap"
)

// Sender delivers a text message to a phone number.
type Sender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// OTPMessage is the body of the one-time code SMS.
func OTPMessage(code string) string {
	return fmt.Sprintf("Your one-time OTP code is %s", code)
}

// New builds the sender selected by cfg.SMSProvider.
func New(cfg *config.Config, log *zap.Logger) (Sender, error) {
	switch cfg.SMSProvider {
	case config.SMSProviderSNS:
		return NewSNSSender(cfg)
	case config.SMSProviderTwilio:
		return NewTwilioSender(cfg)
	case config.SMSProviderLog:
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown SMS provider %q", cfg.SMSProvider)
	}
}

// normalize prefixes countryCode to numbers that carry no international prefix.
func normalize(phone, countryCode string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return countryCode + strings.TrimLeft(phone, "0")
}
