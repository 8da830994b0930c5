package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/gigmarket-api/internal/config"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type twilioSender struct {
	create      func(*twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	from        string
	countryCode string
}

func NewTwilioSender(cfg *config.Config) (Sender, error) {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFrom == "" {
		return nil, errors.New("missing Twilio credentials: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	return &twilioSender{create: client.Api.CreateMessage, from: cfg.TwilioFrom, countryCode: cfg.SMSDefaultCountryCode}, nil
}

// SendSMS returns when the message is accepted or ctx is done, whichever
// comes first. The Twilio request itself cannot be cancelled: after ctx ends,
// the goroutine keeps running until Twilio's HTTP client returns.
func (t *twilioSender) SendSMS(ctx context.Context, to, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(normalize(to, t.countryCode))
	params.SetBody(message)

	done := make(chan error, 1)
	go func() {
		resp, err := t.create(params)
		if err != nil {
			done <- fmt.Errorf("twilio create message: %w", err)
			return
		}
		if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
			msg := ""
			if resp.ErrorMessage != nil {
				msg = *resp.ErrorMessage
			}
			done <- fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
