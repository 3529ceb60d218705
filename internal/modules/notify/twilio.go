package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMS sends messages through Twilio.
type SMS struct {
	api    messageCreator
	from   string
	phones PhoneBook
	logger *slog.Logger
}

// NewSMS builds a Twilio-backed notifier.
func NewSMS(accountSID, authToken, from string, phones PhoneBook, logger *slog.Logger) *SMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMS{api: client.Api, from: from, phones: phones, logger: logger}
}

func (s *SMS) Notify(ctx context.Context, msg Message) error {
	to, err := s.phones.ContactPhone(ctx, msg.CustomerID)
	if err != nil {
		return fmt.Errorf("lookup phone: %w", err)
	}
	if to == "" {
		s.logger.DebugContext(ctx, "no phone on file, skipping sms",
			slog.String("customer_id", msg.CustomerID.String()),
			slog.String("event", msg.Event))
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(msg.Body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.InfoContext(ctx, "sms sent",
		slog.String("event", msg.Event),
		slog.String("customer_id", msg.CustomerID.String()),
		slog.String("sid", sid))
	return nil
}
