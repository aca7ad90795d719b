// Twilio implementation of [Messenger]
package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plwatch/internal/shared"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the subset of the Twilio REST API used to send texts.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioMessenger sends text messages from a fixed Twilio number.
type TwilioMessenger struct {
	api  messageCreator
	from string
}

// NewTwilioMessenger creates a messenger authenticated with the account SID and auth token.
func NewTwilioMessenger(accountSID, authToken, from string) (*TwilioMessenger, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("%w: twilio account_sid and auth_token", shared.ErrMissingCredentials)
	}
	if from == "" {
		return nil, fmt.Errorf("%w: twilio from_number", shared.ErrMissingCredentials)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioMessenger{api: client.Api, from: from}, nil
}

// Send delivers body to recipient and returns the message SID.
func (m *TwilioMessenger) Send(ctx context.Context, recipient, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrNotificationDelivery, err)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(m.from)
	params.SetBody(body)

	msg, err := m.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrNotificationDelivery, err)
	}

	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	return sid, nil
}

// LogMessenger writes messages to a logger instead of sending them. Used for dry runs.
type LogMessenger struct {
	logger *log.Logger
}

// NewLogMessenger creates a dry-run messenger.
func NewLogMessenger(logger *log.Logger) *LogMessenger {
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) Send(ctx context.Context, recipient, body string) (string, error) {
	m.logger.Info("dry run: message not sent", "to", recipient, "body", body)
	return "dry-run", nil
}
