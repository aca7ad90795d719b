package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plwatch/internal/shared"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeCreator struct {
	params []*twilioapi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioMessenger(t *testing.T) {
	t.Run("NewTwilioMessenger requires credentials", func(t *testing.T) {
		if _, err := NewTwilioMessenger("", "tok", "+15550000000"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if _, err := NewTwilioMessenger("AC1", "tok", ""); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if _, err := NewTwilioMessenger("AC1", "tok", "+15550000000"); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Send fills params and returns sid", func(t *testing.T) {
		creator := &fakeCreator{}
		m := &TwilioMessenger{api: creator, from: "+15550000000"}

		sid, err := m.Send(context.Background(), "+12345678901", "hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sid != "SM123" {
			t.Errorf("expected sid SM123, got %s", sid)
		}

		p := creator.params[0]
		if *p.To != "+12345678901" || *p.From != "+15550000000" || *p.Body != "hello" {
			t.Errorf("unexpected params: to=%s from=%s body=%s", *p.To, *p.From, *p.Body)
		}
	})

	t.Run("Send wraps provider errors", func(t *testing.T) {
		m := &TwilioMessenger{api: &fakeCreator{err: errors.New("21211 invalid To")}, from: "+15550000000"}

		_, err := m.Send(context.Background(), "+12345678901", "hello")
		if !errors.Is(err, shared.ErrNotificationDelivery) {
			t.Errorf("expected ErrNotificationDelivery, got %v", err)
		}
	})

	t.Run("Send respects cancelled context", func(t *testing.T) {
		creator := &fakeCreator{}
		m := &TwilioMessenger{api: creator, from: "+15550000000"}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := m.Send(ctx, "+12345678901", "hello"); !errors.Is(err, shared.ErrNotificationDelivery) {
			t.Errorf("expected ErrNotificationDelivery, got %v", err)
		}
		if len(creator.params) != 0 {
			t.Error("expected no request after cancellation")
		}
	})
}

func TestLogMessenger(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMessenger(log.New(&buf))

	sid, err := m.Send(context.Background(), "+12345678901", "hello there")
	if err != nil || sid != "dry-run" {
		t.Fatalf("unexpected result %q, %v", sid, err)
	}
	if !strings.Contains(buf.String(), "hello there") {
		t.Errorf("expected body in log output, got %s", buf.String())
	}
}
