package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notification is the message built for a driver.
type Notification struct {
	DriverName      string    `json:"driver_name"`
	DriverEmail     string    `json:"driver_email"`
	DriverPhone     string    `json:"driver_phone"`
	ComplaintNumber string    `json:"complaint_number"`
	Area            string    `json:"area"`
	Address         string    `json:"address"`
	AssignedAt      time.Time `json:"assigned_at"`
}

// Text renders the SMS body.
func (n Notification) Text() string {
	return fmt.Sprintf("Hi %s, complaint %s has been assigned to you. Area: %s. Address: %s.",
		n.DriverName, n.ComplaintNumber, n.Area, n.Address)
}

// Sender delivers a notification to a driver.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender only logs notifications. It is used when no SMS provider is configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("driver notification",
		slog.String("driver_name", n.DriverName),
		slog.String("driver_phone", n.DriverPhone),
		slog.String("complaint_number", n.ComplaintNumber),
		slog.String("area", n.Area),
	)
	return nil
}

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// TwilioSender delivers notifications as SMS.
type TwilioSender struct {
	api           messageCreator
	fromNumber    string
	countryPrefix string
}

// NewTwilioSender constructs a sender for the given account.
func NewTwilioSender(accountSID, authToken, fromNumber, countryPrefix string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, fromNumber: fromNumber, countryPrefix: countryPrefix}
}

// E164 prefixes a national number with the country code.
func E164(phone, countryPrefix string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "+") || countryPrefix == "" {
		return phone
	}
	return countryPrefix + phone
}

// Send implements Sender.
func (s *TwilioSender) Send(_ context.Context, n Notification) error {
	if n.DriverPhone == "" {
		return fmt.Errorf("notify: driver %s has no phone", n.DriverName)
	}
	params := &api.CreateMessageParams{}
	params.SetTo(E164(n.DriverPhone, s.countryPrefix))
	params.SetFrom(s.fromNumber)
	params.SetBody(n.Text())

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("notify: twilio: %w", err)
	}
	return nil
}
