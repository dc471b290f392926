package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/cleancity/wastetrack/internal/drivers"
)

type stubDrivers map[string]drivers.Driver

func (s stubDrivers) Get(_ context.Context, id string) (drivers.Driver, error) {
	d, ok := s[id]
	if !ok {
		return drivers.Driver{}, drivers.ErrNotFound
	}
	return d, nil
}

type captureSender struct {
	sent []Notification
	err  error
}

func (c *captureSender) Send(_ context.Context, n Notification) error {
	c.sent = append(c.sent, n)
	return c.err
}

type countRecorder map[string]int

func (c countRecorder) RecordNotification(result string) { c[result]++ }

func TestProcessorDeliver(t *testing.T) {
	email := "ravi@example.com"
	lookup := stubDrivers{"drv-1": {ID: "drv-1", FullName: "Ravi", Phone: "9123456789", Email: &email}}
	sender := &captureSender{}
	counts := countRecorder{}
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := Processor{Drivers: lookup, Sender: sender, Metrics: counts, Now: func() time.Time { return fixed }}

	n, err := p.Deliver(context.Background(), Assignment{DriverID: "drv-1", ComplaintID: "c-1", ComplaintNumber: "WC-20260301-ABC123", Area: "Ward 5", Address: "12 Main Rd"})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", n.DriverName)
	assert.Equal(t, email, n.DriverEmail)
	assert.Equal(t, fixed, n.AssignedAt)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, 1, counts["sent"])
}

func TestProcessorMissingDriver(t *testing.T) {
	counts := countRecorder{}
	p := Processor{Drivers: stubDrivers{}, Sender: &captureSender{}, Metrics: counts}
	_, err := p.Deliver(context.Background(), Assignment{DriverID: "gone", ComplaintID: "c-1"})
	assert.ErrorIs(t, err, ErrDriverMissing)
	assert.Equal(t, 1, counts["driver_missing"])
}

func TestProcessorSendFailure(t *testing.T) {
	counts := countRecorder{}
	sender := &captureSender{err: errors.New("provider down")}
	p := Processor{Drivers: stubDrivers{"d": {ID: "d", FullName: "A", Phone: "9123456789"}}, Sender: sender, Metrics: counts}
	_, err := p.Deliver(context.Background(), Assignment{DriverID: "d", ComplaintID: "c"})
	assert.Error(t, err)
	assert.Equal(t, 1, counts["send_failed"])
}

type stubCreator struct {
	params *api.CreateMessageParams
}

func (s *stubCreator) CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error) {
	s.params = params
	return &api.ApiV2010Message{}, nil
}

func TestTwilioSender(t *testing.T) {
	creator := &stubCreator{}
	s := &TwilioSender{api: creator, fromNumber: "+15005550006", countryPrefix: "+91"}
	err := s.Send(context.Background(), Notification{DriverName: "Ravi", DriverPhone: "9123456789", ComplaintNumber: "WC-1", Area: "W", Address: "A"})
	require.NoError(t, err)
	require.NotNil(t, creator.params.To)
	assert.Equal(t, "+919123456789", *creator.params.To)
	assert.Contains(t, *creator.params.Body, "WC-1")

	assert.Error(t, s.Send(context.Background(), Notification{DriverName: "Ravi"}))
}

func TestE164(t *testing.T) {
	assert.Equal(t, "+919123456789", E164("9123456789", "+91"))
	assert.Equal(t, "+14155550100", E164("+14155550100", "+91"))
}
